package alert

import (
	"time"

	"ict-sweep-bot/internal/circuit"
)

// breakerSink guards a network sink with a circuit breaker so a dead
// webhook does not stall every alert on its timeout.
type breakerSink struct {
	inner   Sink
	breaker *circuit.Breaker
}

func withBreaker(inner Sink) Sink {
	return &breakerSink{
		inner:   inner,
		breaker: circuit.NewBreaker(3, 5*time.Minute),
	}
}

func (b *breakerSink) Name() string { return b.inner.Name() }

func (b *breakerSink) Send(a Alert) error {
	return b.breaker.Call(func() error { return b.inner.Send(a) })
}
