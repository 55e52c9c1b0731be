package circuit

import (
	"fmt"
	"sync"
	"time"
)

// State is the breaker position.
type State string

const (
	StateClosed   State = "closed"    // calls pass through
	StateOpen     State = "open"      // calls rejected
	StateHalfOpen State = "half_open" // one probe allowed
)

// Breaker trips after a run of consecutive failures and rejects calls for
// a cooldown. The first call after the cooldown is a probe: success closes
// the breaker, failure reopens it.
type Breaker struct {
	maxFailures int
	cooldown    time.Duration

	mu           sync.Mutex
	state        State
	failures     int
	lastTripTime time.Time
	tripReason   string
}

// NewBreaker creates a breaker tripping after maxFailures consecutive
// failures, staying open for the cooldown.
func NewBreaker(maxFailures int, cooldown time.Duration) *Breaker {
	return &Breaker{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		state:       StateClosed,
	}
}

// Call runs fn through the breaker.
func (b *Breaker) Call(fn func() error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn()
	b.record(err)
	return err
}

// State returns the current breaker position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if since := time.Since(b.lastTripTime); since < b.cooldown {
			return fmt.Errorf("circuit open (%s), retry in %s",
				b.tripReason, (b.cooldown - since).Round(time.Second))
		}
		b.state = StateHalfOpen
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.state = StateClosed
		b.failures = 0
		b.tripReason = ""
		return
	}

	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.maxFailures {
		b.state = StateOpen
		b.lastTripTime = time.Now()
		b.tripReason = err.Error()
	}
}
