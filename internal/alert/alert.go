package alert

import "time"

// Level classifies an alert.
type Level string

const (
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
	LevelSignal  Level = "SIGNAL"
	LevelEntry   Level = "ENTRY"
	LevelExit    Level = "EXIT"
	LevelError   Level = "ERROR"
)

// Alert is one outbound notification.
type Alert struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     Level          `json:"level"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Symbol    string         `json:"symbol,omitempty"`
	Price     float64        `json:"price,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Sink delivers alerts somewhere. Implementations must tolerate being
// called from the bar loop; slow transports should queue internally.
type Sink interface {
	Send(a Alert) error
	Name() string
}
