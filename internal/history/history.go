// Package history exports service lifecycle events to pluggable sinks.
// History is advisory: sink failures must never block a lifecycle operation.
package history

import (
	"context"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStart   EventType = "start"
	EventStop    EventType = "stop"
	EventRestart EventType = "restart"
)

// Event records one lifecycle transition of a supervised service.
type Event struct {
	Type       EventType `json:"type"`
	Service    string    `json:"service"`
	PID        int       `json:"pid"`
	OccurredAt time.Time `json:"occurred_at"`
	ExitError  string    `json:"exit_error,omitempty"`
}

// Sink is a destination for lifecycle events. Implementations must be safe
// for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}
