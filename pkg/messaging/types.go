package messaging

import (
	"time"

	"github.com/boristopalov/cleaner/pkg/core"
	"github.com/boristopalov/cleaner/pkg/memory"
)

// EventKind distinguishes per-step events from the final one.
type EventKind string

const (
	EventStep       EventKind = "step"
	EventTerminated EventKind = "terminated"
)

// Event is published by a simulation as it runs
type Event struct {
	RunID     string                 `json:"run_id"`
	Kind      EventKind              `json:"kind"`
	Step      int                    `json:"step"`
	Record    *memory.StepRecord     `json:"record,omitempty"` // set for EventStep
	Reason    core.TerminationReason `json:"reason,omitempty"` // set for EventTerminated
	Timestamp time.Time              `json:"timestamp"`
}

// Broker fans events out to subscribers
type Broker interface {
	// Publish sends an event to every subscriber
	Publish(evt Event) error
	// Subscribe registers a channel under id
	Subscribe(id string, ch chan<- Event) error
	// Unsubscribe removes the subscription registered under id
	Unsubscribe(id string) error
}
