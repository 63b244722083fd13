package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	EventLog           EventType = "log"            // Log line for the dashboard feed
	EventStatusChanged EventType = "status_changed" // Application state transition
	EventRunUpdated    EventType = "run_updated"    // Run record created, advanced, or finished
	EventStageProgress EventType = "stage_progress" // Per-stage progress inside a running job
)

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages the pub/sub event bus feeding the dashboard
type EventService interface {
	// Subscribe to an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Unsubscribe from an event type
	Unsubscribe(eventType EventType, handler EventHandler) error

	// Publish an event to all subscribers asynchronously
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes an event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}
