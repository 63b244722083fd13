package interfaces

// AppState represents the application state
type AppState string

const (
	StateIdle       AppState = "idle"       // No polling, no work in flight
	StatePolling    AppState = "polling"    // Poll schedule active, waiting for eligible rows
	StateProcessing AppState = "processing" // At least one job currently in the pipeline
)

// StatusService tracks application-level state and broadcasts transitions
// as status events.
type StatusService interface {
	// GetState returns the current application state.
	GetState() AppState

	// SetState updates the state and publishes a status event.
	SetState(state AppState, metadata map[string]interface{})

	// GetStatus returns the full status including state, metadata, and
	// timestamp.
	GetStatus() map[string]interface{}
}
