// Package coordinator binds the Policy Engine, Model Client, Response
// Interpreter, Todo Store, Conversation Store, and Operation Executors
// behind a single-threaded cooperative execution state machine
// (spec.md §4.8, §5).
package coordinator

// State is the Coordinator's control-flow state.
type State string

const (
	StateStopped   State = "stopped"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCancelled State = "cancelled"
)
