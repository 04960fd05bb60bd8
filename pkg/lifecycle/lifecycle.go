package lifecycle

import "time"

// State is the application lifecycle state.
type State int

const (
	StateInit State = iota
	StateModeSelect
	StateRunning
	StateShuttingDown
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateModeSelect:
		return "ModeSelect"
	case StateRunning:
		return "Running"
	case StateShuttingDown:
		return "ShuttingDown"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// Reason explains why a session is shutting down.
type Reason int

const (
	ReasonNormal Reason = iota
	ReasonFault
	ReasonInterrupted
)

func (r Reason) String() string {
	switch r {
	case ReasonNormal:
		return "normal"
	case ReasonFault:
		return "fault"
	case ReasonInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// ExitCode is the process exit status a session maps to.
type ExitCode int

const (
	ExitOK          ExitCode = 0
	ExitFault       ExitCode = 1
	ExitConfig      ExitCode = 2
	ExitInterrupted ExitCode = 130
)

// EventEmitter is called when lifecycle state changes.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// Manager owns the lifecycle state machine.
type Manager interface {
	State() State

	// TransitionTo moves to newState or returns ErrInvalidTransition.
	TransitionTo(newState State, reason string) error

	// WaitWithTimeout waits for all workers to finish.
	// Returns ErrShutdownTimeout if the timeout expires.
	WaitWithTimeout(timeout time.Duration) error

	AddWorker()
	WorkerDone()
}
