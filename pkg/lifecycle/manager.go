package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/gest/pkg/log"
)

// ShutdownTimeout is the default time teardown waits for a run loop to
// return after its context is cancelled.
const ShutdownTimeout = 5 * time.Second

// DefaultManager implements Manager.
type DefaultManager struct {
	mu           sync.RWMutex
	state        State
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	logger       log.Logger
	eventEmitter EventEmitter
}

// NewManager creates a manager in StateInit.
func NewManager(logger log.Logger, emitter EventEmitter) *DefaultManager {
	return &DefaultManager{
		state:        StateInit,
		logger:       log.OrNoop(logger),
		eventEmitter: emitter,
	}
}

func (l *DefaultManager) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// TransitionTo validates and applies a transition. ShuttingDown is reachable
// from every state before it; Terminated is absorbing.
func (l *DefaultManager) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.state
	if !validTransition(oldState, newState) {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, oldState, newState)
	}
	l.state = newState
	l.mu.Unlock()

	// Emit event outside of lock
	if l.eventEmitter != nil {
		l.eventEmitter.OnStateChange(oldState, newState, reason)
	}

	l.logger.Info("state transition",
		log.String("from", oldState.String()),
		log.String("to", newState.String()),
		log.String("reason", reason),
	)
	return nil
}

func validTransition(from, to State) bool {
	switch from {
	case StateInit:
		return to == StateModeSelect || to == StateShuttingDown
	case StateModeSelect:
		return to == StateRunning || to == StateShuttingDown
	case StateRunning:
		return to == StateShuttingDown
	case StateShuttingDown:
		return to == StateTerminated
	default:
		return false
	}
}

// SetCancel stores the function that stops the active run loop.
func (l *DefaultManager) SetCancel(cancel context.CancelFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancel = cancel
}

// Cancel stops the active run loop, if any.
func (l *DefaultManager) Cancel() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (l *DefaultManager) AddWorker()  { l.wg.Add(1) }
func (l *DefaultManager) WorkerDone() { l.wg.Done() }

// WaitWithTimeout waits for all workers to finish with a timeout.
// Returns ErrShutdownTimeout if the timeout expires.
func (l *DefaultManager) WaitWithTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		l.logger.Warn("run loop still active after timeout, continuing teardown",
			log.Duration("timeout", timeout),
		)
		return ErrShutdownTimeout
	}
}
