package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bft-labs/gest/pkg/log"
	"github.com/bft-labs/gest/pkg/resource"
)

var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrAlreadyStarted    = errors.New("already started")
	ErrShutdownTimeout   = errors.New("shutdown timeout")
	ErrInvalidConfig     = errors.New("invalid configuration")
)

// ConfigError reports configuration that could not be applied. It aborts a
// session before any resource is acquired.
type ConfigError struct {
	Cause error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: %v", ErrInvalidConfig, e.Cause)
}

func (e *ConfigError) Unwrap() []error { return []error{ErrInvalidConfig, e.Cause} }

// RunFault reports a mode whose run loop failed or panicked.
type RunFault struct {
	Mode  string
	Cause error
}

func (e *RunFault) Error() string {
	return fmt.Sprintf("mode %s: %v", e.Mode, e.Cause)
}

func (e *RunFault) Unwrap() error { return e.Cause }

// call runs fn and converts a panic into a *resource.PanicError.
func call(fn func() error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = newPanicError(v)
		}
	}()
	return fn()
}

// diagnostics renders the context that only backtrace-enabled sinks print:
// the panic stack if there was one, otherwise the chain of wrapped causes.
func diagnostics(err error) log.Field {
	var pe *resource.PanicError
	if errors.As(err, &pe) {
		return log.Detail(pe.Stack)
	}
	var b strings.Builder
	for depth := 0; err != nil; depth++ {
		fmt.Fprintf(&b, "%s%T: %v\n", strings.Repeat("  ", depth), err, err)
		err = errors.Unwrap(err)
	}
	return log.Detail(b.String())
}
