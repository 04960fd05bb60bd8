package resource

import (
	"errors"
	"fmt"
)

// ErrReleaseTimeout is the cause recorded when a release does not return
// within the registry's release timeout.
var ErrReleaseTimeout = errors.New("release timed out")

// ErrClosed is the cause recorded when an acquisition completes after the
// registry was closed. The resource is released before it is returned.
var ErrClosed = errors.New("registry closed")

// AcquireError reports a resource that failed to initialize. Nothing is
// added to the registry when it is returned.
type AcquireError struct {
	Name  string
	Cause error
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("acquire %s: %v", e.Name, e.Cause)
}

func (e *AcquireError) Unwrap() error { return e.Cause }

// ReleaseError reports a resource that failed to release cleanly.
type ReleaseError struct {
	Name  string
	Cause error
}

func (e *ReleaseError) Error() string {
	return fmt.Sprintf("release %s: %v", e.Name, e.Cause)
}

func (e *ReleaseError) Unwrap() error { return e.Cause }

// PanicError wraps a value recovered from a panicking acquire or release.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
