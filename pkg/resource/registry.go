package resource

import (
	"context"
	"errors"
	"runtime/debug"
	"slices"
	"sync"
	"time"
)

// Info describes an acquired resource, e.g. camera resolution. It is logged
// by the caller and otherwise opaque to the registry.
type Info map[string]any

// ReleaseFunc releases one resource. It receives a context that carries the
// registry's release timeout, if any.
type ReleaseFunc func(ctx context.Context) error

// AcquireFunc initializes a resource and returns how to release it.
type AcquireFunc func(ctx context.Context) (Info, ReleaseFunc, error)

// Resource is an external collaborator with an acquire/release lifecycle:
// cameras, processing engines, servers, background workers.
type Resource interface {
	Name() string
	Acquire(ctx context.Context) (Info, error)
	Release(ctx context.Context) error
}

// Handle records one successfully acquired resource.
type Handle struct {
	Name     string
	Info     Info
	Acquired bool

	release ReleaseFunc
}

// Outcome is the result of releasing one handle. Err is a *ReleaseError or
// nil.
type Outcome struct {
	Name string
	Err  error
}

// Registry tracks acquired resources and releases them in reverse order.
type Registry struct {
	mu             sync.Mutex
	handles        []*Handle
	closed         bool
	releaseTimeout time.Duration
}

// Option configures a Registry.
type Option func(*Registry)

// WithReleaseTimeout bounds each individual release. When a release has not
// returned by the deadline its outcome is a ReleaseError wrapping
// ErrReleaseTimeout and teardown moves on to the next handle. Zero means no
// bound.
func WithReleaseTimeout(d time.Duration) Option {
	return func(r *Registry) { r.releaseTimeout = d }
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Acquire runs fn and, on success, appends a handle for name. On failure
// (including a panic in fn) nothing is appended and an *AcquireError is
// returned. If the registry was closed while fn ran, the new handle is
// released at once and the error wraps ErrClosed.
func (r *Registry) Acquire(ctx context.Context, name string, fn AcquireFunc) (*Handle, error) {
	if r.isClosed() {
		return nil, &AcquireError{Name: name, Cause: ErrClosed}
	}
	info, release, err := safeAcquire(ctx, fn)
	if err != nil {
		return nil, &AcquireError{Name: name, Cause: err}
	}
	h := &Handle{Name: name, Info: info, Acquired: true, release: release}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		if err := r.release(context.Background(), h); err != nil {
			return nil, &AcquireError{Name: name, Cause: errors.Join(ErrClosed, &ReleaseError{Name: name, Cause: err})}
		}
		return nil, &AcquireError{Name: name, Cause: ErrClosed}
	}
	r.handles = append(r.handles, h)
	r.mu.Unlock()
	return h, nil
}

// AcquireResource acquires res, registering res.Release for teardown.
func (r *Registry) AcquireResource(ctx context.Context, res Resource) (*Handle, error) {
	return r.Acquire(ctx, res.Name(), func(ctx context.Context) (Info, ReleaseFunc, error) {
		info, err := res.Acquire(ctx)
		if err != nil {
			return nil, nil, err
		}
		return info, res.Release, nil
	})
}

// ReleaseAll releases every handle in reverse acquisition order, exactly
// once each, continuing past failures. The registry is empty afterwards, so
// a second call returns no outcomes.
func (r *Registry) ReleaseAll(ctx context.Context) []Outcome {
	r.mu.Lock()
	handles := r.handles
	r.handles = nil
	r.mu.Unlock()

	slices.Reverse(handles)

	outcomes := make([]Outcome, 0, len(handles))
	for _, h := range handles {
		out := Outcome{Name: h.Name}
		if err := r.release(ctx, h); err != nil {
			out.Err = &ReleaseError{Name: h.Name, Cause: err}
		}
		h.Acquired = false
		outcomes = append(outcomes, out)
	}
	return outcomes
}

// Close releases every handle like ReleaseAll and refuses further
// acquisitions.
func (r *Registry) Close(ctx context.Context) []Outcome {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return r.ReleaseAll(ctx)
}

func (r *Registry) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Len returns the number of held handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Names returns held handle names in acquisition order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.handles))
	for i, h := range r.handles {
		names[i] = h.Name
	}
	return names
}

func (r *Registry) release(ctx context.Context, h *Handle) error {
	if h.release == nil {
		return nil
	}
	if r.releaseTimeout <= 0 {
		return safeRelease(ctx, h.release)
	}

	ctx, cancel := context.WithTimeout(ctx, r.releaseTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- safeRelease(ctx, h.release) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// The release goroutine is abandoned; it still sees ctx cancelled.
		return ErrReleaseTimeout
	}
}

func safeAcquire(ctx context.Context, fn AcquireFunc) (info Info, release ReleaseFunc, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v, Stack: string(debug.Stack())}
		}
	}()
	return fn(ctx)
}

func safeRelease(ctx context.Context, fn ReleaseFunc) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v, Stack: string(debug.Stack())}
		}
	}()
	return fn(ctx)
}
