package logrouter

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// Router fans records out to a set of sinks. Each sink filters by its own
// minimum severity and serializes its own writes, so Emit is safe to call
// from any goroutine.
type Router struct {
	mu    sync.RWMutex
	sinks []sink
	floor Severity // lowest MinSeverity across sinks
	empty bool

	now     func() time.Time
	onError func(error)
}

// Option configures a Router.
type Option func(*Router)

// WithErrorHandler sets where sink write failures are reported. The default
// prints to stderr.
func WithErrorHandler(fn func(error)) Option {
	return func(r *Router) { r.onError = fn }
}

// WithClock overrides the time source used for record timestamps and log
// file names.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// New creates a Router with no sinks. Records emitted before Configure are
// dropped.
func New(opts ...Option) *Router {
	r := &Router{
		empty: true,
		now:   time.Now,
		onError: func(err error) {
			fmt.Fprintf(os.Stderr, "logrouter: %v\n", err)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Configure replaces the sink set. All new sinks are built before anything is
// swapped; if one fails the previous set stays active and the error is
// returned. Replaced sinks are closed after the swap.
func (r *Router) Configure(specs []SinkSpec) error {
	built := make([]sink, 0, len(specs))
	for _, spec := range specs {
		s, err := buildSink(spec, r.now, r.report)
		if err != nil {
			for _, b := range built {
				b.close()
			}
			return err
		}
		built = append(built, s)
	}

	floor := SeverityError
	for _, s := range built {
		if s.minSeverity() < floor {
			floor = s.minSeverity()
		}
	}

	r.mu.Lock()
	old := r.sinks
	r.sinks = built
	r.floor = floor
	r.empty = len(built) == 0
	r.mu.Unlock()

	return closeSinks(old)
}

// Emit routes rec to every sink whose minimum severity it meets, in call
// order per sink. Write failures go to the error handler.
func (r *Router) Emit(rec Record) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sinks {
		if rec.Severity < s.minSeverity() {
			continue
		}
		if err := s.write(rec); err != nil {
			r.report(fmt.Errorf("sink %s: %w", s.name(), err))
		}
	}
}

// Enabled reports whether any sink would accept a record of severity sev.
func (r *Router) Enabled(sev Severity) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.empty && sev >= r.floor
}

// SinkNames lists the active sinks in configuration order.
func (r *Router) SinkNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.sinks))
	for i, s := range r.sinks {
		names[i] = s.name()
	}
	return names
}

// FilePaths returns the active file of every file sink, keyed by sink name.
func (r *Router) FilePaths() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	paths := map[string]string{}
	for _, s := range r.sinks {
		if fs, ok := s.(*fileSink); ok {
			paths[fs.name()] = fs.Path()
		}
	}
	return paths
}

// Close flushes and closes every sink. The Router keeps accepting Emit calls
// and drops them.
func (r *Router) Close() error {
	r.mu.Lock()
	old := r.sinks
	r.sinks = nil
	r.empty = true
	r.mu.Unlock()
	return closeSinks(old)
}

func (r *Router) report(err error) {
	if r.onError != nil {
		r.onError(err)
	}
}

func closeSinks(sinks []sink) error {
	var errs []error
	for _, s := range sinks {
		if err := s.close(); err != nil {
			errs = append(errs, fmt.Errorf("close sink %s: %w", s.name(), err))
		}
	}
	return errors.Join(errs...)
}
