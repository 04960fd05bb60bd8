package configwatcher

import "time"

// DefaultDebounceDelay coalesces the bursts of events a single save emits.
const DefaultDebounceDelay = 100 * time.Millisecond

// Option configures a Plugin.
type Option func(*Plugin)

// WithDebounceDelay sets how long to wait after the last change before
// reloading.
//
// Usage:
//
//	w := configwatcher.New(path, reload, router, logger,
//	    configwatcher.WithDebounceDelay(250*time.Millisecond),
//	)
func WithDebounceDelay(d time.Duration) Option {
	return func(p *Plugin) {
		if d > 0 {
			p.debounceDelay = d
		}
	}
}
