// Package configwatcher reapplies the logging configuration when the
// config file changes. It watches the file's directory, so editors that
// replace the file on save are seen too.
package configwatcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/gest/pkg/log"
	"github.com/bft-labs/gest/pkg/logrouter"
	"github.com/bft-labs/gest/pkg/resource"
)

// ReloadFunc re-reads the configuration and returns the sinks it describes.
type ReloadFunc func() ([]logrouter.SinkSpec, error)

// Configurer is the part of the log router the plugin drives.
type Configurer interface {
	Configure(specs []logrouter.SinkSpec) error
}

// Plugin watches one config file.
type Plugin struct {
	mu sync.Mutex

	// Configuration
	path          string
	debounceDelay time.Duration
	reload        ReloadFunc
	router        Configurer
	logger        log.Logger

	// Runtime state
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
	reloads  int
}

// New creates a watcher for path. Nothing is watched until Acquire.
func New(path string, reload ReloadFunc, router Configurer, logger log.Logger, opts ...Option) *Plugin {
	p := &Plugin{
		path:          path,
		debounceDelay: DefaultDebounceDelay,
		reload:        reload,
		router:        router,
		logger:        log.OrNoop(logger),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Acquire starts watching. A directory that cannot be watched fails
// acquisition.
func (p *Plugin) Acquire(ctx context.Context) (resource.Info, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(p.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	// The loop outlives Acquire's context; Release stops it.
	watchCtx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	return resource.Info{"path": p.path}, nil
}

// Release stops the watcher and any pending reload.
func (p *Plugin) Release(ctx context.Context) error {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reloads returns how many reloads were applied.
func (p *Plugin) Reloads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloads
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	name := filepath.Base(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			p.debounceReload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn("config watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		p.apply()
	})
}

// apply reloads and reconfigures; on any error the current sinks stay.
func (p *Plugin) apply() {
	specs, err := p.reload()
	if err != nil {
		p.logger.Warn("config reload failed, keeping current logging", log.String("path", p.path), log.Err(err))
		return
	}
	if err := p.router.Configure(specs); err != nil {
		p.logger.Warn("logging reconfiguration failed, keeping current sinks", log.Err(err))
		return
	}

	p.mu.Lock()
	p.reloads++
	p.mu.Unlock()
	p.logger.Info("logging reconfigured", log.String("path", p.path), log.Int("sinks", len(specs)))
}
