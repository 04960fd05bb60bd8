package lifecycle

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/gest/pkg/log"
	"github.com/bft-labs/gest/pkg/logrouter"
	"github.com/bft-labs/gest/pkg/mode"
	"github.com/bft-labs/gest/pkg/resource"
)

// LogRouter is the part of logrouter.Router the controller drives.
type LogRouter interface {
	Configure(specs []logrouter.SinkSpec) error
	Logger(module string) log.Logger
}

// Settings supplies the sink configuration applied at startup.
type Settings interface {
	Sinks() ([]logrouter.SinkSpec, error)
}

// Collaborators are the external pieces a session sequences. Resources are
// acquired in slice order and released in reverse.
type Collaborators struct {
	Resources []resource.Resource
	Selector  mode.Selector
	Modes     []mode.Mode
}

// Controller drives one session from Init to Terminated.
type Controller struct {
	manager  *DefaultManager
	router   LogRouter
	registry *resource.Registry
	logger   log.Logger

	sessionID       string
	shutdownTimeout time.Duration
	now             func() time.Time

	mu         sync.Mutex
	started    bool
	startedAt  time.Time
	reason     Reason
	configFail bool

	shutdownOnce sync.Once
	done         chan struct{}
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithRegistry supplies the registry used for acquisition and teardown.
func WithRegistry(r *resource.Registry) ControllerOption {
	return func(c *Controller) { c.registry = r }
}

// WithEventEmitter receives every state transition.
func WithEventEmitter(e EventEmitter) ControllerOption {
	return func(c *Controller) { c.manager.eventEmitter = e }
}

// WithSessionID overrides the generated session identifier.
func WithSessionID(id string) ControllerOption {
	return func(c *Controller) { c.sessionID = id }
}

// WithShutdownTimeout bounds how long teardown waits for the run loop to
// return once cancelled.
func WithShutdownTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) { c.shutdownTimeout = d }
}

// WithClock overrides the time source used for run duration.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// NewController creates a controller that logs through router.
func NewController(router LogRouter, opts ...ControllerOption) *Controller {
	logger := router.Logger("lifecycle")
	c := &Controller{
		manager:         NewManager(logger, nil),
		router:          router,
		registry:        resource.NewRegistry(),
		logger:          logger,
		sessionID:       uuid.NewString(),
		shutdownTimeout: ShutdownTimeout,
		now:             time.Now,
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.startedAt = c.now()
	return c
}

func (c *Controller) State() State          { return c.manager.State() }
func (c *Controller) SessionID() string     { return c.sessionID }
func (c *Controller) Done() <-chan struct{} { return c.done }

// Reason returns the shutdown reason. Meaningful once Done is closed.
func (c *Controller) Reason() Reason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// ExitCode maps the shutdown reason to a process exit status.
func (c *Controller) ExitCode() ExitCode {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.configFail:
		return ExitConfig
	case c.reason == ReasonFault:
		return ExitFault
	case c.reason == ReasonInterrupted:
		return ExitInterrupted
	default:
		return ExitOK
	}
}

// Start runs a full session: configure logging, acquire resources, select a
// mode, run it, tear down. It always ends in Terminated and never lets a
// collaborator error or panic escape. Cancelling ctx interrupts the session.
func (c *Controller) Start(ctx context.Context, collab Collaborators, settings Settings) ExitCode {
	if !c.markStarted() {
		c.logger.Error("start rejected", log.Err(ErrAlreadyStarted))
		return ExitFault
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.manager.SetCancel(cancel)

	if err := c.configureLogging(settings); err != nil {
		c.mu.Lock()
		c.configFail = true
		c.mu.Unlock()
		c.logger.Error("logging configuration failed", log.Err(err), diagnostics(err))
		return c.finish(ReasonFault)
	}

	if reason, ok := c.acquire(runCtx, collab.Resources); !ok {
		return c.finish(reason)
	}

	if err := c.manager.TransitionTo(StateModeSelect, "resources acquired"); err != nil {
		// Shutdown already began elsewhere.
		return c.finish(ReasonInterrupted)
	}

	choice, reason, ok := c.choose(runCtx, collab)
	if !ok {
		return c.finish(reason)
	}

	if err := c.manager.TransitionTo(StateRunning, "mode "+choice.Mode.Name+" selected"); err != nil {
		return c.finish(ReasonInterrupted)
	}
	return c.finish(c.run(runCtx, choice.Mode))
}

func (c *Controller) markStarted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.manager.State() != StateInit {
		return false
	}
	c.started = true
	c.startedAt = c.now()
	return true
}

func (c *Controller) configureLogging(settings Settings) error {
	var specs []logrouter.SinkSpec
	err := call(func() error {
		var err error
		specs, err = settings.Sinks()
		if err != nil {
			return err
		}
		return c.router.Configure(specs)
	})
	if err != nil {
		return &ConfigError{Cause: err}
	}
	c.logger.Info("logging configured",
		log.Int("sinks", len(specs)),
		log.String("session", c.sessionID),
	)
	return nil
}

// acquire registers resources in order and stops at the first failure.
func (c *Controller) acquire(ctx context.Context, resources []resource.Resource) (Reason, bool) {
	for _, res := range resources {
		if ctx.Err() != nil {
			c.logger.Info("interrupted during startup")
			return ReasonInterrupted, false
		}
		h, err := c.registry.AcquireResource(ctx, res)
		if err != nil {
			if errors.Is(err, resource.ErrClosed) {
				// Teardown already ran and the registry released res.
				return ReasonInterrupted, false
			}
			if ctx.Err() != nil {
				c.logger.Info("interrupted during startup", log.String("resource", res.Name()))
				return ReasonInterrupted, false
			}
			var acqErr *resource.AcquireError
			name := res.Name()
			if errors.As(err, &acqErr) {
				name = acqErr.Name
			}
			c.logger.Error("resource acquisition failed",
				log.String("resource", name),
				log.Err(err),
				diagnostics(err),
			)
			return ReasonFault, false
		}
		fields := []log.Field{log.String("resource", h.Name)}
		for k, v := range h.Info {
			fields = append(fields, log.Any(k, v))
		}
		c.logger.Info("resource acquired", fields...)
	}
	return ReasonNormal, true
}

func (c *Controller) choose(ctx context.Context, collab Collaborators) (mode.Choice, Reason, bool) {
	if collab.Selector == nil {
		c.logger.Error("mode selection failed", log.Err(mode.ErrNoModes))
		return mode.Choice{}, ReasonFault, false
	}

	var choice mode.Choice
	err := call(func() error {
		var err error
		choice, err = collab.Selector.Choose(ctx, collab.Modes)
		if err != nil {
			return err
		}
		return mode.ValidateChoice(choice, collab.Modes)
	})
	switch {
	case err != nil && ctx.Err() != nil:
		c.logger.Info("mode selection interrupted")
		return choice, ReasonInterrupted, false
	case err != nil:
		c.logger.Error("mode selection failed", log.Err(err), diagnostics(err))
		return choice, ReasonFault, false
	case choice.Cancelled:
		c.logger.Info("mode selection cancelled")
		return choice, ReasonNormal, false
	}
	return choice, ReasonNormal, true
}

// run hands control to the mode's run loop on a tracked worker so teardown
// can wait for it, and returns the resulting shutdown reason.
func (c *Controller) run(ctx context.Context, m mode.Mode) Reason {
	c.logger.Info("entering mode", log.String("mode", m.Name))

	result := make(chan error, 1)
	c.manager.AddWorker()
	go func() {
		defer c.manager.WorkerDone()
		result <- call(func() error { return m.Run(ctx) })
	}()

	var err error
	select {
	case err = <-result:
	case <-ctx.Done():
		c.logger.Info("run interrupted", log.String("mode", m.Name))
		return ReasonInterrupted
	}

	switch {
	case ctx.Err() != nil && (err == nil || errors.Is(err, context.Canceled)):
		return ReasonInterrupted
	case err != nil:
		fault := &RunFault{Mode: m.Name, Cause: err}
		c.logger.Error("run loop failed", log.String("mode", m.Name), log.Err(fault), diagnostics(err))
		return ReasonFault
	default:
		c.logger.Info("run loop finished", log.String("mode", m.Name))
		return ReasonNormal
	}
}

func (c *Controller) finish(reason Reason) ExitCode {
	c.Shutdown(reason)
	return c.ExitCode()
}

// Shutdown cancels the run loop, releases every acquired resource in
// reverse order and moves to Terminated. Only the first call has any effect;
// concurrent callers block until that teardown completes.
func (c *Controller) Shutdown(reason Reason) {
	c.shutdownOnce.Do(func() { c.teardown(reason) })
}

func (c *Controller) teardown(reason Reason) {
	c.mu.Lock()
	c.reason = reason
	c.mu.Unlock()

	if err := c.manager.TransitionTo(StateShuttingDown, reason.String()); err != nil {
		c.logger.Warn("unexpected state at shutdown", log.Err(err))
	}

	c.manager.Cancel()
	_ = c.manager.WaitWithTimeout(c.shutdownTimeout)

	released, failures := c.releaseAll()

	c.logger.Info("session finished",
		log.String("reason", reason.String()),
		log.Duration("run_duration", c.now().Sub(c.startedAtTime())),
		log.Int("released", released),
		log.Int("release_failures", failures),
		log.String("session", c.sessionID),
	)

	if err := c.manager.TransitionTo(StateTerminated, "teardown complete"); err != nil {
		c.logger.Warn("unexpected state after teardown", log.Err(err))
	}
	close(c.done)
}

// releaseAll closes the registry, logging each failed release without
// stopping.
func (c *Controller) releaseAll() (released, failures int) {
	outcomes := c.registry.Close(context.Background())
	for _, out := range outcomes {
		if out.Err != nil {
			failures++
			c.logger.Error("resource release failed",
				log.String("resource", out.Name),
				log.Err(out.Err),
				diagnostics(out.Err),
			)
			continue
		}
		c.logger.Debug("resource released", log.String("resource", out.Name))
	}
	return len(outcomes), failures
}

func (c *Controller) startedAtTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startedAt
}

func newPanicError(v any) error {
	return &resource.PanicError{Value: v, Stack: string(debug.Stack())}
}
