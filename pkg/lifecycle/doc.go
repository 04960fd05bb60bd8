// Package lifecycle sequences a gest session and guarantees teardown.
//
// A Controller moves through Init, ModeSelect, Running, ShuttingDown and
// Terminated. Start configures the log router, acquires resources through a
// resource.Registry, asks a mode.Selector for a mode and runs it. Every exit
// path (normal return, cancelled selection, fault, interrupt) goes through
// Shutdown, which releases resources in reverse acquisition order and writes
// one final record.
//
// # Usage
//
//	ctrl := lifecycle.NewController(router,
//	    lifecycle.WithRegistry(resource.NewRegistry(resource.WithReleaseTimeout(10*time.Second))),
//	)
//	code := ctrl.Start(ctx, lifecycle.Collaborators{
//	    Resources: []resource.Resource{detector, camera},
//	    Selector:  mode.Static{Name: "main"},
//	    Modes:     modes,
//	}, cfg)
//	os.Exit(int(code))
//
// # State Machine
//
// Valid state transitions:
//   - Init -> ModeSelect, ShuttingDown
//   - ModeSelect -> Running, ShuttingDown
//   - Running -> ShuttingDown
//   - ShuttingDown -> Terminated
//
// Terminated is absorbing.
//
// # Exit codes
//
// Normal maps to 0, Fault to 1, a configuration failure to 2 and an
// interrupt to 130.
package lifecycle
