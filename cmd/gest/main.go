package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"fyne.io/fyne/v2/app"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/gest/internal/cliconfig"
	"github.com/bft-labs/gest/internal/gui"
	"github.com/bft-labs/gest/internal/journal"
	"github.com/bft-labs/gest/pkg/lifecycle"
	"github.com/bft-labs/gest/pkg/log"
	"github.com/bft-labs/gest/pkg/logrouter"
	"github.com/bft-labs/gest/pkg/resource"
)

const appID = "io.github.bft-labs.gest"

var longHelp = strings.TrimSpace(`
Gest recognises hand gestures from a camera and turns them into actions.

A session acquires the detection engine, the camera and the optional
actuator, status endpoint and heartbeat, lets you pick a mode (main or
trainer), runs it, and releases everything in reverse order on exit.

Exit codes: 0 normal, 1 fault, 2 configuration error, 130 interrupted.
`)

var exampleUsage = strings.TrimSpace(`
  gest
  gest --headless --mode trainer --label thumbs_up
  gest --config $HOME/.gest/config.yaml --detector-url ws://10.0.0.7:8765/ws
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string
	code := lifecycle.ExitOK

	root := &cobra.Command{
		Use:           "gest",
		Short:         "Gesture recognition with an ordered session lifecycle",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			code = run(cfg, cfgFile, changed)
			return nil
		},
	}

	f := root.Flags()
	f.StringVar(&cfgPath, "config", "", "path to config file, TOML or YAML (default: $HOME/.gest/config.toml)")
	f.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "directory for log files")
	f.StringVar(&cfg.Level, "level", cfg.Level, "console log level (DEBUG, INFO, WARNING, ERROR)")
	f.Var(newSizeValue(&cfg.MaxFileSize), "max-file-size", "rotate log files above this size, e.g. 10MB")
	f.IntVar(&cfg.BackupCount, "backup-count", cfg.BackupCount, "rotated log files to keep per sink (0 keeps all)")
	f.StringVar(&cfg.Format, "format", cfg.Format, "log line template, or json")
	f.StringVar(&cfg.ConsoleFormat, "console-format", cfg.ConsoleFormat, "console template; \"pretty\" for the zerolog console layout")
	f.BoolVar(&cfg.Compression, "compression", cfg.Compression, "gzip rotated log files")
	f.BoolVar(&cfg.Color, "color", cfg.Color, "colour console levels")

	f.StringVar(&cfg.Mode, "mode", cfg.Mode, "run this mode without asking (main, trainer, exit)")
	f.BoolVar(&cfg.Headless, "headless", cfg.Headless, "ask for the mode on the terminal instead of a window")
	f.StringVar(&cfg.WindowTitle, "window-title", cfg.WindowTitle, "window title")
	f.DurationVar(&cfg.ReleaseTimeout, "release-timeout", cfg.ReleaseTimeout, "bound on releasing each resource (0 waits forever)")
	f.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "how long to wait for the run loop to stop")
	f.BoolVar(&cfg.WatchConfig, "watch-config", cfg.WatchConfig, "reapply logging settings when the config file changes")

	f.StringVar(&cfg.CameraDevice, "camera", cfg.CameraDevice, "camera index or stream URL (empty disables)")
	f.StringVar(&cfg.DetectorURL, "detector-url", cfg.DetectorURL, "websocket URL of the detection engine (empty disables)")
	f.StringVar(&cfg.ActuatorPort, "actuator-port", cfg.ActuatorPort, "serial port of the action executor (empty disables)")
	f.IntVar(&cfg.ActuatorBaud, "actuator-baud", cfg.ActuatorBaud, "actuator baud rate")
	f.StringVar(&cfg.StatusAddr, "status-addr", cfg.StatusAddr, "address for the status endpoint, e.g. 127.0.0.1:8088 (empty disables)")
	f.StringVar(&cfg.Heartbeat, "heartbeat", cfg.Heartbeat, "heartbeat schedule, cron spec or @every (empty disables)")

	f.StringVar(&cfg.SampleDir, "sample-dir", cfg.SampleDir, "trainer output directory")
	f.StringVar(&cfg.TrainLabel, "label", cfg.TrainLabel, "trainer sample label")
	f.IntVar(&cfg.TrainSamples, "samples", cfg.TrainSamples, "trainer samples to record (0 until stopped)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gest:", err)
		os.Exit(int(lifecycle.ExitConfig))
	}
	fmt.Println("Gest application terminated")
	os.Exit(int(code))
}

// run executes one session and returns its exit code.
func run(flagCfg cliconfig.Config, cfgFile string, changed map[string]bool) lifecycle.ExitCode {
	router := logrouter.New()
	defer router.Close()
	if err := router.Configure(bootstrapSinks()); err != nil {
		fmt.Fprintln(os.Stderr, "gest: bootstrap logging:", err)
		return lifecycle.ExitFault
	}
	logger := router.Logger("main")
	logger.Info("Starting Gest Application...")

	cfg, cfgErr := loadConfig(flagCfg, cfgFile, changed)
	if cfgErr == nil {
		logger.Info("Configuration loaded successfully", log.String("path", cfg.ConfigPath))
	} else {
		// Nothing is acquired; only teardown needs sane bounds.
		d := cliconfig.DefaultConfig()
		cfg.ReleaseTimeout, cfg.ShutdownTimeout = d.ReleaseTimeout, d.ShutdownTimeout
	}

	registry := resource.NewRegistry(resource.WithReleaseTimeout(cfg.ReleaseTimeout))
	opts := []lifecycle.ControllerOption{
		lifecycle.WithRegistry(registry),
		lifecycle.WithShutdownTimeout(cfg.ShutdownTimeout),
	}

	var j *journal.Journal
	sessionID := newSessionID()
	opts = append(opts, lifecycle.WithSessionID(sessionID))
	if cfgErr == nil {
		var err error
		j, err = journal.Open(cfg.LogDir, sessionID, journal.WithLogger(router.Logger("journal")))
		if err != nil {
			logger.Warn("lifecycle journal disabled", log.Err(err))
		} else {
			defer j.Close()
			opts = append(opts, lifecycle.WithEventEmitter(j))
		}
	}

	ctrl := lifecycle.NewController(router, opts...)
	s := newSession(cfg, router, ctrl, registry)
	s.journal = j
	s.reload = func() ([]logrouter.SinkSpec, error) {
		next, err := loadConfig(flagCfg, cfgFile, changed)
		if err != nil {
			return nil, err
		}
		return next.Sinks()
	}

	var collab lifecycle.Collaborators
	var surface *gui.Surface
	if cfgErr == nil {
		resources, deps := s.resources()
		if !cfg.Headless && cfg.Mode == "" {
			surface = gui.New(app.NewWithID(appID), cfg.WindowTitle, cfg.WindowWidth, cfg.WindowHeight)
			s.view = surface
		}
		collab = lifecycle.Collaborators{
			Resources: resources,
			Modes:     s.modes(deps),
			Selector:  s.selector(selectorOf(surface)),
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if surface == nil {
		return ctrl.Start(ctx, collab, settings{cfg: cfg, err: cfgErr})
	}

	// The window owns the main goroutine; the session runs beside it.
	codeCh := make(chan lifecycle.ExitCode, 1)
	go func() {
		codeCh <- ctrl.Start(ctx, collab, settings{cfg: cfg, err: cfgErr})
		surface.Quit()
	}()
	go interruptOnClose(surface.Closed(), ctrl, closePollInterval)
	surface.Run()
	return <-codeCh
}

const closePollInterval = 50 * time.Millisecond

// sessionControl is the part of the controller the window watcher needs.
type sessionControl interface {
	State() lifecycle.State
	Done() <-chan struct{}
	Shutdown(lifecycle.Reason)
}

// interruptOnClose interrupts the session once the window is closed and the
// chosen mode is running. A close during selection surfaces as a cancelled
// choice, but a mode picked just before the close still reaches Running, so
// the state is watched until the session either runs or shuts down.
func interruptOnClose(closed <-chan struct{}, ctrl sessionControl, poll time.Duration) {
	select {
	case <-closed:
	case <-ctrl.Done():
		return
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		switch ctrl.State() {
		case lifecycle.StateRunning:
			ctrl.Shutdown(lifecycle.ReasonInterrupted)
			return
		case lifecycle.StateShuttingDown, lifecycle.StateTerminated:
			return
		}
		select {
		case <-ctrl.Done():
			return
		case <-ticker.C:
		}
	}
}
