package main

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/bft-labs/gest/internal/cliconfig"
	"github.com/bft-labs/gest/internal/collab/actuator"
	"github.com/bft-labs/gest/internal/collab/camera"
	"github.com/bft-labs/gest/internal/collab/detector"
	"github.com/bft-labs/gest/internal/journal"
	"github.com/bft-labs/gest/internal/modes"
	"github.com/bft-labs/gest/internal/monitor"
	"github.com/bft-labs/gest/internal/statusserver"
	"github.com/bft-labs/gest/pkg/lifecycle"
	"github.com/bft-labs/gest/pkg/log"
	"github.com/bft-labs/gest/pkg/logrouter"
	"github.com/bft-labs/gest/pkg/mode"
	"github.com/bft-labs/gest/pkg/resource"
	"github.com/bft-labs/gest/plugins/configwatcher"
)

// runView is what a mode selector may also show while a mode runs.
type runView interface {
	ShowRunning(name string)
	Observe(ev modes.Event)
}

// session wires the collaborators of one run from the configuration.
type session struct {
	cfg      cliconfig.Config
	router   *logrouter.Router
	ctrl     *lifecycle.Controller
	registry *resource.Registry
	journal  *journal.Journal
	view     runView
	reload   configwatcher.ReloadFunc
	started  time.Time

	mode    atomic.Value // string
	gesture atomic.Value // string
}

func newSession(cfg cliconfig.Config, router *logrouter.Router, ctrl *lifecycle.Controller, registry *resource.Registry) *session {
	s := &session{cfg: cfg, router: router, ctrl: ctrl, registry: registry, started: time.Now()}
	s.mode.Store("")
	s.gesture.Store("")
	return s
}

// resources lists the collaborators in acquisition order. The detector
// comes before the camera so that the camera is released first.
func (s *session) resources() ([]resource.Resource, modes.Deps) {
	var out []resource.Resource
	deps := modes.Deps{Logger: s.router.Logger("modes"), Observer: s.observe}

	if s.cfg.DetectorURL != "" {
		d := detector.New(detector.Config{URL: s.cfg.DetectorURL}, s.router.Logger("detector"))
		deps.Detector = d
		out = append(out, d)
	}
	if s.cfg.CameraDevice != "" {
		c := camera.New(s.cfg.CameraDevice, s.router.Logger("camera"))
		deps.Frames = c
		out = append(out, c)
	}
	if s.cfg.ActuatorPort != "" {
		a := actuator.New(s.cfg.ActuatorPort, s.cfg.ActuatorBaud, s.router.Logger("actuator"))
		deps.Actuator = a
		out = append(out, a)
	}
	if s.cfg.StatusAddr != "" {
		out = append(out, statusserver.New(s.cfg.StatusAddr, s.snapshot, s.router.Logger("status")))
	}
	if s.cfg.Heartbeat != "" {
		out = append(out, monitor.New(s.cfg.Heartbeat, s.router.Logger("monitor"), s.heartbeatFields))
	}
	if s.cfg.WatchConfig && s.cfg.ConfigPath != "" && s.reload != nil {
		out = append(out, configwatcher.New(s.cfg.ConfigPath, s.reload, s.router, s.router.Logger("configwatcher")))
	}
	return out, deps
}

// modes returns the selectable modes, each recording itself as current
// when entered.
func (s *session) modes(deps modes.Deps) []mode.Mode {
	settings := modes.DefaultSettings()
	settings.SampleDir = s.cfg.SampleDir
	settings.Label = s.cfg.TrainLabel
	settings.Samples = s.cfg.TrainSamples

	all := modes.All(deps, settings)
	for i := range all {
		name, run := all[i].Name, all[i].Run
		all[i].Run = func(ctx context.Context) error {
			s.mode.Store(name)
			if s.view != nil {
				s.view.ShowRunning(name)
			}
			return run(ctx)
		}
	}
	return all
}

// selector picks how the mode is chosen: a configured name, a terminal
// prompt when headless, otherwise the window.
func (s *session) selector(window mode.Selector) mode.Selector {
	switch {
	case s.cfg.Mode != "":
		return mode.Static{Name: s.cfg.Mode}
	case s.cfg.Headless || window == nil:
		return mode.Prompt{In: os.Stdin, Out: os.Stdout, Title: s.cfg.WindowTitle}
	default:
		return window
	}
}

func (s *session) observe(ev modes.Event) {
	s.gesture.Store(ev.Gesture)
	if s.journal != nil {
		if err := s.journal.Record(context.Background(), journal.TypeGesture, ev.Gesture, ev); err != nil {
			s.router.Logger("journal").Warn("journal write failed", log.Err(err))
		}
	}
	if s.view != nil {
		s.view.Observe(ev)
	}
}

func (s *session) snapshot() statusserver.Snapshot {
	return statusserver.Snapshot{
		Session:   s.ctrl.SessionID(),
		State:     s.ctrl.State().String(),
		Mode:      s.mode.Load().(string),
		Resources: s.registry.Names(),
		Gesture:   s.gesture.Load().(string),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
	}
}

func (s *session) heartbeatFields() []log.Field {
	return []log.Field{
		log.String("state", s.ctrl.State().String()),
		log.String("mode", s.mode.Load().(string)),
		log.Int("resources", s.registry.Len()),
	}
}
