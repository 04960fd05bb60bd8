package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/gest/internal/cliconfig"
	"github.com/bft-labs/gest/internal/modes"
	"github.com/bft-labs/gest/pkg/lifecycle"
	"github.com/bft-labs/gest/pkg/logrouter"
	"github.com/bft-labs/gest/pkg/mode"
	"github.com/bft-labs/gest/pkg/resource"
)

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[logging]
level = "ERROR"
log_dir = "/from/file"
backup_count = 2
`), 0o644))
	t.Setenv("GEST_BACKUP_COUNT", "7")

	base := cliconfig.DefaultConfig()
	base.LogDir = "/from/flag"

	cfg, err := loadConfig(base, path, map[string]bool{"log-dir": true})
	require.NoError(t, err)
	assert.Equal(t, "/from/flag", cfg.LogDir)
	assert.Equal(t, "ERROR", cfg.Level)
	assert.Equal(t, 7, cfg.BackupCount)
	assert.Equal(t, path, cfg.ConfigPath)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadConfig(cliconfig.DefaultConfig(), filepath.Join(t.TempDir(), "none.toml"), map[string]bool{})
	require.NoError(t, err)
	assert.Empty(t, cfg.ConfigPath)
	assert.Equal(t, cliconfig.DefaultLogDir, cfg.LogDir)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: shouting\n"), 0o644))

	_, err := loadConfig(cliconfig.DefaultConfig(), path, map[string]bool{})
	assert.Error(t, err)
}

func TestSettings(t *testing.T) {
	_, err := settings{err: assert.AnError}.Sinks()
	assert.ErrorIs(t, err, assert.AnError)

	specs, err := settings{cfg: cliconfig.DefaultConfig()}.Sinks()
	require.NoError(t, err)
	assert.Len(t, specs, 3)
}

func TestSizeValue(t *testing.T) {
	var n int64
	v := newSizeValue(&n)
	require.NoError(t, v.Set("2MB"))
	assert.Equal(t, int64(2<<20), n)
	assert.Equal(t, "2097152", v.String())
	assert.Error(t, v.Set("lots"))
	assert.Equal(t, "size", v.Type())
}

func newTestSession(t *testing.T, cfg cliconfig.Config) *session {
	t.Helper()
	router := logrouter.New()
	t.Cleanup(func() { router.Close() })
	registry := resource.NewRegistry()
	ctrl := lifecycle.NewController(router, lifecycle.WithRegistry(registry))
	return newSession(cfg, router, ctrl, registry)
}

func names(rs []resource.Resource) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Name()
	}
	return out
}

func TestSession_ResourceOrder(t *testing.T) {
	cfg := cliconfig.DefaultConfig()
	cfg.ActuatorPort = "/dev/ttyUSB0"
	cfg.StatusAddr = "127.0.0.1:0"
	cfg.ConfigPath = filepath.Join(t.TempDir(), "config.toml")

	s := newTestSession(t, cfg)
	s.reload = func() ([]logrouter.SinkSpec, error) { return nil, nil }

	rs, deps := s.resources()
	assert.Equal(t, []string{"detector", "camera", "actuator", "status-server", "monitor", "configwatcher"}, names(rs))
	assert.NotNil(t, deps.Frames)
	assert.NotNil(t, deps.Detector)
	assert.NotNil(t, deps.Actuator)
}

func TestSession_DisabledCollaborators(t *testing.T) {
	cfg := cliconfig.DefaultConfig()
	cfg.CameraDevice = ""
	cfg.DetectorURL = ""
	cfg.Heartbeat = ""

	s := newTestSession(t, cfg)
	rs, deps := s.resources()
	assert.Empty(t, rs)
	assert.Nil(t, deps.Frames)
	assert.Nil(t, deps.Detector)
	assert.Nil(t, deps.Actuator)
}

func TestSession_Selector(t *testing.T) {
	cfg := cliconfig.DefaultConfig()

	cfg.Mode = "trainer"
	assert.Equal(t, mode.Static{Name: "trainer"}, newTestSession(t, cfg).selector(nil))

	cfg.Mode = ""
	cfg.Headless = true
	_, ok := newTestSession(t, cfg).selector(nil).(mode.Prompt)
	assert.True(t, ok)

	assert.Nil(t, selectorOf(nil))
}

type recordingView struct {
	shown  []string
	events []modes.Event
}

func (v *recordingView) ShowRunning(name string) { v.shown = append(v.shown, name) }
func (v *recordingView) Observe(ev modes.Event)  { v.events = append(v.events, ev) }

func TestSession_ModesTrackCurrent(t *testing.T) {
	s := newTestSession(t, cliconfig.DefaultConfig())
	view := &recordingView{}
	s.view = view

	all := s.modes(modes.Deps{})
	require.Len(t, all, 2)

	// Without a camera and detector the loop fails straight away.
	err := all[1].Run(context.Background())
	assert.ErrorIs(t, err, modes.ErrNoSource)
	assert.Equal(t, []string{modes.TrainerName}, view.shown)

	s.observe(modes.Event{Gesture: "palm"})
	snap := s.snapshot()
	assert.Equal(t, modes.TrainerName, snap.Mode)
	assert.Equal(t, "palm", snap.Gesture)
	assert.Equal(t, "Init", snap.State)
	assert.Len(t, view.events, 1)

	fields := s.heartbeatFields()
	assert.Equal(t, "state", fields[0].Key)
}

// scriptedControl reports states in order, repeating the last one.
type scriptedControl struct {
	mu       sync.Mutex
	states   []lifecycle.State
	reasons  []lifecycle.Reason
	done     chan struct{}
	doneOnce sync.Once
}

func newScriptedControl(states ...lifecycle.State) *scriptedControl {
	return &scriptedControl{states: states, done: make(chan struct{})}
}

func (c *scriptedControl) State() lifecycle.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.states[0]
	if len(c.states) > 1 {
		c.states = c.states[1:]
	}
	return st
}

func (c *scriptedControl) Done() <-chan struct{} { return c.done }

func (c *scriptedControl) Shutdown(r lifecycle.Reason) {
	c.mu.Lock()
	c.reasons = append(c.reasons, r)
	c.mu.Unlock()
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *scriptedControl) Reasons() []lifecycle.Reason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]lifecycle.Reason(nil), c.reasons...)
}

func TestInterruptOnClose(t *testing.T) {
	tests := []struct {
		name   string
		states []lifecycle.State
		want   []lifecycle.Reason
	}{
		{
			name:   "closed while running",
			states: []lifecycle.State{lifecycle.StateRunning},
			want:   []lifecycle.Reason{lifecycle.ReasonInterrupted},
		},
		{
			name: "closed after a pick but before running",
			states: []lifecycle.State{
				lifecycle.StateModeSelect,
				lifecycle.StateModeSelect,
				lifecycle.StateRunning,
			},
			want: []lifecycle.Reason{lifecycle.ReasonInterrupted},
		},
		{
			name:   "closed during selection cancels it",
			states: []lifecycle.State{lifecycle.StateModeSelect, lifecycle.StateShuttingDown},
		},
		{
			name:   "closed after teardown",
			states: []lifecycle.State{lifecycle.StateTerminated},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := newScriptedControl(tt.states...)
			closed := make(chan struct{})
			close(closed)

			finished := make(chan struct{})
			go func() {
				interruptOnClose(closed, ctrl, time.Millisecond)
				close(finished)
			}()

			select {
			case <-finished:
			case <-time.After(2 * time.Second):
				t.Fatal("interruptOnClose did not return")
			}
			assert.Equal(t, tt.want, ctrl.Reasons())
		})
	}
}

func TestInterruptOnClose_SessionEndsFirst(t *testing.T) {
	ctrl := newScriptedControl(lifecycle.StateRunning)
	ctrl.doneOnce.Do(func() { close(ctrl.done) })

	interruptOnClose(make(chan struct{}), ctrl, time.Millisecond)
	assert.Empty(t, ctrl.Reasons())
}
