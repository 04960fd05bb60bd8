// Package modes holds gest's run loops: "main" recognises gestures and
// drives the actuator, "trainer" records labelled samples for the engine.
package modes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/bft-labs/gest/internal/collab/detector"
	"github.com/bft-labs/gest/pkg/log"
	"github.com/bft-labs/gest/pkg/mode"
)

const (
	MainName    = "main"
	TrainerName = "trainer"
)

var (
	ErrTooManyFailures = errors.New("too many consecutive frame failures")
	ErrNoSource        = errors.New("camera and detector are required")
)

type FrameSource interface {
	ReadFrame(ctx context.Context) ([]byte, error)
}

type Detector interface {
	Detect(ctx context.Context, frame []byte) ([]detector.Detection, error)
}

type Actuator interface {
	Send(ctx context.Context, action string) error
}

// Event is reported to the Observer for every recognised gesture.
type Event struct {
	Mode      string
	Gesture   string
	Score     float64
	Action    string
	Sample    string
	Timestamp time.Time
}

// Deps are the collaborators the run loops share. Actuator may be nil, in
// which case the main loop only reports gestures.
type Deps struct {
	Frames   FrameSource
	Detector Detector
	Actuator Actuator
	Logger   log.Logger
	Observer func(Event)
}

// Settings tune the run loops.
type Settings struct {
	Interval    time.Duration
	Threshold   float64
	Cooldown    time.Duration
	MaxFailures int
	// Actions maps gesture labels to actuator actions. Unmapped labels are
	// reported but not sent.
	Actions map[string]string

	SampleDir string
	Label     string
	Samples   int
}

func DefaultSettings() Settings {
	return Settings{
		Interval:    100 * time.Millisecond,
		Threshold:   0.6,
		Cooldown:    time.Second,
		MaxFailures: 10,
		Actions: map[string]string{
			"swipe_left":  "prev",
			"swipe_right": "next",
			"palm":        "stop",
			"fist":        "grab",
		},
		SampleDir: "samples",
		Label:     "unlabelled",
		Samples:   50,
	}
}

// All returns the modes offered at selection, main first.
func All(d Deps, s Settings) []mode.Mode {
	return []mode.Mode{
		{Name: MainName, Description: "Recognise gestures and perform actions", Run: Main(d, s)},
		{Name: TrainerName, Description: "Record labelled samples for training", Run: Trainer(d, s)},
	}
}

type loop struct {
	name     string
	deps     Deps
	settings Settings
	logger   log.Logger
	failures int
	now      func() time.Time
}

func (d Deps) check() error {
	if d.Frames == nil || d.Detector == nil {
		return ErrNoSource
	}
	return nil
}

func newLoop(name string, d Deps, s Settings) *loop {
	return &loop{name: name, deps: d, settings: s, logger: log.OrNoop(d.Logger), now: time.Now}
}

// step reads and classifies one frame. done reports that the source is
// exhausted; a failed frame yields neither a detection nor an error until
// MaxFailures is reached.
func (l *loop) step(ctx context.Context) (frame []byte, det *detector.Detection, done bool, err error) {
	frame, err = l.deps.Frames.ReadFrame(ctx)
	if errors.Is(err, io.EOF) {
		return nil, nil, true, nil
	}
	if err == nil {
		var found []detector.Detection
		found, err = l.deps.Detector.Detect(ctx, frame)
		if err == nil {
			l.failures = 0
			return frame, best(found, l.settings.Threshold), false, nil
		}
	}
	if ctx.Err() != nil {
		return nil, nil, false, ctx.Err()
	}

	l.failures++
	l.logger.Warn("frame failed", log.String("mode", l.name), log.Int("consecutive", l.failures), log.Err(err))
	if l.settings.MaxFailures > 0 && l.failures >= l.settings.MaxFailures {
		return nil, nil, false, fmt.Errorf("%w: %w", ErrTooManyFailures, err)
	}
	return nil, nil, false, nil
}

func (l *loop) wait(ctx context.Context) error {
	if l.settings.Interval <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(l.settings.Interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (l *loop) report(ev Event) {
	ev.Mode = l.name
	ev.Timestamp = l.now()
	if l.deps.Observer != nil {
		l.deps.Observer(ev)
	}
}

// Main recognises gestures until ctx is cancelled or the frame source ends.
// A gesture repeated within the cooldown is performed once.
func Main(d Deps, s Settings) mode.RunFunc {
	return func(ctx context.Context) error {
		if err := d.check(); err != nil {
			return err
		}
		l := newLoop(MainName, d, s)
		var last string
		var lastAt time.Time

		for {
			_, det, done, err := l.step(ctx)
			if err != nil {
				return err
			}
			if done {
				l.logger.Info("frame source exhausted", log.String("mode", MainName))
				return nil
			}

			if det != nil && !(det.Label == last && l.now().Sub(lastAt) < s.Cooldown) {
				last, lastAt = det.Label, l.now()
				ev := Event{Gesture: det.Label, Score: det.Score}
				if action, ok := s.Actions[det.Label]; ok && d.Actuator != nil {
					if err := d.Actuator.Send(ctx, action); err != nil {
						l.logger.Warn("action failed", log.String("gesture", det.Label), log.String("action", action), log.Err(err))
					} else {
						ev.Action = action
					}
				}
				l.logger.Info("gesture recognised", log.String("gesture", det.Label), log.Any("score", det.Score), log.String("action", ev.Action))
				l.report(ev)
			}

			if err := l.wait(ctx); err != nil {
				return err
			}
		}
	}
}

// Trainer saves frames in which the engine sees a gesture under
// SampleDir/Label until Samples have been written.
func Trainer(d Deps, s Settings) mode.RunFunc {
	return func(ctx context.Context) error {
		if err := d.check(); err != nil {
			return err
		}
		l := newLoop(TrainerName, d, s)
		dir := filepath.Join(s.SampleDir, s.Label)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create sample dir: %w", err)
		}
		l.logger.Info("training started", log.String("label", s.Label), log.String("dir", dir), log.Int("samples", s.Samples))

		saved := 0
		for s.Samples <= 0 || saved < s.Samples {
			frame, det, done, err := l.step(ctx)
			if err != nil {
				return err
			}
			if done {
				break
			}

			if det != nil {
				path := filepath.Join(dir, fmt.Sprintf("%s_%04d.jpg", s.Label, saved+1))
				if err := os.WriteFile(path, frame, 0o644); err != nil {
					return fmt.Errorf("write sample: %w", err)
				}
				saved++
				l.logger.Debug("sample saved", log.String("path", path), log.String("seen", det.Label))
				l.report(Event{Gesture: det.Label, Score: det.Score, Sample: path})
			}

			if err := l.wait(ctx); err != nil {
				return err
			}
		}

		l.logger.Info("training finished", log.String("label", s.Label), log.Int("saved", saved))
		return nil
	}
}

// best returns the highest scoring detection at or above threshold.
func best(found []detector.Detection, threshold float64) *detector.Detection {
	var top *detector.Detection
	for i := range found {
		if found[i].Score < threshold {
			continue
		}
		if top == nil || found[i].Score > top.Score {
			top = &found[i]
		}
	}
	return top
}
