package mode

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoModes     = errors.New("no modes available")
	ErrUnknownMode = errors.New("unknown mode")
	ErrInvalidMode = errors.New("invalid mode")
)

// RunFunc is a mode's run loop. It returns when the session ends normally,
// returns an error on an unrecoverable condition and must return promptly
// once ctx is cancelled.
type RunFunc func(ctx context.Context) error

// Mode is a named, user-selectable run path.
type Mode struct {
	Name        string
	Description string
	Run         RunFunc
}

// Validate reports whether m can be entered.
func (m Mode) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidMode)
	}
	if m.Run == nil {
		return fmt.Errorf("%w: %s has no run loop", ErrInvalidMode, m.Name)
	}
	return nil
}

// Choice is the outcome of a selection: either a Mode or Cancelled.
type Choice struct {
	Mode      Mode
	Cancelled bool
}

// Cancelled is the choice returned when the selection surface is dismissed.
func Cancelled() Choice { return Choice{Cancelled: true} }

// Chose wraps m as a non-cancelled choice.
func Chose(m Mode) Choice { return Choice{Mode: m} }

// Selector presents modes and blocks until the user picks one or dismisses
// the selection. Implementations never return a non-cancelled Choice with an
// invalid Mode. A cancelled ctx yields ctx.Err().
type Selector interface {
	Choose(ctx context.Context, modes []Mode) (Choice, error)
}

// Find returns the mode called name (case-insensitive).
func Find(modes []Mode, name string) (Mode, bool) {
	for _, m := range modes {
		if strings.EqualFold(m.Name, name) {
			return m, true
		}
	}
	return Mode{}, false
}

// Names lists mode names in order.
func Names(modes []Mode) []string {
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = m.Name
	}
	return names
}

// ValidateChoice checks a selector result against the offered modes.
func ValidateChoice(c Choice, modes []Mode) error {
	if c.Cancelled {
		return nil
	}
	if err := c.Mode.Validate(); err != nil {
		return err
	}
	if _, ok := Find(modes, c.Mode.Name); !ok {
		return fmt.Errorf("%w: %q was not offered", ErrUnknownMode, c.Mode.Name)
	}
	return nil
}
