package mode

import (
	"context"
	"fmt"
)

// Static picks a preconfigured mode without user interaction. The name
// "exit" selects Cancelled.
type Static struct {
	Name string
}

func (s Static) Choose(ctx context.Context, modes []Mode) (Choice, error) {
	if err := ctx.Err(); err != nil {
		return Choice{}, err
	}
	if len(modes) == 0 {
		return Choice{}, ErrNoModes
	}
	if s.Name == ExitName {
		return Cancelled(), nil
	}
	m, ok := Find(modes, s.Name)
	if !ok {
		return Choice{}, fmt.Errorf("%w: %q (have %v)", ErrUnknownMode, s.Name, Names(modes))
	}
	return Chose(m), nil
}

// ExitName is the reserved selection meaning "leave without running".
const ExitName = "exit"
