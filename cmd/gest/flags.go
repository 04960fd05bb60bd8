package main

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/bft-labs/gest/internal/cliconfig"
	"github.com/bft-labs/gest/internal/gui"
	"github.com/bft-labs/gest/pkg/mode"
)

// sizeValue is a pflag.Value accepting "10MB" style byte counts.
type sizeValue struct{ dst *int64 }

func newSizeValue(dst *int64) *sizeValue { return &sizeValue{dst: dst} }

func (v *sizeValue) String() string {
	if v.dst == nil {
		return "0"
	}
	return strconv.FormatInt(*v.dst, 10)
}

func (v *sizeValue) Set(s string) error {
	n, err := cliconfig.ParseSize(s)
	if err != nil {
		return err
	}
	*v.dst = n
	return nil
}

func (v *sizeValue) Type() string { return "size" }

func newSessionID() string { return uuid.NewString() }

// selectorOf avoids handing a nil *gui.Surface on as a non-nil interface.
func selectorOf(s *gui.Surface) mode.Selector {
	if s == nil {
		return nil
	}
	return s
}
