package logrouter

import "errors"

var (
	ErrUnknownSeverity = errors.New("unknown severity")
	ErrUnknownTarget   = errors.New("unknown sink target")
	ErrBadTemplate     = errors.New("invalid format template")
	ErrSinkClosed      = errors.New("sink closed")
)
