package logrouter

import (
	"strconv"
	"time"

	"github.com/bft-labs/gest/pkg/log"
)

// Source locates the code that produced a record.
type Source struct {
	Module   string
	Function string
	File     string
	Line     int
}

// String renders the source as module:function:line, omitting empty parts.
func (s Source) String() string {
	if s.Module == "" && s.Function == "" && s.Line == 0 {
		return ""
	}
	out := s.Module
	if s.Function != "" {
		out += ":" + s.Function
	}
	if s.Line > 0 {
		out += ":" + strconv.Itoa(s.Line)
	}
	return out
}

// Record is one log event. Records are passed by value and must not be
// modified once handed to Emit; the Fields slice is shared with every sink.
type Record struct {
	Time     time.Time
	Severity Severity
	Source   Source
	Message  string
	Fields   []log.Field

	// Detail holds stack traces or other diagnostic context. It is written
	// only by sinks with Backtrace enabled.
	Detail string
}
