package logrouter

import (
	"fmt"
	"io"
	"strings"
)

// Target selects where a sink writes.
type Target int

const (
	// TargetConsole writes to a stream (stderr by default) and never rotates.
	TargetConsole Target = iota
	// TargetFile writes every accepted record to a rotating file.
	TargetFile
	// TargetErrorFile is a rotating file that only accepts Error records.
	TargetErrorFile
)

func (t Target) String() string {
	switch t {
	case TargetConsole:
		return "console"
	case TargetFile:
		return "file"
	case TargetErrorFile:
		return "error-file"
	default:
		return "unknown"
	}
}

// ParseTarget maps a configuration name to a Target.
func ParseTarget(name string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "console", "stderr":
		return TargetConsole, nil
	case "file":
		return TargetFile, nil
	case "error-file", "errorfile", "errors":
		return TargetErrorFile, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownTarget, name)
	}
}

const (
	// DefaultMaxBytes is the rotation threshold used when MaxBytes is unset.
	DefaultMaxBytes int64 = 10 << 20

	// FormatJSON selects zerolog's JSON encoding instead of a template.
	FormatJSON = "json"
)

// SinkSpec configures one destination.
type SinkSpec struct {
	// Name identifies the sink in error reports. Defaults to the target name.
	Name        string
	Target      Target
	MinSeverity Severity

	// Format is a template such as
	// "{time:YYYY-MM-DD HH:mm:ss} | {level: <8} | {name}:{function}:{line} | {message}",
	// or FormatJSON. Empty selects zerolog's console layout for console sinks
	// and DefaultFormat for file sinks.
	Format string

	// Writer overrides the console destination. Ignored by file sinks.
	Writer io.Writer
	// Color enables ANSI level colours on console sinks.
	Color bool

	// Dir and Prefix place file sinks at Dir/Prefix_<timestamp>.log.
	Dir    string
	Prefix string
	// MaxBytes is the rotation threshold for file sinks.
	MaxBytes int64
	// Retention is the number of rotated files kept per sink. Zero keeps all.
	Retention int
	// Compress gzips rotated files.
	Compress bool

	// Backtrace writes Record.Detail below the formatted line.
	Backtrace bool
}

// DefaultFormat is the file sink layout when SinkSpec.Format is empty.
const DefaultFormat = "{time:YYYY-MM-DD HH:mm:ss} | {level: <8} | {name}:{function}:{line} | {message}"

func (s SinkSpec) normalize() (SinkSpec, error) {
	if s.Name == "" {
		s.Name = s.Target.String()
	}
	switch s.Target {
	case TargetConsole:
	case TargetFile, TargetErrorFile:
		if s.Prefix == "" {
			return s, fmt.Errorf("sink %s: file prefix is required", s.Name)
		}
		if s.Dir == "" {
			s.Dir = "."
		}
		if s.MaxBytes <= 0 {
			s.MaxBytes = DefaultMaxBytes
		}
		if s.Retention < 0 {
			return s, fmt.Errorf("sink %s: retention must not be negative", s.Name)
		}
		if s.Format == "" {
			s.Format = DefaultFormat
		}
		if s.Target == TargetErrorFile && s.MinSeverity < SeverityError {
			s.MinSeverity = SeverityError
		}
	default:
		return s, fmt.Errorf("sink %s: %w: %d", s.Name, ErrUnknownTarget, s.Target)
	}
	return s, nil
}
