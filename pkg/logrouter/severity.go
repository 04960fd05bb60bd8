package logrouter

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Severity orders log records. Higher values are more severe.
type Severity int8

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

// String returns the upper-case level name used in formatted output.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "DEBUG"
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity maps a configuration level name to a Severity.
// Matching is case-insensitive; "warn" is accepted for Warning.
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug", "trace":
		return SeverityDebug, nil
	case "info":
		return SeverityInfo, nil
	case "warn", "warning":
		return SeverityWarning, nil
	case "error", "critical":
		return SeverityError, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownSeverity, name)
	}
}

func (s Severity) zerologLevel() zerolog.Level {
	switch s {
	case SeverityDebug:
		return zerolog.DebugLevel
	case SeverityInfo:
		return zerolog.InfoLevel
	case SeverityWarning:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func (s Severity) color() string {
	switch s {
	case SeverityDebug:
		return "\033[36m"
	case SeverityInfo:
		return "\033[32m"
	case SeverityWarning:
		return "\033[33m"
	default:
		return "\033[31m"
	}
}
