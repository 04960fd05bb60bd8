package log

import (
	"runtime/debug"
	"time"
)

// Logger is the structured logging facade every gest component logs through.
// The process entry point builds the concrete implementation (a log router
// bound to a module name) and injects it; there is no package-level logger.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field is a key/value pair attached to a log record.
type Field struct {
	Key   string
	Value any
}

// DetailKey marks a field carrying diagnostic context (stack traces, panic
// values). Sinks render it only when they have backtraces enabled.
const DetailKey = "detail"

func String(key, value string) Field { return Field{Key: key, Value: value} }

func Int(key string, value int) Field { return Field{Key: key, Value: value} }

func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value} }

// Err creates an error field with key "error".
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Any creates a field with any value.
func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Detail attaches diagnostic text that only backtrace-enabled sinks print.
func Detail(text string) Field {
	return Field{Key: DetailKey, Value: text}
}

// Stack attaches the calling goroutine's stack as a Detail field.
func Stack() Field {
	return Detail(string(debug.Stack()))
}

// Split separates the Detail field from the ordinary fields.
func Split(fields []Field) (plain []Field, detail string) {
	plain = make([]Field, 0, len(fields))
	for _, f := range fields {
		if f.Key == DetailKey {
			if s, ok := f.Value.(string); ok {
				if detail != "" {
					detail += "\n"
				}
				detail += s
				continue
			}
		}
		plain = append(plain, f)
	}
	return plain, detail
}
