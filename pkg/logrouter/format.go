package logrouter

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/gest/pkg/log"
)

// formatter turns a record into the exact bytes a sink appends, trailing
// newline included.
type formatter interface {
	format(rec Record, backtrace bool) []byte
}

func newFormatter(spec SinkSpec) (formatter, error) {
	switch {
	case spec.Format == FormatJSON:
		return zerologFormatter{}, nil
	case spec.Format == "" && spec.Target == TargetConsole:
		return zerologFormatter{console: true, color: spec.Color}, nil
	default:
		return compileTemplate(spec.Format, spec.Color)
	}
}

const consoleTimeFormat = "2006-01-02 15:04:05"

// zerologFormatter renders through zerolog, either as JSON or through
// zerolog.ConsoleWriter.
type zerologFormatter struct {
	console bool
	color   bool
}

func (f zerologFormatter) format(rec Record, backtrace bool) []byte {
	var buf bytes.Buffer
	zl := zerolog.New(&buf)
	if f.console {
		zl = zerolog.New(zerolog.ConsoleWriter{
			Out:        &buf,
			NoColor:    !f.color,
			TimeFormat: consoleTimeFormat,
		})
	}

	event := zl.WithLevel(rec.Severity.zerologLevel()).
		Time(zerolog.TimestampFieldName, rec.Time)
	if src := rec.Source.String(); src != "" {
		event = event.Str(zerolog.CallerFieldName, src)
	}
	for _, field := range rec.Fields {
		event = addField(event, field)
	}
	if backtrace && rec.Detail != "" {
		event = event.Str(log.DetailKey, rec.Detail)
	}
	event.Msg(rec.Message)
	return buf.Bytes()
}

func addField(event *zerolog.Event, f log.Field) *zerolog.Event {
	switch v := f.Value.(type) {
	case string:
		return event.Str(f.Key, v)
	case int:
		return event.Int(f.Key, v)
	case int64:
		return event.Int64(f.Key, v)
	case bool:
		return event.Bool(f.Key, v)
	case time.Duration:
		return event.Dur(f.Key, v)
	case error:
		return event.AnErr(f.Key, v)
	default:
		return event.Interface(f.Key, v)
	}
}

// Template placeholders follow the {name} / {name:spec} style of the
// config file's format key.
type templateFormatter struct {
	parts    []templatePart
	hasExtra bool
	color    bool
}

type templatePart struct {
	literal string
	field   string
	layout  string // time layout for {time}
	align   byte   // '<', '>', '^' or 0
	fill    byte
	width   int
}

var templateFields = map[string]bool{
	"time":     true,
	"level":    true,
	"name":     true,
	"module":   true,
	"function": true,
	"line":     true,
	"file":     true,
	"message":  true,
	"extra":    true,
}

func compileTemplate(tmpl string, color bool) (*templateFormatter, error) {
	f := &templateFormatter{color: color}
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			f.parts = append(f.parts, templatePart{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch {
		case c == '{' && i+1 < len(tmpl) && tmpl[i+1] == '{':
			lit.WriteByte('{')
			i++
		case c == '}' && i+1 < len(tmpl) && tmpl[i+1] == '}':
			lit.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(tmpl[i:], '}')
			if end < 0 {
				return nil, fmt.Errorf("%w: unclosed placeholder at offset %d", ErrBadTemplate, i)
			}
			part, err := parsePlaceholder(tmpl[i+1 : i+end])
			if err != nil {
				return nil, err
			}
			flush()
			if part.field == "extra" {
				f.hasExtra = true
			}
			f.parts = append(f.parts, part)
			i += end
		case c == '}':
			return nil, fmt.Errorf("%w: unmatched '}' at offset %d", ErrBadTemplate, i)
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return f, nil
}

func parsePlaceholder(body string) (templatePart, error) {
	name, spec, hasSpec := strings.Cut(body, ":")
	if !templateFields[name] {
		return templatePart{}, fmt.Errorf("%w: unknown field {%s}", ErrBadTemplate, name)
	}
	part := templatePart{field: name}
	if name == "time" {
		part.layout = "2006-01-02 15:04:05.000"
		if hasSpec {
			part.layout = timeLayout(spec)
		}
		return part, nil
	}
	if hasSpec {
		if err := parseAlign(spec, &part); err != nil {
			return templatePart{}, err
		}
	}
	return part, nil
}

// parseAlign accepts [fill]align width, e.g. "<8", " <8", "*^10".
func parseAlign(spec string, part *templatePart) error {
	part.fill = ' '
	if len(spec) >= 2 && strings.IndexByte("<>^", spec[1]) >= 0 {
		part.fill = spec[0]
		spec = spec[1:]
	}
	if spec == "" || strings.IndexByte("<>^", spec[0]) < 0 {
		return fmt.Errorf("%w: bad alignment %q", ErrBadTemplate, spec)
	}
	part.align = spec[0]
	width, err := strconv.Atoi(spec[1:])
	if err != nil || width < 0 {
		return fmt.Errorf("%w: bad width %q", ErrBadTemplate, spec)
	}
	part.width = width
	return nil
}

var timeTokens = []struct{ token, layout string }{
	{"YYYY", "2006"},
	{"YY", "06"},
	{"MMMM", "January"},
	{"MMM", "Jan"},
	{"MM", "01"},
	{"DD", "02"},
	{"dddd", "Monday"},
	{"ddd", "Mon"},
	{"HH", "15"},
	{"hh", "03"},
	{"mm", "04"},
	{"ss", "05"},
	{"SSSSSS", "000000"},
	{"SSS", "000"},
	{"ZZ", "-0700"},
	{"Z", "-07:00"},
	{"A", "PM"},
}

// timeLayout converts a YYYY-MM-DD style pattern to a Go time layout.
func timeLayout(pattern string) string {
	var out strings.Builder
	for i := 0; i < len(pattern); {
		matched := false
		for _, t := range timeTokens {
			if strings.HasPrefix(pattern[i:], t.token) {
				out.WriteString(t.layout)
				i += len(t.token)
				matched = true
				break
			}
		}
		if !matched {
			out.WriteByte(pattern[i])
			i++
		}
	}
	return out.String()
}

func (f *templateFormatter) format(rec Record, backtrace bool) []byte {
	var buf bytes.Buffer
	for _, p := range f.parts {
		if p.field == "" {
			buf.WriteString(p.literal)
			continue
		}
		value := f.value(p, rec)
		padded := pad(value, p)
		if p.field == "level" && f.color {
			buf.WriteString(rec.Severity.color())
			buf.WriteString(padded)
			buf.WriteString("\033[0m")
			continue
		}
		buf.WriteString(padded)
	}
	if !f.hasExtra && len(rec.Fields) > 0 {
		buf.WriteByte(' ')
		buf.WriteString(renderFields(rec.Fields))
	}
	buf.WriteByte('\n')
	if backtrace && rec.Detail != "" {
		buf.WriteString(rec.Detail)
		if !strings.HasSuffix(rec.Detail, "\n") {
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

func (f *templateFormatter) value(p templatePart, rec Record) string {
	switch p.field {
	case "time":
		return rec.Time.Format(p.layout)
	case "level":
		return rec.Severity.String()
	case "name", "module":
		return rec.Source.Module
	case "function":
		return rec.Source.Function
	case "line":
		return strconv.Itoa(rec.Source.Line)
	case "file":
		return filepath.Base(rec.Source.File)
	case "message":
		return rec.Message
	case "extra":
		return renderFields(rec.Fields)
	}
	return ""
}

func pad(s string, p templatePart) string {
	n := p.width - len(s)
	if p.align == 0 || n <= 0 {
		return s
	}
	fill := func(k int) string { return strings.Repeat(string(p.fill), k) }
	switch p.align {
	case '<':
		return s + fill(n)
	case '>':
		return fill(n) + s
	default:
		return fill(n/2) + s + fill(n-n/2)
	}
}

func renderFields(fields []log.Field) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(f.Key)
		b.WriteByte('=')
		switch v := f.Value.(type) {
		case string:
			if strings.ContainsAny(v, " \t\"=") {
				b.WriteString(strconv.Quote(v))
			} else {
				b.WriteString(v)
			}
		case error:
			b.WriteString(strconv.Quote(v.Error()))
		default:
			fmt.Fprint(&b, v)
		}
	}
	return b.String()
}
