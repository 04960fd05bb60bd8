package logrouter

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/gest/pkg/log"
)

func TestTemplate_DefaultFormat(t *testing.T) {
	f, err := compileTemplate(DefaultFormat, false)
	require.NoError(t, err)

	rec := Record{
		Time:     time.Date(2026, 10, 19, 8, 30, 15, 0, time.UTC),
		Severity: SeverityInfo,
		Source:   Source{Module: "main", Function: "run", Line: 42},
		Message:  "Logger initialized successfully",
	}
	got := string(f.format(rec, false))
	assert.Equal(t, "2026-10-19 08:30:15 | INFO     | main:run:42 | Logger initialized successfully\n", got)
}

func TestTemplate_Alignment(t *testing.T) {
	tests := []struct {
		tmpl string
		want string
	}{
		{"[{level:>7}]", "[   INFO]\n"},
		{"[{level:*^8}]", "[**INFO**]\n"},
		{"[{level:<2}]", "[INFO]\n"},
		{"{{{message}}}", "{m}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.tmpl, func(t *testing.T) {
			f, err := compileTemplate(tt.tmpl, false)
			require.NoError(t, err)
			got := f.format(Record{Severity: SeverityInfo, Message: "m"}, false)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestTemplate_Fields(t *testing.T) {
	rec := Record{
		Severity: SeverityError,
		Message:  "acquire failed",
		Fields: []log.Field{
			log.String("resource", "camera"),
			log.Err(errors.New("device busy")),
		},
	}

	f, err := compileTemplate("{message}", false)
	require.NoError(t, err)
	assert.Equal(t, "acquire failed resource=camera error=\"device busy\"\n", string(f.format(rec, false)))

	f, err = compileTemplate("{message} [{extra}]", false)
	require.NoError(t, err)
	assert.Equal(t, "acquire failed [resource=camera error=\"device busy\"]\n", string(f.format(rec, false)))
}

func TestTemplate_Color(t *testing.T) {
	f, err := compileTemplate("{level}", true)
	require.NoError(t, err)
	assert.Equal(t, "\033[31mERROR\033[0m\n", string(f.format(Record{Severity: SeverityError}, false)))
}

func TestTemplate_Errors(t *testing.T) {
	for _, tmpl := range []string{"{message", "{bogus}", "message}", "{level:8}", "{level:<x}"} {
		_, err := compileTemplate(tmpl, false)
		assert.ErrorIs(t, err, ErrBadTemplate, tmpl)
	}
}

func TestTimeLayout(t *testing.T) {
	tests := map[string]string{
		"YYYY-MM-DD HH:mm:ss":     "2006-01-02 15:04:05",
		"YYYY-MM-DD HH:mm:ss.SSS": "2006-01-02 15:04:05.000",
		"DD MMM YY hh:mm A":       "02 Jan 06 03:04 PM",
		"HH:mm:ss ZZ":             "15:04:05 -0700",
	}
	for in, want := range tests {
		assert.Equal(t, want, timeLayout(in), in)
	}
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in      string
		want    Severity
		wantErr bool
	}{
		{"DEBUG", SeverityDebug, false},
		{"info", SeverityInfo, false},
		{" Warning ", SeverityWarning, false},
		{"warn", SeverityWarning, false},
		{"ERROR", SeverityError, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseSeverity(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnknownSeverity)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
	assert.True(t, SeverityDebug < SeverityInfo && SeverityInfo < SeverityWarning && SeverityWarning < SeverityError)
}

func TestShortFuncName(t *testing.T) {
	assert.Equal(t, "(*Controller).Start", shortFuncName("github.com/bft-labs/gest/pkg/lifecycle.(*Controller).Start"))
	assert.Equal(t, "main", shortFuncName("main.main"))
	assert.Equal(t, "Run.func1", shortFuncName("github.com/bft-labs/gest/internal/modes.Run.func1"))
}
