package cliconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/robfig/cron/v3"

	"github.com/bft-labs/gest/pkg/logrouter"
)

const (
	DefaultLogDir      = "logs"
	DefaultMaxFileSize = 10 << 20
	DefaultBackupCount = 5
	DefaultLevel       = "INFO"
	DefaultFormat      = "{time:YYYY-MM-DD HH:mm:ss} | {level} | {name}:{function}:{line} | {message}"
	DefaultWindowTitle = "Gest - Gesture Recognition"
	DefaultDetectorURL = "ws://127.0.0.1:8765/ws"

	// PrettyConsole selects the zerolog console layout for the console sink.
	PrettyConsole = "pretty"
)

// Config holds CLI configuration for gest.
type Config struct {
	// Logging
	LogDir        string
	MaxFileSize   int64
	BackupCount   int
	Level         string
	Format        string
	ConsoleFormat string
	Compression   bool
	Color         bool

	// GUI (display only)
	WindowTitle  string
	WindowWidth  int
	WindowHeight int
	Headless     bool

	// Session
	Mode            string
	ReleaseTimeout  time.Duration
	ShutdownTimeout time.Duration
	WatchConfig     bool

	// Trainer
	SampleDir    string
	TrainLabel   string
	TrainSamples int

	// Collaborators. An empty address disables the collaborator.
	CameraDevice string
	DetectorURL  string
	ActuatorPort string
	ActuatorBaud int
	StatusAddr   string
	Heartbeat    string

	// ConfigPath is the file the configuration was loaded from, if any.
	ConfigPath string
}

// consoleIsTerminal reports whether stderr, where the console sink writes,
// is a terminal. Colour defaults off for files and pipes.
var consoleIsTerminal = func() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		LogDir:          DefaultLogDir,
		MaxFileSize:     DefaultMaxFileSize,
		BackupCount:     DefaultBackupCount,
		Level:           DefaultLevel,
		Format:          DefaultFormat,
		Compression:     true,
		Color:           consoleIsTerminal(),
		WindowTitle:     DefaultWindowTitle,
		WindowWidth:     1200,
		WindowHeight:    800,
		ReleaseTimeout:  10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		WatchConfig:     true,
		SampleDir:       "samples",
		TrainLabel:      "unlabelled",
		TrainSamples:    50,
		CameraDevice:    "0",
		DetectorURL:     DefaultDetectorURL,
		ActuatorBaud:    9600,
		Heartbeat:       "@every 30s",
	}
}

// Validate checks the configuration for errors. Format templates are checked
// when the sinks are built.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LogDir) == "" {
		return fmt.Errorf("log-dir is required")
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max-file-size must be positive")
	}
	if c.BackupCount < 0 {
		return fmt.Errorf("backup-count must not be negative")
	}
	if _, err := logrouter.ParseSeverity(c.Level); err != nil {
		return fmt.Errorf("level: %w", err)
	}
	if c.WindowWidth <= 0 || c.WindowHeight <= 0 {
		return fmt.Errorf("window size must be positive, got %dx%d", c.WindowWidth, c.WindowHeight)
	}
	if c.ReleaseTimeout < 0 {
		return fmt.Errorf("release-timeout must not be negative")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown-timeout must be positive")
	}
	if c.TrainSamples < 0 {
		return fmt.Errorf("train-samples must not be negative")
	}
	if c.ActuatorPort != "" && c.ActuatorBaud <= 0 {
		return fmt.Errorf("actuator-baud must be positive")
	}
	if c.Heartbeat != "" {
		if _, err := cron.ParseStandard(c.Heartbeat); err != nil {
			return fmt.Errorf("heartbeat: %w", err)
		}
	}
	return nil
}

// Sinks maps the logging keys to the three standard sinks: the console at
// the configured level, an all-levels file and an error-only file with
// backtraces.
func (c Config) Sinks() ([]logrouter.SinkSpec, error) {
	level, err := logrouter.ParseSeverity(c.Level)
	if err != nil {
		return nil, err
	}

	consoleFormat := c.ConsoleFormat
	switch consoleFormat {
	case "":
		consoleFormat = c.Format
	case PrettyConsole:
		consoleFormat = ""
	}

	return []logrouter.SinkSpec{
		{
			Name:        "console",
			Target:      logrouter.TargetConsole,
			MinSeverity: level,
			Format:      consoleFormat,
			Color:       c.Color,
		},
		{
			Name:        "all",
			Target:      logrouter.TargetFile,
			MinSeverity: logrouter.SeverityDebug,
			Format:      c.Format,
			Dir:         c.LogDir,
			Prefix:      "gest",
			MaxBytes:    c.MaxFileSize,
			Retention:   c.BackupCount,
			Compress:    c.Compression,
		},
		{
			Name:        "errors",
			Target:      logrouter.TargetErrorFile,
			MinSeverity: logrouter.SeverityError,
			Format:      c.Format,
			Dir:         c.LogDir,
			Prefix:      "gest_errors",
			MaxBytes:    c.MaxFileSize,
			Retention:   c.BackupCount,
			Compress:    c.Compression,
			Backtrace:   true,
		},
	}, nil
}

// ParseSize parses a byte count such as "10MB", "512 KB", "1.5GiB" or
// "2048". Units are binary multiples.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}
	i := len(s)
	for i > 0 && strings.IndexByte("0123456789.", s[i-1]) < 0 {
		i--
	}
	num, unit := strings.TrimSpace(s[:i]), strings.ToUpper(strings.TrimSpace(s[i:]))

	var mult float64
	switch unit {
	case "", "B":
		mult = 1
	case "K", "KB", "KIB":
		mult = 1 << 10
	case "M", "MB", "MIB":
		mult = 1 << 20
	case "G", "GB", "GIB":
		mult = 1 << 30
	default:
		return 0, fmt.Errorf("unknown size unit %q", unit)
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("parse size %q: %w", s, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("size must be positive: %q", s)
	}
	return int64(v * mult), nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt accepts zero so that backup_count = 0 can be expressed.
func (s *configSetter) setInt(flag string, value *int, dst *int) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

func (s *configSetter) setSize(flag, value string, dst *int64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	n, err := ParseSize(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = n
	return nil
}

func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = i
	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
