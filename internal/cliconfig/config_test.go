package cliconfig

import (
	"testing"
	"time"

	"github.com/bft-labs/gest/pkg/logrouter"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LogDir != "logs" {
		t.Errorf("LogDir = %v, want logs", cfg.LogDir)
	}
	if cfg.MaxFileSize != 10<<20 {
		t.Errorf("MaxFileSize = %v, want 10MB", cfg.MaxFileSize)
	}
	if cfg.BackupCount != 5 {
		t.Errorf("BackupCount = %v, want 5", cfg.BackupCount)
	}
	if cfg.Level != "INFO" {
		t.Errorf("Level = %v, want INFO", cfg.Level)
	}
	if cfg.WindowTitle != DefaultWindowTitle {
		t.Errorf("WindowTitle = %v, want %v", cfg.WindowTitle, DefaultWindowTitle)
	}
	if cfg.WindowWidth != 1200 || cfg.WindowHeight != 800 {
		t.Errorf("window = %dx%d, want 1200x800", cfg.WindowWidth, cfg.WindowHeight)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestDefaultConfig_ColorFollowsTerminal(t *testing.T) {
	orig := consoleIsTerminal
	t.Cleanup(func() { consoleIsTerminal = orig })

	for _, tty := range []bool{true, false} {
		consoleIsTerminal = func() bool { return tty }
		if got := DefaultConfig().Color; got != tty {
			t.Errorf("Color with terminal=%v = %v", tty, got)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "lowercase level", mutate: func(c *Config) { c.Level = "debug" }},
		{name: "zero backups", mutate: func(c *Config) { c.BackupCount = 0 }},
		{name: "no heartbeat", mutate: func(c *Config) { c.Heartbeat = "" }},
		{name: "missing log dir", mutate: func(c *Config) { c.LogDir = " " }, wantErr: true},
		{name: "zero max size", mutate: func(c *Config) { c.MaxFileSize = 0 }, wantErr: true},
		{name: "negative backups", mutate: func(c *Config) { c.BackupCount = -1 }, wantErr: true},
		{name: "unknown level", mutate: func(c *Config) { c.Level = "LOUD" }, wantErr: true},
		{name: "bad window", mutate: func(c *Config) { c.WindowWidth = 0 }, wantErr: true},
		{name: "negative release timeout", mutate: func(c *Config) { c.ReleaseTimeout = -time.Second }, wantErr: true},
		{name: "zero shutdown timeout", mutate: func(c *Config) { c.ShutdownTimeout = 0 }, wantErr: true},
		{name: "actuator without baud", mutate: func(c *Config) { c.ActuatorPort = "/dev/ttyUSB0"; c.ActuatorBaud = 0 }, wantErr: true},
		{name: "bad heartbeat", mutate: func(c *Config) { c.Heartbeat = "every now and then" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Sinks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "warning"
	cfg.BackupCount = 3

	sinks, err := cfg.Sinks()
	if err != nil {
		t.Fatalf("Sinks() error = %v", err)
	}
	if len(sinks) != 3 {
		t.Fatalf("len(Sinks()) = %d, want 3", len(sinks))
	}

	console, all, errs := sinks[0], sinks[1], sinks[2]
	if console.Target != logrouter.TargetConsole || console.MinSeverity != logrouter.SeverityWarning {
		t.Errorf("console = %+v", console)
	}
	if console.Format != DefaultFormat {
		t.Errorf("console format = %q, want %q", console.Format, DefaultFormat)
	}
	if all.Target != logrouter.TargetFile || all.MinSeverity != logrouter.SeverityDebug || all.Prefix != "gest" {
		t.Errorf("all = %+v", all)
	}
	if all.Retention != 3 || all.MaxBytes != 10<<20 || all.Dir != "logs" {
		t.Errorf("all rotation = %+v", all)
	}
	if errs.Target != logrouter.TargetErrorFile || errs.MinSeverity != logrouter.SeverityError || !errs.Backtrace {
		t.Errorf("errors = %+v", errs)
	}
	if errs.Prefix != "gest_errors" {
		t.Errorf("errors prefix = %q", errs.Prefix)
	}
}

func TestConfig_SinksPrettyConsole(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConsoleFormat = PrettyConsole

	sinks, err := cfg.Sinks()
	if err != nil {
		t.Fatalf("Sinks() error = %v", err)
	}
	if sinks[0].Format != "" {
		t.Errorf("console format = %q, want empty for pretty", sinks[0].Format)
	}
	if sinks[1].Format != DefaultFormat {
		t.Errorf("file format = %q", sinks[1].Format)
	}
}

func TestConfig_SinksBadLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "verbose"
	if _, err := cfg.Sinks(); err == nil {
		t.Error("Sinks() expected error for unknown level")
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "2048", want: 2048},
		{in: "10MB", want: 10 << 20},
		{in: "10 mb", want: 10 << 20},
		{in: "512KB", want: 512 << 10},
		{in: "1.5GiB", want: 3 << 29},
		{in: "100B", want: 100},
		{in: "", wantErr: true},
		{in: "MB", wantErr: true},
		{in: "10TB", wantErr: true},
		{in: "0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestConfigSetter(t *testing.T) {
	s := newConfigSetter(map[string]bool{"level": true})

	level := "INFO"
	s.setString("level", "DEBUG", &level)
	if level != "INFO" {
		t.Errorf("changed flag overwritten: %v", level)
	}

	dir := "logs"
	s.setString("log-dir", "", &dir)
	if dir != "logs" {
		t.Errorf("empty value applied: %v", dir)
	}

	n := 5
	zero := 0
	s.setInt("backup-count", &zero, &n)
	if n != 0 {
		t.Errorf("setInt(0) = %d, want 0", n)
	}

	var d time.Duration
	if err := s.setDuration("release-timeout", "bogus", &d); err == nil {
		t.Error("setDuration() expected error")
	}
}
