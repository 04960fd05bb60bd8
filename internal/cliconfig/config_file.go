package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk layout. The same structure is read from TOML
// and YAML.
type FileConfig struct {
	Logging  LoggingSection  `toml:"logging" yaml:"logging"`
	GUI      GUISection      `toml:"gui" yaml:"gui"`
	Session  SessionSection  `toml:"session" yaml:"session"`
	Camera   CameraSection   `toml:"camera" yaml:"camera"`
	Detector DetectorSection `toml:"detector" yaml:"detector"`
	Actuator ActuatorSection `toml:"actuator" yaml:"actuator"`
	Status   StatusSection   `toml:"status" yaml:"status"`
	Monitor  MonitorSection  `toml:"monitor" yaml:"monitor"`
	Trainer  TrainerSection  `toml:"trainer" yaml:"trainer"`
}

type LoggingSection struct {
	LogDir        string `toml:"log_dir" yaml:"log_dir"`
	MaxFileSize   any    `toml:"max_file_size" yaml:"max_file_size"`
	BackupCount   *int   `toml:"backup_count" yaml:"backup_count"`
	Level         string `toml:"level" yaml:"level"`
	Format        string `toml:"format" yaml:"format"`
	ConsoleFormat string `toml:"console_format" yaml:"console_format"`
	Compression   *bool  `toml:"compression" yaml:"compression"`
	Color         *bool  `toml:"color" yaml:"color"`
}

type GUISection struct {
	WindowTitle string `toml:"window_title" yaml:"window_title"`
	WindowSize  []int  `toml:"window_size" yaml:"window_size"`
	Headless    *bool  `toml:"headless" yaml:"headless"`
}

type SessionSection struct {
	Mode            string `toml:"mode" yaml:"mode"`
	ReleaseTimeout  string `toml:"release_timeout" yaml:"release_timeout"`
	ShutdownTimeout string `toml:"shutdown_timeout" yaml:"shutdown_timeout"`
	WatchConfig     *bool  `toml:"watch_config" yaml:"watch_config"`
}

type CameraSection struct {
	Device string `toml:"device" yaml:"device"`
}

type DetectorSection struct {
	URL string `toml:"url" yaml:"url"`
}

type ActuatorSection struct {
	Port string `toml:"port" yaml:"port"`
	Baud *int   `toml:"baud" yaml:"baud"`
}

type StatusSection struct {
	Addr string `toml:"addr" yaml:"addr"`
}

type TrainerSection struct {
	SampleDir string `toml:"sample_dir" yaml:"sample_dir"`
	Label     string `toml:"label" yaml:"label"`
	Samples   *int   `toml:"samples" yaml:"samples"`
}

type MonitorSection struct {
	Heartbeat string `toml:"heartbeat" yaml:"heartbeat"`
}

// LoadFileConfig reads a TOML or YAML config file; the format follows the
// extension (.yaml/.yml for YAML, anything else TOML).
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &fc)
	default:
		err = toml.Unmarshal(b, &fc)
	}
	if err != nil {
		return fc, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.gest/config.toml if the home directory is
// known.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".gest", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	lg := fc.Logging
	s.setString("log-dir", lg.LogDir, &cfg.LogDir)
	s.setString("level", lg.Level, &cfg.Level)
	s.setString("format", lg.Format, &cfg.Format)
	s.setString("console-format", lg.ConsoleFormat, &cfg.ConsoleFormat)
	s.setInt("backup-count", lg.BackupCount, &cfg.BackupCount)
	s.setBool("compression", lg.Compression, &cfg.Compression)
	s.setBool("color", lg.Color, &cfg.Color)
	if lg.MaxFileSize != nil && !changed["max-file-size"] {
		n, err := sizeValue(lg.MaxFileSize)
		if err != nil {
			return fmt.Errorf("max_file_size: %w", err)
		}
		cfg.MaxFileSize = n
	}

	s.setString("window-title", fc.GUI.WindowTitle, &cfg.WindowTitle)
	if len(fc.GUI.WindowSize) > 0 {
		if len(fc.GUI.WindowSize) != 2 {
			return fmt.Errorf("window_size: want [width, height], got %v", fc.GUI.WindowSize)
		}
		cfg.WindowWidth, cfg.WindowHeight = fc.GUI.WindowSize[0], fc.GUI.WindowSize[1]
	}
	s.setBool("headless", fc.GUI.Headless, &cfg.Headless)

	s.setString("mode", fc.Session.Mode, &cfg.Mode)
	if err := s.setDuration("release-timeout", fc.Session.ReleaseTimeout, &cfg.ReleaseTimeout); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", fc.Session.ShutdownTimeout, &cfg.ShutdownTimeout); err != nil {
		return err
	}
	s.setBool("watch-config", fc.Session.WatchConfig, &cfg.WatchConfig)

	s.setString("camera", fc.Camera.Device, &cfg.CameraDevice)
	s.setString("detector-url", fc.Detector.URL, &cfg.DetectorURL)
	s.setString("actuator-port", fc.Actuator.Port, &cfg.ActuatorPort)
	s.setInt("actuator-baud", fc.Actuator.Baud, &cfg.ActuatorBaud)
	s.setString("status-addr", fc.Status.Addr, &cfg.StatusAddr)
	s.setString("heartbeat", fc.Monitor.Heartbeat, &cfg.Heartbeat)

	s.setString("sample-dir", fc.Trainer.SampleDir, &cfg.SampleDir)
	s.setString("label", fc.Trainer.Label, &cfg.TrainLabel)
	s.setInt("samples", fc.Trainer.Samples, &cfg.TrainSamples)

	return nil
}

// sizeValue accepts the decoded forms of max_file_size: a byte count or a
// string such as "10MB".
func sizeValue(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return positive(int64(n))
	case int64:
		return positive(n)
	case uint64:
		return positive(int64(n))
	case float64:
		return positive(int64(n))
	case string:
		return ParseSize(n)
	default:
		return 0, fmt.Errorf("unsupported value %v (%T)", v, v)
	}
}

func positive(n int64) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("size must be positive, got %d", n)
	}
	return n, nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
