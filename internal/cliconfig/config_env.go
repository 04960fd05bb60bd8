package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (GEST_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("log-dir", os.Getenv("GEST_LOG_DIR"), &cfg.LogDir)
	s.setString("level", os.Getenv("GEST_LEVEL"), &cfg.Level)
	s.setString("format", os.Getenv("GEST_FORMAT"), &cfg.Format)
	s.setString("console-format", os.Getenv("GEST_CONSOLE_FORMAT"), &cfg.ConsoleFormat)
	s.setString("mode", os.Getenv("GEST_MODE"), &cfg.Mode)
	s.setString("camera", os.Getenv("GEST_CAMERA"), &cfg.CameraDevice)
	s.setString("detector-url", os.Getenv("GEST_DETECTOR_URL"), &cfg.DetectorURL)
	s.setString("actuator-port", os.Getenv("GEST_ACTUATOR_PORT"), &cfg.ActuatorPort)
	s.setString("status-addr", os.Getenv("GEST_STATUS_ADDR"), &cfg.StatusAddr)
	s.setString("heartbeat", os.Getenv("GEST_HEARTBEAT"), &cfg.Heartbeat)
	s.setString("sample-dir", os.Getenv("GEST_SAMPLE_DIR"), &cfg.SampleDir)
	s.setString("label", os.Getenv("GEST_TRAIN_LABEL"), &cfg.TrainLabel)

	if err := s.setSize("max-file-size", os.Getenv("GEST_MAX_FILE_SIZE"), &cfg.MaxFileSize); err != nil {
		return err
	}
	if err := s.setIntFromString("backup-count", os.Getenv("GEST_BACKUP_COUNT"), &cfg.BackupCount); err != nil {
		return err
	}
	if err := s.setIntFromString("samples", os.Getenv("GEST_TRAIN_SAMPLES"), &cfg.TrainSamples); err != nil {
		return err
	}
	if err := s.setIntFromString("actuator-baud", os.Getenv("GEST_ACTUATOR_BAUD"), &cfg.ActuatorBaud); err != nil {
		return err
	}
	if err := s.setDuration("release-timeout", os.Getenv("GEST_RELEASE_TIMEOUT"), &cfg.ReleaseTimeout); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", os.Getenv("GEST_SHUTDOWN_TIMEOUT"), &cfg.ShutdownTimeout); err != nil {
		return err
	}

	s.setBoolFromString("compression", os.Getenv("GEST_COMPRESSION"), &cfg.Compression)
	s.setBoolFromString("color", os.Getenv("GEST_COLOR"), &cfg.Color)
	s.setBoolFromString("headless", os.Getenv("GEST_HEADLESS"), &cfg.Headless)
	s.setBoolFromString("watch-config", os.Getenv("GEST_WATCH_CONFIG"), &cfg.WatchConfig)

	return nil
}
