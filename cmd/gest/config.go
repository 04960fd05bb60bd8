package main

import (
	"fmt"

	"github.com/bft-labs/gest/internal/cliconfig"
	"github.com/bft-labs/gest/pkg/logrouter"
)

// loadConfig layers file and environment values over base, which already
// holds defaults and flag values. Flags named in changed keep their value.
func loadConfig(base cliconfig.Config, path string, changed map[string]bool) (cliconfig.Config, error) {
	cfg := base
	if path != "" && cliconfig.FileExists(path) {
		fc, err := cliconfig.LoadFileConfig(path)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
			return cfg, err
		}
		cfg.ConfigPath = path
	}

	if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// settings hands the loaded configuration, or the error loading it, to the
// lifecycle controller so a bad config ends the session with the config
// exit code.
type settings struct {
	cfg cliconfig.Config
	err error
}

func (s settings) Sinks() ([]logrouter.SinkSpec, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.cfg.Sinks()
}

// bootstrapSinks is the console-only logging used until the configuration
// is applied.
func bootstrapSinks() []logrouter.SinkSpec {
	return []logrouter.SinkSpec{{
		Name:        "console",
		Target:      logrouter.TargetConsole,
		MinSeverity: logrouter.SeverityInfo,
	}}
}
