// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads runner configuration from TOML files.
//
// The format is a [variables] table of global template vars plus a
// [[command]] array whose fields mirror orchestrator.CommandConfig:
//
//	[variables]
//	base_directory = "/home/me/project"
//
//	[[command]]
//	name = "Tests"
//	command = "pytest {{ base_directory }}/tests"
//	triggers = ["changes_applied", "Tests"]
//	max_concurrent = 1
//	on_retrigger = "cancel_and_restart"
//
// Relative cwd values are resolved against the config file's directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	cmdorcerrors "github.com/eyecantell/cmdorc/pkg/errors"
	"github.com/eyecantell/cmdorc/pkg/orchestrator"
)

// fileCommand is the TOML shape of one [[command]] entry. Optional fields
// are pointers so absence can fall back to the conventional defaults.
type fileCommand struct {
	Name             string            `toml:"name"`
	Command          string            `toml:"command"`
	Triggers         []string          `toml:"triggers"`
	CancelOnTriggers []string          `toml:"cancel_on_triggers"`
	MaxConcurrent    *int              `toml:"max_concurrent"`
	TimeoutSecs      *int              `toml:"timeout_secs"`
	OnRetrigger      *string           `toml:"on_retrigger"`
	KeepHistory      *int              `toml:"keep_history"`
	Vars             map[string]string `toml:"vars"`
	Cwd              *string           `toml:"cwd"`
	Env              map[string]string `toml:"env"`
	DebounceInMs     *int              `toml:"debounce_in_ms"`
	LoopDetection    *bool             `toml:"loop_detection"`
}

// fileConfig is the TOML shape of a whole config file.
type fileConfig struct {
	Variables map[string]string `toml:"variables"`
	Commands  []fileCommand     `toml:"command"`
}

// Load reads and validates a TOML config file, returning the RunnerConfig
// the orchestration core consumes. Loading the same file twice yields
// equal configs.
func Load(path string) (*orchestrator.RunnerConfig, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, &cmdorcerrors.ConfigError{Reason: fmt.Sprintf("cannot resolve config path %q: %v", path, err)}
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, &cmdorcerrors.ConfigError{Reason: fmt.Sprintf("cannot read config file: %v", err)}
	}
	return Parse(data, filepath.Dir(absPath))
}

// Parse decodes TOML config data. baseDir anchors relative cwd values;
// it is normally the config file's directory.
func Parse(data []byte, baseDir string) (*orchestrator.RunnerConfig, error) {
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return nil, &cmdorcerrors.ConfigError{Reason: fmt.Sprintf("cannot parse TOML: %v", err)}
	}

	cfg := &orchestrator.RunnerConfig{Vars: fc.Variables}
	for _, fcmd := range fc.Commands {
		cfg.Commands = append(cfg.Commands, toCommandConfig(fcmd, baseDir))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// toCommandConfig applies defaults for absent fields: max_concurrent 1,
// keep_history 1, on_retrigger cancel_and_restart, loop detection on.
func toCommandConfig(fc fileCommand, baseDir string) orchestrator.CommandConfig {
	cmd := orchestrator.NewCommandConfig(fc.Name, fc.Command, fc.Triggers...)
	cmd.CancelOnTriggers = fc.CancelOnTriggers
	cmd.Vars = fc.Vars
	cmd.Env = fc.Env
	cmd.LoopDetection = fc.LoopDetection

	if fc.MaxConcurrent != nil {
		cmd.MaxConcurrent = *fc.MaxConcurrent
	}
	if fc.TimeoutSecs != nil {
		cmd.TimeoutSecs = *fc.TimeoutSecs
	}
	if fc.OnRetrigger != nil {
		cmd.OnRetrigger = orchestrator.RetriggerPolicy(*fc.OnRetrigger)
	}
	if fc.KeepHistory != nil {
		cmd.KeepHistory = *fc.KeepHistory
	}
	if fc.DebounceInMs != nil {
		cmd.DebounceMs = *fc.DebounceInMs
	}
	if fc.Cwd != nil {
		cwd := *fc.Cwd
		if cwd != "" && !filepath.IsAbs(cwd) && baseDir != "" {
			cwd = filepath.Join(baseDir, cwd)
		}
		cmd.Cwd = cwd
	}
	return cmd
}
