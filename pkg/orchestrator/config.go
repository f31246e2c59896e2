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

package orchestrator

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/eyecantell/cmdorc/pkg/errors"
)

// RetriggerPolicy controls what happens when a new trigger arrives while a
// command is already at its max_concurrent limit.
type RetriggerPolicy string

const (
	// RetriggerCancelAndRestart cancels all active runs and starts a new one.
	RetriggerCancelAndRestart RetriggerPolicy = "cancel_and_restart"

	// RetriggerIgnore leaves active runs untouched and rejects the new run.
	RetriggerIgnore RetriggerPolicy = "ignore"
)

// triggerNameRegex validates trigger strings: alphanumerics, underscore,
// hyphen, and colon.
var triggerNameRegex = regexp.MustCompile(`^[A-Za-z0-9_:-]+$`)

// CommandConfig is the immutable configuration for a single command.
// Construct with NewCommandConfig for the conventional defaults, or as a
// struct literal for full control. Validate rejects malformed configs.
type CommandConfig struct {
	// Name uniquely identifies the command within a RunnerConfig.
	Name string

	// Command is the shell template to execute. May contain {{ var }}
	// placeholders resolved at dispatch time.
	Command string

	// Triggers lists the exact trigger strings that start this command.
	Triggers []string

	// CancelOnTriggers lists trigger strings that cancel active runs of
	// this command when fired.
	CancelOnTriggers []string

	// MaxConcurrent limits simultaneous runs. 0 means unlimited.
	MaxConcurrent int

	// TimeoutSecs is a hard timeout in seconds; 0 means no timeout.
	TimeoutSecs int

	// OnRetrigger selects the behaviour at the concurrency limit.
	// Empty defaults to RetriggerCancelAndRestart.
	OnRetrigger RetriggerPolicy

	// KeepHistory is how many finalized runs to retain. 0 keeps none.
	KeepHistory int

	// Vars holds command-specific template variables. They override global
	// variables and the process environment during resolution.
	Vars map[string]string

	// Cwd is the working directory for the command. Relative paths are
	// resolved against the runtime's base directory. Empty uses the base
	// directory itself.
	Cwd string

	// Env holds environment variables merged over the process environment
	// for the child process.
	Env map[string]string

	// DebounceMs is the minimum time in milliseconds between the end of
	// one run and the start of the next. 0 disables debouncing.
	DebounceMs int

	// LoopDetection aborts trigger chains that would re-enter this
	// command. nil means enabled.
	LoopDetection *bool
}

// NewCommandConfig returns a CommandConfig with the conventional defaults:
// max_concurrent 1, keep_history 1, on_retrigger cancel_and_restart, loop
// detection enabled.
func NewCommandConfig(name, command string, triggers ...string) CommandConfig {
	return CommandConfig{
		Name:          name,
		Command:       command,
		Triggers:      triggers,
		MaxConcurrent: 1,
		KeepHistory:   1,
		OnRetrigger:   RetriggerCancelAndRestart,
	}
}

// LoopDetectionEnabled reports whether trigger cycle detection applies to
// this command. Detection defaults to on.
func (c CommandConfig) LoopDetectionEnabled() bool {
	return c.LoopDetection == nil || *c.LoopDetection
}

// Validate checks the configuration and returns a *errors.ConfigError
// describing the first violation found.
func (c CommandConfig) Validate() error {
	if c.Name == "" {
		return &errors.ConfigError{Reason: "command name cannot be empty"}
	}
	if strings.TrimSpace(c.Command) == "" {
		return &errors.ConfigError{Command: c.Name, Reason: "command cannot be empty"}
	}
	if c.MaxConcurrent < 0 {
		return &errors.ConfigError{Command: c.Name, Reason: "max_concurrent cannot be negative"}
	}
	if c.TimeoutSecs < 0 {
		return &errors.ConfigError{Command: c.Name, Reason: "timeout_secs must be positive"}
	}
	if c.KeepHistory < 0 {
		return &errors.ConfigError{Command: c.Name, Reason: "keep_history cannot be negative"}
	}
	if c.DebounceMs < 0 {
		return &errors.ConfigError{Command: c.Name, Reason: "debounce_in_ms cannot be negative"}
	}
	switch c.OnRetrigger {
	case "", RetriggerCancelAndRestart, RetriggerIgnore:
	default:
		return &errors.ConfigError{
			Command: c.Name,
			Reason:  fmt.Sprintf("on_retrigger must be %q or %q", RetriggerCancelAndRestart, RetriggerIgnore),
		}
	}
	for _, t := range c.Triggers {
		if !triggerNameRegex.MatchString(t) {
			return &errors.ConfigError{Command: c.Name, Reason: fmt.Sprintf("invalid trigger name %q", t)}
		}
	}
	for _, t := range c.CancelOnTriggers {
		if !triggerNameRegex.MatchString(t) {
			return &errors.ConfigError{Command: c.Name, Reason: fmt.Sprintf("invalid cancel trigger name %q", t)}
		}
	}
	if c.Cwd != "" {
		if _, err := filepath.Abs(c.Cwd); err != nil {
			return &errors.ConfigError{Command: c.Name, Reason: fmt.Sprintf("invalid cwd: %v", err)}
		}
	}
	return nil
}

// normalized returns a copy with defaults filled in for fields where the
// zero value stands for "use the default".
func (c CommandConfig) normalized() CommandConfig {
	if c.OnRetrigger == "" {
		c.OnRetrigger = RetriggerCancelAndRestart
	}
	return c
}

// RunnerConfig is the top-level configuration for a Runtime: the ordered
// command list plus global template variables.
type RunnerConfig struct {
	// Commands is the ordered list of command configurations. Names must
	// be unique and at least one command is required.
	Commands []CommandConfig

	// Vars holds global template variables, the lowest-precedence tier of
	// variable resolution.
	Vars map[string]string
}

// Validate checks the runner configuration and every command in it.
func (c RunnerConfig) Validate() error {
	if len(c.Commands) == 0 {
		return &errors.ConfigError{Reason: "at least one command is required"}
	}
	seen := make(map[string]bool, len(c.Commands))
	for _, cmd := range c.Commands {
		if err := cmd.Validate(); err != nil {
			return err
		}
		if seen[cmd.Name] {
			return &errors.ConfigError{Command: cmd.Name, Reason: "duplicate command name"}
		}
		seen[cmd.Name] = true
	}
	return nil
}
