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

package errors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  Error
		want string
	}{
		{
			name: "config error with command",
			err:  &ConfigError{Command: "Build", Reason: "command cannot be empty"},
			want: `invalid config for "Build": command cannot be empty`,
		},
		{
			name: "config error without command",
			err:  &ConfigError{Reason: "at least one command is required"},
			want: "invalid config: at least one command is required",
		},
		{
			name: "not found with known commands",
			err:  &NotFoundError{Command: "Deploy", Known: []string{"Build", "Test"}},
			want: `command not found: "Deploy" (available: Build, Test)`,
		},
		{
			name: "not found with no commands",
			err:  &NotFoundError{Command: "Deploy"},
			want: `command not found: "Deploy" (no commands registered)`,
		},
		{
			name: "concurrency limit",
			err:  &ConcurrencyLimitError{Command: "Test", Active: 2, Max: 2},
			want: `command "Test" already has 2/2 active runs and on_retrigger is "ignore"`,
		},
		{
			name: "cycle",
			err:  &CycleError{Event: "go", Path: []string{"go", "command_success:Loop"}},
			want: "trigger cycle detected: go -> command_success:Loop -> go",
		},
		{
			name: "template missing var",
			err:  &TemplateError{Template: "echo {{ x }}", Var: "x", Reason: "variable not defined"},
			want: `template error: variable not defined (variable "x" in "echo {{ x }}")`,
		},
		{
			name: "shutdown",
			err:  &ShutdownError{Op: "run_command"},
			want: "runtime is shut down: run_command rejected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestDebounceErrorTiming(t *testing.T) {
	err := &DebounceError{
		Command:  "Test",
		Elapsed:  150 * time.Millisecond,
		Required: 500 * time.Millisecond,
	}
	assert.Contains(t, err.Error(), "150ms")
	assert.Contains(t, err.Error(), "500ms")
	assert.Contains(t, err.Error(), "350ms")
}

func TestWaitTimeoutError(t *testing.T) {
	err := &WaitTimeoutError{RunID: "abc123", Timeout: 2 * time.Second}
	assert.Contains(t, err.Error(), "timed out after 2s")
	assert.Contains(t, err.Error(), "abc123")

	err = &WaitTimeoutError{Timeout: time.Second}
	assert.Equal(t, "timed out after 1s waiting for completion", err.Error())
}

func TestExecutorErrorUnwrap(t *testing.T) {
	cause := New("spawn failed")
	err := &ExecutorError{Op: "start_run", Cause: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "start_run")
}

func TestKinds(t *testing.T) {
	kinds := map[Error]string{
		&ConfigError{}:           "config_invalid",
		&NotFoundError{}:         "command_not_found",
		&ConcurrencyLimitError{}: "concurrency_limit",
		&DebounceError{}:         "debounce",
		&CycleError{}:            "trigger_cycle",
		&TemplateError{}:         "template",
		&ExecutorError{}:         "executor",
		&ShutdownError{}:         "orchestrator_shutdown",
		&WaitTimeoutError{}:      "timeout",
	}
	seen := make(map[string]bool)
	for err, want := range kinds {
		assert.Equal(t, want, err.Kind())
		assert.False(t, seen[want], "kind %q used twice", want)
		seen[want] = true
	}
}

func TestIsCmdorcError(t *testing.T) {
	require.True(t, IsCmdorcError(&NotFoundError{Command: "X"}))
	require.True(t, IsCmdorcError(fmt.Errorf("wrapped: %w", &DebounceError{Command: "X"})))
	require.False(t, IsCmdorcError(New("plain error")))
	require.False(t, IsCmdorcError(nil))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, "debounce", KindOf(Wrap(&DebounceError{Command: "X"}, "starting run")))
	assert.Equal(t, "", KindOf(New("plain")))
}
