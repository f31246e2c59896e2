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
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunState represents the lifecycle state of a single command run.
type RunState string

// Run states. PENDING and RUNNING are transient; the remaining three are
// terminal ("finalized").
const (
	StatePending   RunState = "pending"
	StateRunning   RunState = "running"
	StateSuccess   RunState = "success"
	StateFailed    RunState = "failed"
	StateCancelled RunState = "cancelled"
)

// IsTerminal returns true if the state is terminal (no further transitions).
func (s RunState) IsTerminal() bool {
	return s == StateSuccess || s == StateFailed || s == StateCancelled
}

// ResolvedCommand is the fully materialized input for one run: the
// interpolated shell string, working directory, merged environment,
// effective timeout, and the template variables that were used.
type ResolvedCommand struct {
	// Command is the shell string after template resolution.
	Command string

	// Dir is the absolute working directory for the child process.
	Dir string

	// Env is the process environment merged with the command's env
	// (command values win).
	Env map[string]string

	// Timeout is the effective hard timeout; 0 means none.
	Timeout time.Duration

	// Vars is the merged template variable set used for resolution
	// (globals, command vars, and per-invocation overrides).
	Vars map[string]string
}

// RunResult records a single execution of a command. It is created by the
// Runtime at dispatch time, mutated by the executor between start and
// finalization, and observed read-only afterwards. External code should
// normally interact with it through a RunHandle.
//
// Mark* transitions follow PENDING -> RUNNING -> {SUCCESS, FAILED,
// CANCELLED}; anything else logs a warning and is a no-op. The completion
// signal fires exactly once, when the first terminal transition lands.
type RunResult struct {
	runID        string
	commandName  string
	triggerEvent string
	triggerChain []string
	resolved     *ResolvedCommand
	logger       *slog.Logger

	// handle is the public facade wrapping this result, set once by the
	// Runtime before the run becomes observable.
	handle *RunHandle

	mu        sync.Mutex
	state     RunState
	success   *bool
	output    string
	errMsg    string
	comment   string
	startTime time.Time
	endTime   time.Time
	done      chan struct{}
}

// newRunResult creates a PENDING result with a fresh run_id.
func newRunResult(commandName, triggerEvent string, chain []string, resolved *ResolvedCommand, logger *slog.Logger) *RunResult {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunResult{
		runID:        uuid.NewString(),
		commandName:  commandName,
		triggerEvent: triggerEvent,
		triggerChain: chain,
		resolved:     resolved,
		logger:       logger,
		state:        StatePending,
		done:         make(chan struct{}),
	}
}

// RunID returns the globally unique identifier of this run.
func (r *RunResult) RunID() string { return r.runID }

// CommandName returns the name of the command being executed.
func (r *RunResult) CommandName() string { return r.commandName }

// TriggerEvent returns the event that caused this run, or "" for a direct
// run request.
func (r *RunResult) TriggerEvent() string { return r.triggerEvent }

// TriggerChain returns a copy of the causal chain of triggers that led to
// this run.
func (r *RunResult) TriggerChain() []string {
	chain := make([]string, len(r.triggerChain))
	copy(chain, r.triggerChain)
	return chain
}

// Resolved returns the materialized command snapshot for this run.
func (r *RunResult) Resolved() *ResolvedCommand { return r.resolved }

// State returns the current lifecycle state.
func (r *RunResult) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Success reports the outcome: (true, true) for success, (false, true) for
// failure, and ok=false while unset (pending, running, or cancelled).
func (r *RunResult) Success() (value, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.success == nil {
		return false, false
	}
	return *r.success, true
}

// Output returns the captured stdout+stderr of the run so far.
func (r *RunResult) Output() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.output
}

// Err returns the error message if the run failed or was cancelled, else "".
func (r *RunResult) Err() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errMsg
}

// Comment returns the optional comment, e.g. a cancellation reason.
func (r *RunResult) Comment() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.comment
}

// StartTime returns when the run started, or the zero time if it has not.
func (r *RunResult) StartTime() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startTime
}

// EndTime returns when the run finalized, or the zero time if it has not.
func (r *RunResult) EndTime() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endTime
}

// Duration returns end minus start, or 0 if the run has not finalized.
func (r *RunResult) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startTime.IsZero() || r.endTime.IsZero() {
		return 0
	}
	return r.endTime.Sub(r.startTime)
}

// DurationString returns a human-readable duration such as "452ms",
// "2.4s", "1m 23s", or "-" if the run has not finalized.
func (r *RunResult) DurationString() string {
	d := r.Duration()
	if d == 0 && !r.IsFinalized() {
		return "-"
	}
	return formatDuration(d)
}

// IsFinalized reports whether the run has reached a terminal state.
func (r *RunResult) IsFinalized() bool {
	return r.State().IsTerminal()
}

// Done returns a channel closed when the run finalizes. It supports any
// number of concurrent waiters.
func (r *RunResult) Done() <-chan struct{} { return r.done }

// Handle returns the RunHandle wrapping this result.
func (r *RunResult) Handle() *RunHandle { return r.handle }

// SetOutput replaces the captured output. Executors call this before
// finalizing so partial output of cancelled or timed-out runs is retained.
func (r *RunResult) SetOutput(output string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.output = output
}

// MarkRunning transitions PENDING -> RUNNING and records the start time.
// Any other source state logs a warning and leaves the result untouched.
func (r *RunResult) MarkRunning() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StatePending {
		r.logger.Warn("mark_running from invalid state",
			"run_id", r.runID, "command", r.commandName, "state", string(r.state))
		return
	}
	r.state = StateRunning
	r.startTime = time.Now()
	r.logger.Debug("run started", "run_id", r.runID, "command", r.commandName)
}

// MarkSuccess transitions RUNNING -> SUCCESS and signals completion.
func (r *RunResult) MarkSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.transitionAllowedLocked("mark_success", StateRunning) {
		return
	}
	r.state = StateSuccess
	t := true
	r.success = &t
	r.finalizeLocked()
	r.logger.Debug("run succeeded",
		"run_id", r.runID, "command", r.commandName, "duration_ms", r.endTime.Sub(r.startTime).Milliseconds())
}

// MarkFailed transitions RUNNING -> FAILED, records the error message, and
// signals completion.
func (r *RunResult) MarkFailed(errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.transitionAllowedLocked("mark_failed", StateRunning) {
		return
	}
	r.state = StateFailed
	f := false
	r.success = &f
	r.errMsg = errMsg
	r.finalizeLocked()
	r.logger.Debug("run failed", "run_id", r.runID, "command", r.commandName, "error", errMsg)
}

// MarkCancelled transitions PENDING or RUNNING -> CANCELLED, records the
// reason, and signals completion. The success flag stays unset.
func (r *RunResult) MarkCancelled(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.transitionAllowedLocked("mark_cancelled", StatePending, StateRunning) {
		return
	}
	if reason == "" {
		reason = "command was cancelled"
	}
	r.state = StateCancelled
	r.success = nil
	r.errMsg = reason
	r.comment = reason
	r.finalizeLocked()
	r.logger.Debug("run cancelled", "run_id", r.runID, "command", r.commandName, "reason", reason)
}

// transitionAllowedLocked validates a state transition. Finalized results
// and out-of-order transitions log a warning and refuse.
func (r *RunResult) transitionAllowedLocked(op string, from ...RunState) bool {
	for _, s := range from {
		if r.state == s {
			return true
		}
	}
	r.logger.Warn("ignoring invalid state transition",
		"run_id", r.runID, "command", r.commandName, "op", op, "state", string(r.state))
	return false
}

// finalizeLocked records the end time and fires the single-shot completion
// signal.
func (r *RunResult) finalizeLocked() {
	r.endTime = time.Now()
	if r.startTime.IsZero() {
		// Never started (cancelled while pending): a zero-length run.
		r.startTime = r.endTime
	}
	close(r.done)
}

// String implements fmt.Stringer for debug output.
func (r *RunResult) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.runID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("RunResult(id=%s, cmd=%q, state=%s)", id, r.commandName, r.state)
}

// formatDuration renders a duration the way humans read run times:
// "452ms", "2.4s", "1m 23s", "2h 5m".
func formatDuration(d time.Duration) string {
	secs := d.Seconds()
	switch {
	case secs < 1:
		return fmt.Sprintf("%.0fms", secs*1000)
	case secs < 60:
		return fmt.Sprintf("%.1fs", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm %.0fs", int(secs)/60, secs-float64(int(secs)/60*60))
	default:
		return fmt.Sprintf("%dh %dm", int(secs)/3600, (int(secs)%3600)/60)
	}
}
