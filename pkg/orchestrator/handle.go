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
	"context"
	"fmt"
	"time"

	"github.com/eyecantell/cmdorc/pkg/errors"
)

// RunHandle is the public, read-only view of a RunResult. It is returned
// by Runtime.RunCommand and passed to event callbacks. Handles stay valid
// for the lifetime of the process; after finalization they are purely
// observational.
//
// Cancellation goes through the Runtime, not the handle.
type RunHandle struct {
	result *RunResult
}

// newRunHandle wraps a RunResult in its public facade.
func newRunHandle(result *RunResult) *RunHandle {
	return &RunHandle{result: result}
}

// CommandName returns the name of the command being run.
func (h *RunHandle) CommandName() string { return h.result.CommandName() }

// RunID returns the unique identifier of this run.
func (h *RunHandle) RunID() string { return h.result.RunID() }

// State returns the current run state.
func (h *RunHandle) State() RunState { return h.result.State() }

// Success reports the outcome; ok is false while unset.
func (h *RunHandle) Success() (value, ok bool) { return h.result.Success() }

// Output returns the captured stdout+stderr.
func (h *RunHandle) Output() string { return h.result.Output() }

// Err returns the error message if the run failed or was cancelled.
func (h *RunHandle) Err() string { return h.result.Err() }

// Comment returns the optional comment, e.g. a cancellation reason.
func (h *RunHandle) Comment() string { return h.result.Comment() }

// StartTime returns when the run started.
func (h *RunHandle) StartTime() time.Time { return h.result.StartTime() }

// EndTime returns when the run finalized.
func (h *RunHandle) EndTime() time.Time { return h.result.EndTime() }

// DurationString returns a human-readable duration of the run.
func (h *RunHandle) DurationString() string { return h.result.DurationString() }

// IsFinalized reports whether the run has reached a terminal state.
func (h *RunHandle) IsFinalized() bool { return h.result.IsFinalized() }

// Wait suspends until the run finalizes or ctx is done. On success it
// returns the same RunResult instance the Runtime stores in history.
func (h *RunHandle) Wait(ctx context.Context) (*RunResult, error) {
	select {
	case <-h.result.Done():
		return h.result, nil
	case <-ctx.Done():
		return nil, errors.Wrapf(ctx.Err(), "waiting for run %s", h.result.RunID())
	}
}

// WaitTimeout suspends until the run finalizes, failing with a
// *errors.WaitTimeoutError after d. The underlying run is not mutated by a
// wait timeout. Waiting on an already-finalized run returns immediately.
func (h *RunHandle) WaitTimeout(d time.Duration) (*RunResult, error) {
	select {
	case <-h.result.Done():
		return h.result, nil
	default:
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-h.result.Done():
		return h.result, nil
	case <-timer.C:
		return nil, &errors.WaitTimeoutError{RunID: h.result.RunID(), Timeout: d}
	}
}

// String implements fmt.Stringer for debug output.
func (h *RunHandle) String() string {
	return fmt.Sprintf("RunHandle(command=%q, run_id=%s, state=%s)",
		h.CommandName(), h.RunID(), h.State())
}
