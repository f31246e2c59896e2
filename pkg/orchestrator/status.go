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

// StatusState is the derived high-level state of a command.
type StatusState string

const (
	// StatusNeverRun means the command has never executed.
	StatusNeverRun StatusState = "never_run"
	// StatusRunning means at least one run is currently active.
	StatusRunning StatusState = "running"
	// StatusSuccess means the most recent finalized run succeeded.
	StatusSuccess StatusState = "success"
	// StatusFailed means the most recent finalized run failed.
	StatusFailed StatusState = "failed"
	// StatusCancelled means the most recent finalized run was cancelled.
	StatusCancelled StatusState = "cancelled"
)

// CommandStatus is the point-in-time status of a command, computed on
// query from the live runs and the history buffer.
type CommandStatus struct {
	// State is running if any run is active, else the state of the most
	// recent finalized run in history, else never_run.
	State StatusState

	// ActiveCount is the number of currently running instances.
	ActiveCount int

	// LastRun is the most recent finalized run retained in history, or
	// nil if there is none.
	LastRun *RunResult
}

// statusForRunState maps a terminal run state to the derived status value.
func statusForRunState(s RunState) StatusState {
	switch s {
	case StateSuccess:
		return StatusSuccess
	case StateFailed:
		return StatusFailed
	case StateCancelled:
		return StatusCancelled
	default:
		return StatusNeverRun
	}
}
