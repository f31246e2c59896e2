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

import "context"

// Executor launches, monitors, and cancels the work underlying a run. The
// default implementation is LocalExecutor; MockExecutor serves tests, and
// custom executors can target remote machines, containers, or anything
// else that honors the contract:
//
//   - StartRun launches the work asynchronously. It must call
//     result.MarkRunning once the work has actually started and
//     MarkSuccess/MarkFailed on completion. Expected failures (nonzero
//     exit, spawn refusal, timeout) are reflected in the result, never
//     returned; a non-nil error means the executor itself cannot do its
//     job and wraps *errors.ExecutorError.
//   - CancelRun attempts cooperative cancellation, forcing termination
//     after a bounded grace period. The result is guaranteed finalized
//     before it returns (CANCELLED, unless it lost the race with
//     SUCCESS/FAILED). It is idempotent and cheap on finalized runs.
//   - Cleanup cancels all active work and releases resources. Calls after
//     the first are no-ops.
type Executor interface {
	StartRun(ctx context.Context, result *RunResult, resolved *ResolvedCommand) error
	CancelRun(ctx context.Context, result *RunResult, comment string) error
	Cleanup(ctx context.Context) error
}

// RunStore persists finalized runs. It is an optional hook on the
// executor, not part of the core contract; see the store package for a
// sqlite-backed implementation.
type RunStore interface {
	SaveRun(ctx context.Context, result *RunResult) error
}
