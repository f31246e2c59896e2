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

// Decision is the outcome of a concurrency policy evaluation.
type Decision struct {
	// Allow is true if the requested run may start.
	Allow bool

	// RunsToCancel lists active runs that must be cancelled (and awaited)
	// before the new run starts.
	RunsToCancel []*RunResult
}

// ConcurrencyPolicy decides whether a new run of a command may start given
// its configuration and current active runs. It is stateless and is the
// only place max_concurrent and on_retrigger are consulted.
type ConcurrencyPolicy struct{}

// Decide applies the policy rules in order:
//
//  1. max_concurrent == 0: unlimited, always allow.
//  2. Below the limit: allow.
//  3. At the limit with cancel_and_restart: allow, cancel all active runs.
//  4. At the limit with ignore: disallow.
func (ConcurrencyPolicy) Decide(cfg *CommandConfig, activeRuns []*RunResult) Decision {
	if cfg.MaxConcurrent == 0 {
		return Decision{Allow: true}
	}
	if len(activeRuns) < cfg.MaxConcurrent {
		return Decision{Allow: true}
	}
	if cfg.OnRetrigger == RetriggerCancelAndRestart {
		toCancel := make([]*RunResult, len(activeRuns))
		copy(toCancel, activeRuns)
		return Decision{Allow: true, RunsToCancel: toCancel}
	}
	return Decision{Allow: false}
}
