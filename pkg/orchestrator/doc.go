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

// Package orchestrator runs shell commands as an event-driven workflow.
//
// Users declare named commands, each bound to a shell template and a set of
// trigger strings. Firing a trigger starts every subscribed command; each
// run's lifecycle (started, success, failure, cancellation) emits further
// triggers that can chain into downstream commands:
//
//	cfg := orchestrator.RunnerConfig{Commands: []orchestrator.CommandConfig{
//		orchestrator.NewCommandConfig("Build", "make build", "src_changed"),
//		orchestrator.NewCommandConfig("Test", "make test", "command_success:Build"),
//	}}
//	rt, err := orchestrator.New(cfg)
//	...
//	rt.Trigger("src_changed")
//
// The Runtime enforces per-command concurrency limits and retrigger
// policies, supports cancellation and timeouts, keeps bounded per-command
// history, and hands out read-only RunHandles for awaiting results. Trigger
// dispatch carries a causal chain used for cycle detection, so commands
// that (transitively) retrigger themselves are stopped with a warning
// instead of looping forever.
//
// Command processes are launched by an Executor; LocalExecutor, the
// default, runs them through the platform shell in their own process group
// with merged stdout/stderr capture. A MockExecutor is provided for tests,
// and custom executors can target anything that can honor the start/cancel
// contract.
package orchestrator
