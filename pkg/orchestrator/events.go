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

import "fmt"

// Lifecycle event prefixes. The runtime emits these automatically as a
// run's state changes; the "command_" prefix is reserved and all other
// trigger strings are opaque to the engine.
const (
	prefixStarted   = "command_started:"
	prefixSuccess   = "command_success:"
	prefixFailed    = "command_failed:"
	prefixCancelled = "command_cancelled:"
	prefixFinished  = "command_finished:"
)

// EventStarted returns the lifecycle event emitted when a run of the named
// command starts.
func EventStarted(command string) string { return prefixStarted + command }

// EventSuccess returns the lifecycle event emitted when a run succeeds.
func EventSuccess(command string) string { return prefixSuccess + command }

// EventFailed returns the lifecycle event emitted when a run fails.
func EventFailed(command string) string { return prefixFailed + command }

// EventCancelled returns the lifecycle event emitted when a run is cancelled.
func EventCancelled(command string) string { return prefixCancelled + command }

// EventFinished returns the lifecycle event emitted when a run reaches
// SUCCESS or FAILED (not CANCELLED).
func EventFinished(command string) string { return prefixFinished + command }

// eventForState maps a terminal run state to its lifecycle event.
func eventForState(state RunState, command string) string {
	return fmt.Sprintf("command_%s:%s", state, command)
}

// EventContext carries dispatch context to event callbacks. At minimum it
// holds the causal chain of triggers that led to the event.
type EventContext struct {
	// Event is the trigger string being dispatched.
	Event string

	// Chain is the causal chain including Event itself. Each callback
	// receives its own copy.
	Chain []string
}

// Callback is invoked for every dispatched event matching its
// subscription pattern. The handle is nil for events not associated with a
// run (e.g. user-fired triggers). Errors and panics are logged and never
// abort the dispatch or other callbacks.
type Callback func(h *RunHandle, ctx EventContext) error

// LifecycleCallbacks bundles per-state callbacks for
// Runtime.SetLifecycleCallbacks. Nil fields are skipped.
type LifecycleCallbacks struct {
	OnStarted   Callback
	OnSuccess   Callback
	OnFailed    Callback
	OnCancelled Callback
}
