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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingDispatcher records engine callbacks in arrival order.
type recordingDispatcher struct {
	mu     sync.Mutex
	calls  []string
	chains map[string][]string
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{chains: make(map[string][]string)}
}

func (d *recordingDispatcher) startFromTrigger(name, event string, chain []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "start:"+name)
	chainCopy := make([]string, len(chain))
	copy(chainCopy, chain)
	d.chains[name] = chainCopy
}

func (d *recordingDispatcher) cancelFromTrigger(name, event string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "cancel:"+name)
}

func (d *recordingDispatcher) recorded() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.calls))
	copy(out, d.calls)
	return out
}

func registeredConfig(t *testing.T, e *TriggerEngine, name string, triggers, cancelTriggers []string) *CommandConfig {
	t.Helper()
	cfg := NewCommandConfig(name, "echo "+name, triggers...)
	cfg.CancelOnTriggers = cancelTriggers
	require.NoError(t, cfg.Validate())
	normalized := cfg.normalized()
	e.register(&normalized)
	return &normalized
}

func TestDispatchOrdering(t *testing.T) {
	d := newRecordingDispatcher()
	e := newTriggerEngine(d, 0, nil)

	// Cancel-index effects must land before start-index effects, and both
	// before callbacks.
	registeredConfig(t, e, "Starter", []string{"go"}, nil)
	registeredConfig(t, e, "Victim", nil, []string{"go"})

	var callbackAt int
	sub, err := e.subscribe("go", func(h *RunHandle, ctx EventContext) error {
		callbackAt = len(d.recorded())
		return nil
	})
	require.NoError(t, err)
	defer e.unsubscribe(sub)

	e.Dispatch("go", nil, nil)

	assert.Equal(t, []string{"cancel:Victim", "start:Starter"}, d.recorded())
	assert.Equal(t, 2, callbackAt, "callback must run after cancel and start effects")
}

func TestDispatchChainIsBranchLocal(t *testing.T) {
	d := newRecordingDispatcher()
	e := newTriggerEngine(d, 0, nil)
	registeredConfig(t, e, "A", []string{"go"}, nil)
	registeredConfig(t, e, "B", []string{"go"}, nil)

	e.Dispatch("go", []string{"root"}, nil)

	chainA := d.chains["A"]
	chainB := d.chains["B"]
	assert.Equal(t, []string{"root", "go"}, chainA)
	assert.Equal(t, []string{"root", "go"}, chainB)

	// Mutating one branch's chain must not leak into the other.
	chainA[0] = "mutated"
	assert.Equal(t, "root", chainB[0])
}

func TestDispatchCycleDetection(t *testing.T) {
	d := newRecordingDispatcher()
	e := newTriggerEngine(d, 0, nil)
	registeredConfig(t, e, "Loop", []string{"tick"}, nil)

	// Event already present in the chain: the start is skipped.
	e.Dispatch("tick", []string{"tick"}, nil)
	assert.Empty(t, d.recorded())

	// The command's own started marker in the chain also counts as a cycle.
	e.Dispatch("tick", []string{"go", EventStarted("Loop")}, nil)
	assert.Empty(t, d.recorded())

	// A clean chain dispatches normally.
	e.Dispatch("tick", []string{"go"}, nil)
	assert.Equal(t, []string{"start:Loop"}, d.recorded())
}

func TestDispatchLoopDetectionDisabled(t *testing.T) {
	d := newRecordingDispatcher()
	e := newTriggerEngine(d, 0, nil)
	cfg := NewCommandConfig("Loop", "echo loop", "tick")
	cfg.LoopDetection = boolPtr(false)
	normalized := cfg.normalized()
	e.register(&normalized)

	// With loop detection off the repeat is allowed through.
	e.Dispatch("tick", []string{"tick"}, nil)
	assert.Equal(t, []string{"start:Loop"}, d.recorded())
}

func TestDispatchChainLengthCap(t *testing.T) {
	d := newRecordingDispatcher()
	e := newTriggerEngine(d, 4, nil)
	cfg := NewCommandConfig("X", "echo x", "go")
	cfg.LoopDetection = boolPtr(false)
	normalized := cfg.normalized()
	e.register(&normalized)

	// The hard cap applies even with loop detection disabled.
	e.Dispatch("go", []string{"a", "b", "c", "d"}, nil)
	assert.Empty(t, d.recorded())

	e.Dispatch("go", []string{"a", "b"}, nil)
	assert.Equal(t, []string{"start:X"}, d.recorded())
}

func TestCallbackFailuresAreContained(t *testing.T) {
	d := newRecordingDispatcher()
	e := newTriggerEngine(d, 0, nil)

	var invoked []string
	_, err := e.subscribe("ev", func(h *RunHandle, ctx EventContext) error {
		invoked = append(invoked, "erroring")
		return assert.AnError
	})
	require.NoError(t, err)
	_, err = e.subscribe("ev", func(h *RunHandle, ctx EventContext) error {
		invoked = append(invoked, "panicking")
		panic("callback exploded")
	})
	require.NoError(t, err)
	_, err = e.subscribe("ev", func(h *RunHandle, ctx EventContext) error {
		invoked = append(invoked, "healthy")
		return nil
	})
	require.NoError(t, err)

	e.Dispatch("ev", nil, nil)

	assert.Equal(t, []string{"erroring", "panicking", "healthy"}, invoked)
}

func TestWildcardSubscription(t *testing.T) {
	d := newRecordingDispatcher()
	e := newTriggerEngine(d, 0, nil)

	var events []string
	_, err := e.subscribe("command_*:Test", func(h *RunHandle, ctx EventContext) error {
		events = append(events, ctx.Event)
		return nil
	})
	require.NoError(t, err)

	e.Dispatch("command_success:Test", nil, nil)
	e.Dispatch("command_failed:Test", nil, nil)
	e.Dispatch("command_success:Other", nil, nil)

	assert.Equal(t, []string{"command_success:Test", "command_failed:Test"}, events)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	d := newRecordingDispatcher()
	e := newTriggerEngine(d, 0, nil)

	count := 0
	sub, err := e.subscribe("ev", func(h *RunHandle, ctx EventContext) error {
		count++
		return nil
	})
	require.NoError(t, err)

	e.Dispatch("ev", nil, nil)
	e.unsubscribe(sub)
	e.Dispatch("ev", nil, nil)

	assert.Equal(t, 1, count)
}

func TestCallbackReceivesChain(t *testing.T) {
	d := newRecordingDispatcher()
	e := newTriggerEngine(d, 0, nil)

	var got EventContext
	_, err := e.subscribe("ev", func(h *RunHandle, ctx EventContext) error {
		got = ctx
		return nil
	})
	require.NoError(t, err)

	e.Dispatch("ev", []string{"root"}, nil)

	assert.Equal(t, "ev", got.Event)
	assert.Equal(t, []string{"root", "ev"}, got.Chain)
}
