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
	"sync"
	"time"
)

// MockExecutor is an Executor for tests. It completes runs after a
// configurable delay without spawning processes, and records every start
// and cancel call.
type MockExecutor struct {
	// Delay before a run completes. 0 completes inside StartRun.
	Delay time.Duration

	// FailWith maps command names to an error message; runs of those
	// commands finalize FAILED with it. Other runs succeed.
	FailWith map[string]string

	// Outputs maps command names to the output set before finalization.
	Outputs map[string]string

	mu        sync.Mutex
	pending   map[string]*time.Timer
	started   []*RunResult
	cancelled []string
	cleaned   bool
}

// NewMockExecutor returns a MockExecutor completing runs after delay.
func NewMockExecutor(delay time.Duration) *MockExecutor {
	return &MockExecutor{
		Delay:   delay,
		pending: make(map[string]*time.Timer),
	}
}

// StartRun implements Executor.
func (m *MockExecutor) StartRun(ctx context.Context, result *RunResult, resolved *ResolvedCommand) error {
	m.mu.Lock()
	if m.pending == nil {
		m.pending = make(map[string]*time.Timer)
	}
	m.started = append(m.started, result)
	m.mu.Unlock()

	result.MarkRunning()

	if m.Delay == 0 {
		m.finish(result)
		return nil
	}

	m.mu.Lock()
	m.pending[result.RunID()] = time.AfterFunc(m.Delay, func() {
		m.mu.Lock()
		delete(m.pending, result.RunID())
		m.mu.Unlock()
		m.finish(result)
	})
	m.mu.Unlock()
	return nil
}

// finish applies the configured outcome.
func (m *MockExecutor) finish(result *RunResult) {
	if out, ok := m.Outputs[result.CommandName()]; ok {
		result.SetOutput(out)
	}
	if msg, ok := m.FailWith[result.CommandName()]; ok {
		result.MarkFailed(msg)
		return
	}
	result.MarkSuccess()
}

// CancelRun implements Executor.
func (m *MockExecutor) CancelRun(ctx context.Context, result *RunResult, comment string) error {
	m.mu.Lock()
	if t, ok := m.pending[result.RunID()]; ok {
		t.Stop()
		delete(m.pending, result.RunID())
	}
	m.cancelled = append(m.cancelled, result.RunID())
	m.mu.Unlock()

	result.MarkCancelled(comment)
	return nil
}

// Cleanup implements Executor.
func (m *MockExecutor) Cleanup(ctx context.Context) error {
	m.mu.Lock()
	if m.cleaned {
		m.mu.Unlock()
		return nil
	}
	m.cleaned = true
	timers := m.pending
	m.pending = make(map[string]*time.Timer)
	m.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}
	return nil
}

// StartedRuns returns every result passed to StartRun, in order.
func (m *MockExecutor) StartedRuns() []*RunResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*RunResult, len(m.started))
	copy(out, m.started)
	return out
}

// CancelledRunIDs returns the run IDs passed to CancelRun, in order.
func (m *MockExecutor) CancelledRunIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.cancelled))
	copy(out, m.cancelled)
	return out
}
