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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cmdorcerrors "github.com/eyecantell/cmdorc/pkg/errors"
)

// End-to-end scenarios driving real subprocesses through the default
// LocalExecutor.

func newE2ERuntime(t *testing.T, cmds ...CommandConfig) *Runtime {
	t.Helper()
	skipOnWindows(t)
	rt, err := New(RunnerConfig{Commands: cmds},
		WithExecutor(NewLocalExecutor(WithGracePeriod(time.Second))))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Shutdown(10*time.Second, true) })
	return rt
}

func TestE2ESingleEcho(t *testing.T) {
	cfg := NewCommandConfig("Echo", "echo hello", "go")
	rt := newE2ERuntime(t, cfg)

	require.NoError(t, rt.Trigger("go"))

	handles, err := rt.GetActiveHandles("Echo")
	require.NoError(t, err)
	var result *RunResult
	if len(handles) > 0 {
		result, err = handles[0].WaitTimeout(5 * time.Second)
		require.NoError(t, err)
	} else {
		// The echo already finished; fetch it from history.
		hist := waitHistoryLen(t, rt, "Echo", 1)
		result = hist[0]
	}

	assert.Equal(t, StateSuccess, result.State())
	assert.Contains(t, result.Output(), "hello")

	hist := waitHistoryLen(t, rt, "Echo", 1)
	assert.Len(t, hist, 1)
}

func TestE2ELinearChain(t *testing.T) {
	a := NewCommandConfig("A", "echo from-a", "start")
	b := NewCommandConfig("B", "echo from-b", "command_success:A")
	rt := newE2ERuntime(t, a, b)

	require.NoError(t, rt.Trigger("start"))

	histB := waitHistoryLen(t, rt, "B", 1)
	histA := waitHistoryLen(t, rt, "A", 1)

	assert.Equal(t, StateSuccess, histA[0].State())
	assert.Equal(t, StateSuccess, histB[0].State())
	assert.Equal(t, "command_success:A", histB[0].TriggerEvent())
	assert.Contains(t, histB[0].TriggerChain(), "start")
	assert.Contains(t, histB[0].TriggerChain(), "command_success:A")
}

func TestE2ESelfTriggerLoopDetection(t *testing.T) {
	cfg := NewCommandConfig("Loop", "echo looping", "go", "command_success:Loop")
	cfg.KeepHistory = 10
	rt := newE2ERuntime(t, cfg)

	require.NoError(t, rt.Trigger("go"))
	waitHistoryLen(t, rt, "Loop", 1)

	time.Sleep(300 * time.Millisecond)
	hist, err := rt.GetHistory("Loop", 0)
	require.NoError(t, err)
	assert.Len(t, hist, 1, "Loop must execute exactly once")
}

func TestE2ECancelAndRestartRace(t *testing.T) {
	cfg := NewCommandConfig("Sleepy", "sleep 0.4", "start")
	cfg.KeepHistory = 10
	rt := newE2ERuntime(t, cfg)

	require.NoError(t, rt.Trigger("start"))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, rt.Trigger("start"))

	hist := waitHistoryLen(t, rt, "Sleepy", 2)
	// Newest first: the restarted run succeeded, the first was cancelled.
	assert.Equal(t, StateSuccess, hist[0].State())
	assert.Equal(t, StateCancelled, hist[1].State())
	assert.True(t, hist[1].EndTime().Before(hist[0].EndTime()) ||
		hist[1].EndTime().Equal(hist[0].EndTime()))
}

func TestE2EIgnoreRetrigger(t *testing.T) {
	cfg := NewCommandConfig("Sleepy", "sleep 0.4", "start")
	cfg.OnRetrigger = RetriggerIgnore
	cfg.KeepHistory = 10
	rt := newE2ERuntime(t, cfg)

	h, err := rt.RunCommand("Sleepy")
	require.NoError(t, err)

	_, err = rt.RunCommand("Sleepy")
	var limitErr *cmdorcerrors.ConcurrencyLimitError
	require.True(t, cmdorcerrors.As(err, &limitErr))

	result, err := h.WaitTimeout(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, result.State())

	hist := waitHistoryLen(t, rt, "Sleepy", 1)
	assert.Len(t, hist, 1)
	assert.Equal(t, StateSuccess, hist[0].State())
}

func TestE2ETimeout(t *testing.T) {
	cfg := NewCommandConfig("Slow", "sleep 10", "go")
	cfg.TimeoutSecs = 1
	rt := newE2ERuntime(t, cfg)

	start := time.Now()
	h, err := rt.RunCommand("Slow")
	require.NoError(t, err)

	result, err := h.WaitTimeout(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, result.State())
	assert.Contains(t, result.Err(), "timeout")
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestE2EDiamond(t *testing.T) {
	build := NewCommandConfig("Build", "echo building", "build")
	test := NewCommandConfig("Test", "sleep 0.1", "command_success:Build")
	lint := NewCommandConfig("Lint", "sleep 0.3", "command_success:Build")
	report := NewCommandConfig("Report", "sleep 0.5",
		"command_success:Test", "command_success:Lint")
	report.KeepHistory = 10
	for _, c := range []*CommandConfig{&build, &test, &lint} {
		c.KeepHistory = 5
	}
	rt := newE2ERuntime(t, build, test, lint, report)

	require.NoError(t, rt.Trigger("build"))

	// Build, Test, and Lint each run exactly once.
	assert.Len(t, waitHistoryLen(t, rt, "Build", 1), 1)
	assert.Len(t, waitHistoryLen(t, rt, "Test", 1), 1)
	assert.Len(t, waitHistoryLen(t, rt, "Lint", 1), 1)

	// Report's first run (from Test's earlier success) is superseded by
	// the run triggered by Lint's success; the surviving SUCCESS run
	// carries the later trigger.
	deadline := time.Now().Add(5 * time.Second)
	var success *RunResult
	for time.Now().Before(deadline) && success == nil {
		hist, err := rt.GetHistory("Report", 0)
		require.NoError(t, err)
		for _, r := range hist {
			if r.State() == StateSuccess {
				success = r
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.NotNil(t, success, "Report never finished successfully")
	assert.Equal(t, "command_success:Lint", success.TriggerEvent())
	assert.Contains(t, success.TriggerChain(), "build")
}
