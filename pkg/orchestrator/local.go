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
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eyecantell/cmdorc/pkg/errors"
)

// defaultGracePeriod is how long CancelRun waits between the soft
// terminate signal and the hard kill.
const defaultGracePeriod = 3 * time.Second

// LocalExecutor runs commands as local subprocesses through the platform
// shell. Stdout and stderr are captured merged; on Unix each child starts
// in its own process group so termination reaches descendants.
type LocalExecutor struct {
	grace  time.Duration
	store  RunStore
	logger *slog.Logger

	mu      sync.Mutex
	procs   map[string]*procEntry
	cleaned bool
}

// procEntry tracks one live subprocess.
type procEntry struct {
	cmd    *exec.Cmd
	out    *syncBuffer
	result *RunResult

	// cancelling is set by CancelRun before signalling, so the monitor
	// leaves finalization to the canceller.
	cancelling atomic.Bool

	// exited closes after the process is reaped and output is flushed.
	exited chan struct{}
}

// LocalOption configures a LocalExecutor.
type LocalOption func(*LocalExecutor)

// WithGracePeriod sets the soft-terminate grace period before a hard kill.
func WithGracePeriod(d time.Duration) LocalOption {
	return func(e *LocalExecutor) { e.grace = d }
}

// WithStore persists every finalized run to the given store.
func WithStore(s RunStore) LocalOption {
	return func(e *LocalExecutor) { e.store = s }
}

// WithExecutorLogger sets the executor's logger.
func WithExecutorLogger(l *slog.Logger) LocalOption {
	return func(e *LocalExecutor) { e.logger = l }
}

// NewLocalExecutor creates the default subprocess executor.
func NewLocalExecutor(opts ...LocalOption) *LocalExecutor {
	e := &LocalExecutor{
		grace:  defaultGracePeriod,
		logger: slog.Default().With("component", "local_executor"),
		procs:  make(map[string]*procEntry),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartRun implements Executor. The subprocess is launched immediately;
// a monitor goroutine owns the wait, timeout enforcement, and output
// capture. Spawn failures are reflected in the result as FAILED.
func (e *LocalExecutor) StartRun(ctx context.Context, result *RunResult, resolved *ResolvedCommand) error {
	if result.IsFinalized() {
		// Cancelled before the executor saw it.
		return nil
	}
	e.mu.Lock()
	if e.cleaned {
		e.mu.Unlock()
		return &errors.ExecutorError{Op: "start_run", Cause: errors.New("executor already cleaned up")}
	}
	e.mu.Unlock()

	cmd := shellCommand(resolved.Command)
	cmd.Dir = resolved.Dir
	cmd.Env = envList(resolved.Env)
	out := &syncBuffer{}
	cmd.Stdout = out
	cmd.Stderr = out
	setProcAttrs(cmd)

	if err := cmd.Start(); err != nil {
		// An unlaunchable command is an expected failure: surface it in
		// the result rather than to the caller.
		result.MarkRunning()
		result.MarkFailed(fmt.Sprintf("failed to start process: %v", err))
		e.saveRun(result)
		return nil
	}

	entry := &procEntry{cmd: cmd, out: out, result: result, exited: make(chan struct{})}
	e.mu.Lock()
	e.procs[result.RunID()] = entry
	e.mu.Unlock()

	result.MarkRunning()
	e.logger.Debug("subprocess started",
		"run_id", result.RunID(), "command", result.CommandName(), "pid", cmd.Process.Pid)

	go e.monitor(entry, resolved)
	return nil
}

// monitor waits for the subprocess, enforcing the timeout, and finalizes
// the result unless a concurrent CancelRun has claimed it.
func (e *LocalExecutor) monitor(entry *procEntry, resolved *ResolvedCommand) {
	result := entry.result

	waitCh := make(chan error, 1)
	go func() { waitCh <- entry.cmd.Wait() }()

	var timeoutCh <-chan time.Time
	if resolved.Timeout > 0 {
		timer := time.NewTimer(resolved.Timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	var waitErr error
	timedOut := false
	select {
	case waitErr = <-waitCh:
	case <-timeoutCh:
		timedOut = true
		// Mark failed before killing so the failure cause is the timeout,
		// not the kill signal's exit status.
		result.SetOutput(decodeOutput(entry.out.Bytes()))
		result.MarkFailed(fmt.Sprintf("timeout: command exceeded %v", resolved.Timeout))
		killProcess(entry.cmd)
		waitErr = <-waitCh
	}

	if !timedOut {
		result.SetOutput(decodeOutput(entry.out.Bytes()))
	}

	if !timedOut && !entry.cancelling.Load() {
		if waitErr == nil {
			result.MarkSuccess()
		} else if exitErr, ok := waitErr.(*exec.ExitError); ok {
			result.MarkFailed(fmt.Sprintf("command exited with code %d", exitErr.ExitCode()))
		} else {
			result.MarkFailed(fmt.Sprintf("command failed: %v", waitErr))
		}
	}

	e.mu.Lock()
	delete(e.procs, result.RunID())
	e.mu.Unlock()
	close(entry.exited)

	if result.IsFinalized() && !entry.cancelling.Load() {
		e.saveRun(result)
	}
}

// CancelRun implements Executor: soft terminate, bounded grace wait, hard
// kill, then finalize CANCELLED after the process is reaped. Cancelling a
// finalized run is a cheap no-op.
func (e *LocalExecutor) CancelRun(ctx context.Context, result *RunResult, comment string) error {
	if result.IsFinalized() {
		return nil
	}
	if comment == "" {
		comment = "command cancelled"
	}

	e.mu.Lock()
	entry := e.procs[result.RunID()]
	e.mu.Unlock()

	if entry == nil {
		// Not started or already reaped; whoever finalized first wins.
		result.MarkCancelled(comment)
		e.saveRun(result)
		return nil
	}

	entry.cancelling.Store(true)
	e.logger.Debug("cancelling run", "run_id", result.RunID(), "command", result.CommandName())

	terminateProcess(entry.cmd)

	grace := time.NewTimer(e.grace)
	defer grace.Stop()
	select {
	case <-entry.exited:
	case <-grace.C:
		e.logger.Warn("process ignored soft terminate, killing",
			"run_id", result.RunID(), "command", result.CommandName())
		killProcess(entry.cmd)
		<-entry.exited
	case <-ctx.Done():
		killProcess(entry.cmd)
		<-entry.exited
	}

	// The monitor flushed partial output before closing exited; finalize
	// unless the run already won the race with SUCCESS/FAILED.
	result.MarkCancelled(comment)
	e.saveRun(result)
	return nil
}

// Cleanup implements Executor: cancels all active runs in parallel and
// refuses future starts. Repeated calls are no-ops.
func (e *LocalExecutor) Cleanup(ctx context.Context) error {
	e.mu.Lock()
	if e.cleaned {
		e.mu.Unlock()
		e.logger.Debug("cleanup already performed")
		return nil
	}
	e.cleaned = true
	entries := make([]*procEntry, 0, len(e.procs))
	for _, entry := range e.procs {
		entries = append(entries, entry)
	}
	e.mu.Unlock()

	if len(entries) == 0 {
		return nil
	}
	e.logger.Info("cleaning up active subprocesses", "count", len(entries))

	g, gctx := errgroup.WithContext(ctx)
	for _, entry := range entries {
		g.Go(func() error {
			return e.CancelRun(gctx, entry.result, "executor cleanup")
		})
	}
	return g.Wait()
}

// saveRun persists a finalized run when a store is configured. Store
// failures are logged, never surfaced to the run.
func (e *LocalExecutor) saveRun(result *RunResult) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveRun(context.Background(), result); err != nil {
		e.logger.Warn("failed to persist run",
			"run_id", result.RunID(), "command", result.CommandName(), "error", err)
	}
}

// shellCommand builds the platform shell invocation for a resolved command
// string.
func shellCommand(command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.Command("cmd", "/C", command)
	}
	return exec.Command("sh", "-c", command)
}

// envList flattens an environment map into the KEY=VALUE form exec wants,
// sorted for deterministic child environments.
func envList(env map[string]string) []string {
	list := make([]string, 0, len(env))
	for k, v := range env {
		list = append(list, k+"="+v)
	}
	sort.Strings(list)
	return list
}

// decodeOutput renders captured bytes as UTF-8, replacing invalid
// sequences instead of failing on binary output.
func decodeOutput(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

// syncBuffer is a goroutine-safe bytes.Buffer. Stdout and stderr of the
// child both write to one instance, merging the streams.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, b.buf.Len())
	copy(out, b.buf.Bytes())
	return out
}
