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
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eyecantell/cmdorc/pkg/errors"
)

// Runtime is the orchestration facade. It owns the command configs, the
// trigger engine and callback registry, the executor, the concurrency
// policy, the live-runs map, and the per-command history buffers.
//
// All Runtime state is guarded by a single mutex; executor calls and
// callbacks are never made while it is held.
type Runtime struct {
	policy   ConcurrencyPolicy
	executor Executor
	engine   *TriggerEngine
	logger   *slog.Logger
	baseDir  string

	mu       sync.Mutex
	configs  map[string]*CommandConfig
	order    []string
	vars     map[string]string
	live     map[string][]*RunResult
	history  map[string][]*RunResult
	lastEnd  map[string]time.Time
	shutdown bool

	// pendingMaxChain carries WithMaxChainLength until the engine is
	// built in New.
	pendingMaxChain int

	// wg tracks completion watchers so Shutdown can await finalizations.
	wg sync.WaitGroup
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithExecutor replaces the default LocalExecutor.
func WithExecutor(ex Executor) Option {
	return func(rt *Runtime) { rt.executor = ex }
}

// WithLogger sets the runtime's logger.
func WithLogger(l *slog.Logger) Option {
	return func(rt *Runtime) { rt.logger = l }
}

// WithBaseDir sets the directory commands run in by default and the
// base_directory template variable. Defaults to the working directory.
func WithBaseDir(dir string) Option {
	return func(rt *Runtime) { rt.baseDir = dir }
}

// WithMaxChainLength sets the hard cap on causal chain length. The cap
// applies regardless of per-command loop detection settings.
func WithMaxChainLength(n int) Option {
	return func(rt *Runtime) { rt.pendingMaxChain = n }
}

// New constructs a Runtime from a validated RunnerConfig. With no
// WithExecutor option it uses a LocalExecutor.
func New(cfg RunnerConfig, opts ...Option) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rt := &Runtime{
		configs: make(map[string]*CommandConfig, len(cfg.Commands)),
		vars:    make(map[string]string, len(cfg.Vars)),
		live:    make(map[string][]*RunResult),
		history: make(map[string][]*RunResult),
		lastEnd: make(map[string]time.Time),
	}
	for k, v := range cfg.Vars {
		rt.vars[k] = v
	}
	for _, opt := range opts {
		opt(rt)
	}

	if rt.logger == nil {
		rt.logger = slog.Default().With("component", "runtime")
	}
	if rt.executor == nil {
		rt.executor = NewLocalExecutor(WithExecutorLogger(rt.logger))
	}
	if rt.baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "resolving base directory")
		}
		rt.baseDir = wd
	}
	if _, ok := rt.vars["base_directory"]; !ok {
		rt.vars["base_directory"] = rt.baseDir
	}

	rt.engine = newTriggerEngine(rt, rt.pendingMaxChain, rt.logger)
	for _, c := range cfg.Commands {
		normalized := c.normalized()
		rt.configs[normalized.Name] = &normalized
		rt.order = append(rt.order, normalized.Name)
		rt.engine.register(rt.configs[normalized.Name])
	}

	rt.logger.Debug("runtime initialized", "commands", len(rt.order))
	return rt, nil
}

// AddCommand registers an additional command at runtime. The name must
// stay unique.
func (rt *Runtime) AddCommand(cfg CommandConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.shutdown {
		return &errors.ShutdownError{Op: "add_command"}
	}
	if _, exists := rt.configs[cfg.Name]; exists {
		return &errors.ConfigError{Command: cfg.Name, Reason: "duplicate command name"}
	}
	normalized := cfg.normalized()
	rt.configs[normalized.Name] = &normalized
	rt.order = append(rt.order, normalized.Name)
	rt.engine.register(rt.configs[normalized.Name])
	return nil
}

// ListCommands returns the registered command names in declaration order.
func (rt *Runtime) ListCommands() []string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	out := make([]string, len(rt.order))
	copy(out, rt.order)
	return out
}

// RunOption customizes a single RunCommand invocation.
type RunOption func(*runOptions)

type runOptions struct {
	triggerEvent string
	vars         map[string]string
}

// WithTriggerEvent records the event that caused this run.
func WithTriggerEvent(event string) RunOption {
	return func(o *runOptions) { o.triggerEvent = event }
}

// WithVars supplies one-shot template variable overrides for this run.
// Overrides take precedence over every other variable tier.
func WithVars(vars map[string]string) RunOption {
	return func(o *runOptions) {
		if o.vars == nil {
			o.vars = make(map[string]string, len(vars))
		}
		for k, v := range vars {
			o.vars[k] = v
		}
	}
}

// RunCommand starts a command directly and returns its handle. The run
// executes in the background; use the handle to await the result.
func (rt *Runtime) RunCommand(name string, opts ...RunOption) (*RunHandle, error) {
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}
	return rt.startRun(name, o.triggerEvent, nil, o.vars)
}

// Trigger fires an event into the engine with a fresh causal chain.
// Dispatch of matching cancels, starts, and callbacks happens before
// Trigger returns; the runs themselves execute in the background.
func (rt *Runtime) Trigger(event string) error {
	rt.mu.Lock()
	if rt.shutdown {
		rt.mu.Unlock()
		return &errors.ShutdownError{Op: "trigger"}
	}
	rt.mu.Unlock()

	rt.logger.Debug("trigger fired", "trigger", event)
	rt.engine.Dispatch(event, nil, nil)
	return nil
}

// startFromTrigger implements commandDispatcher. Policy rejections of
// auto-triggered starts are expected; they are logged, not propagated.
func (rt *Runtime) startFromTrigger(name, event string, chain []string) {
	if _, err := rt.startRun(name, event, chain, nil); err != nil {
		rt.logger.Debug("skipping triggered command",
			"command", name, "trigger", event, "error", err)
	}
}

// activeOf filters out runs that have already finalized but are still
// awaiting removal from the live map by their completion watcher.
func activeOf(runs []*RunResult) []*RunResult {
	out := make([]*RunResult, 0, len(runs))
	for _, r := range runs {
		if !r.IsFinalized() {
			out = append(out, r)
		}
	}
	return out
}

// cancelFromTrigger implements commandDispatcher.
func (rt *Runtime) cancelFromTrigger(name, event string) {
	rt.mu.Lock()
	runs := activeOf(rt.live[name])
	rt.mu.Unlock()
	rt.cancelRuns(context.Background(), runs, fmt.Sprintf("cancelled by trigger %q", event))
}

// startRun is the single path every run creation goes through. chain is
// the branch-local causal chain that led here (nil for direct requests).
func (rt *Runtime) startRun(name, triggerEvent string, chain []string, overrides map[string]string) (*RunHandle, error) {
	rt.mu.Lock()
	var cfg *CommandConfig
	for {
		if rt.shutdown {
			rt.mu.Unlock()
			return nil, &errors.ShutdownError{Op: "run_command"}
		}
		var ok bool
		cfg, ok = rt.configs[name]
		if !ok {
			known := append([]string(nil), rt.order...)
			rt.mu.Unlock()
			return nil, &errors.NotFoundError{Command: name, Known: known}
		}

		// Debounce clock starts at the end of the previous run.
		if cfg.DebounceMs > 0 {
			if last, seen := rt.lastEnd[name]; seen {
				elapsed := time.Since(last)
				required := time.Duration(cfg.DebounceMs) * time.Millisecond
				if elapsed < required {
					rt.mu.Unlock()
					return nil, &errors.DebounceError{Command: name, Elapsed: elapsed, Required: required}
				}
			}
		}

		decision := rt.policy.Decide(cfg, activeOf(rt.live[name]))
		if !decision.Allow {
			active := len(activeOf(rt.live[name]))
			rt.mu.Unlock()
			return nil, &errors.ConcurrencyLimitError{Command: name, Active: active, Max: cfg.MaxConcurrent}
		}
		if len(decision.RunsToCancel) == 0 {
			break
		}

		// Cancellations must finalize before the new run takes its slot,
		// so the active count never exceeds the limit. Re-evaluate the
		// policy afterwards in case another start raced in.
		toCancel := decision.RunsToCancel
		rt.mu.Unlock()
		rt.logger.Debug("cancelling active runs for restart",
			"command", name, "count", len(toCancel))
		rt.cancelRuns(context.Background(), toCancel, fmt.Sprintf("superseded by new run of %q", name))
		rt.mu.Lock()
	}

	resolved, err := rt.resolveCommandLocked(cfg, overrides)
	if err != nil {
		rt.mu.Unlock()
		return nil, err
	}

	// The run's chain includes its own started marker so downstream
	// lifecycle events detect re-entry into this command.
	runChain := make([]string, 0, len(chain)+1)
	runChain = append(runChain, chain...)
	runChain = append(runChain, EventStarted(name))

	result := newRunResult(name, triggerEvent, runChain, resolved, rt.logger)
	result.handle = newRunHandle(result)
	rt.live[name] = append(rt.live[name], result)
	recordRunStarted(name)
	rt.mu.Unlock()

	rt.wg.Add(1)
	go rt.watchCompletion(result)

	rt.logger.Info("run starting",
		"run_id", result.RunID(), "command", name, "trigger", triggerEvent)
	rt.engine.Dispatch(EventStarted(name), chain, result.handle)

	if err := rt.executor.StartRun(context.Background(), result, resolved); err != nil {
		result.MarkCancelled(fmt.Sprintf("executor rejected run: %v", err))
		return result.handle, errors.Wrapf(err, "starting run of %q", name)
	}
	return result.handle, nil
}

// watchCompletion waits for a run's completion signal and performs the
// bookkeeping and lifecycle event emission exactly once.
func (rt *Runtime) watchCompletion(result *RunResult) {
	defer rt.wg.Done()
	<-result.Done()

	name := result.CommandName()
	rt.mu.Lock()
	runs := rt.live[name]
	idx := -1
	for i, r := range runs {
		if r.runID == result.runID {
			idx = i
			break
		}
	}
	if idx < 0 {
		rt.mu.Unlock()
		rt.logger.Debug("ignoring duplicate completion", "run_id", result.RunID(), "command", name)
		return
	}
	rt.live[name] = append(runs[:idx:idx], runs[idx+1:]...)
	rt.lastEnd[name] = result.EndTime()

	if cfg := rt.configs[name]; cfg != nil && cfg.KeepHistory > 0 {
		hist := append(rt.history[name], result)
		// Completion watchers can run out of order; keep history ordered
		// by finalization time so eviction drops the oldest run.
		for i := len(hist) - 1; i > 0 && hist[i].EndTime().Before(hist[i-1].EndTime()); i-- {
			hist[i], hist[i-1] = hist[i-1], hist[i]
		}
		if len(hist) > cfg.KeepHistory {
			hist = hist[len(hist)-cfg.KeepHistory:]
		}
		rt.history[name] = hist
	}
	rt.mu.Unlock()

	state := result.State()
	recordRunCompleted(name, state, result.Duration())
	rt.logger.Info("run finalized",
		"run_id", result.RunID(), "command", name, "state", string(state),
		"duration_ms", result.Duration().Milliseconds())

	// Lifecycle events reuse the run's own chain so cycle detection
	// extends across auto-triggered chains.
	chain := result.TriggerChain()
	rt.engine.Dispatch(eventForState(state, name), chain, result.handle)
	if state == StateSuccess || state == StateFailed {
		rt.engine.Dispatch(EventFinished(name), chain, result.handle)
	}
}

// resolveCommandLocked materializes a ResolvedCommand for one run.
// Variable precedence, highest first: per-invocation overrides, command
// vars, process environment, global vars.
func (rt *Runtime) resolveCommandLocked(cfg *CommandConfig, overrides map[string]string) (*ResolvedCommand, error) {
	merged := make(map[string]string, len(rt.vars)+len(cfg.Vars)+len(overrides))
	for k, v := range rt.vars {
		merged[k] = v
	}
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			merged[kv[:i]] = kv[i+1:]
		}
	}
	for k, v := range cfg.Vars {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}

	command, err := ResolveTemplate(cfg.Command, merged)
	if err != nil {
		return nil, err
	}

	dir := cfg.Cwd
	switch {
	case dir == "":
		dir = rt.baseDir
	case !filepath.IsAbs(dir):
		dir = filepath.Join(rt.baseDir, dir)
	}

	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}
	for k, v := range cfg.Env {
		env[k] = v
	}

	// Snapshot of the template tiers without the raw environment.
	vars := make(map[string]string, len(rt.vars)+len(cfg.Vars)+len(overrides))
	for k, v := range rt.vars {
		vars[k] = v
	}
	for k, v := range cfg.Vars {
		vars[k] = v
	}
	for k, v := range overrides {
		vars[k] = v
	}

	return &ResolvedCommand{
		Command: command,
		Dir:     dir,
		Env:     env,
		Timeout: time.Duration(cfg.TimeoutSecs) * time.Second,
		Vars:    vars,
	}, nil
}

// cancelRuns cancels runs in parallel and waits for every finalization.
func (rt *Runtime) cancelRuns(ctx context.Context, runs []*RunResult, reason string) {
	if len(runs) == 0 {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, run := range runs {
		g.Go(func() error {
			if err := rt.executor.CancelRun(gctx, run, reason); err != nil {
				rt.logger.Warn("cancel failed",
					"run_id", run.RunID(), "command", run.CommandName(), "error", err)
			}
			<-run.Done()
			return nil
		})
	}
	_ = g.Wait()
}

// CancelRun cancels one run. Cancelling a finalized run is a no-op.
func (rt *Runtime) CancelRun(h *RunHandle, reason string) {
	if h == nil {
		return
	}
	rt.cancelRuns(context.Background(), []*RunResult{h.result}, reason)
}

// CancelCommand cancels all active runs of the named command in parallel.
func (rt *Runtime) CancelCommand(name, reason string) error {
	rt.mu.Lock()
	if _, ok := rt.configs[name]; !ok {
		known := append([]string(nil), rt.order...)
		rt.mu.Unlock()
		return &errors.NotFoundError{Command: name, Known: known}
	}
	runs := activeOf(rt.live[name])
	rt.mu.Unlock()

	rt.cancelRuns(context.Background(), runs, reason)
	return nil
}

// CancelAll cancels every active run across every command.
func (rt *Runtime) CancelAll(reason string) {
	rt.cancelRuns(context.Background(), rt.allActiveLocked(), reason)
}

// allActiveLocked snapshots every live run.
func (rt *Runtime) allActiveLocked() []*RunResult {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	var runs []*RunResult
	for _, name := range rt.order {
		runs = append(runs, activeOf(rt.live[name])...)
	}
	return runs
}

// Shutdown stops the runtime. With cancelRunning true every active run is
// cancelled first; the executor is then cleaned up and Shutdown waits up
// to timeout for all finalizations (timeout <= 0 waits indefinitely).
// Shutdown is idempotent; operations after it fail with a
// *errors.ShutdownError.
func (rt *Runtime) Shutdown(timeout time.Duration, cancelRunning bool) error {
	rt.mu.Lock()
	if rt.shutdown {
		rt.mu.Unlock()
		return nil
	}
	rt.shutdown = true
	rt.mu.Unlock()

	rt.logger.Info("runtime shutting down", "cancel_running", cancelRunning)

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if cancelRunning {
		rt.cancelRuns(ctx, rt.allActiveLocked(), "runtime shutdown")
	}
	if err := rt.executor.Cleanup(ctx); err != nil {
		rt.logger.Warn("executor cleanup failed", "error", err)
	}

	done := make(chan struct{})
	go func() {
		rt.wg.Wait()
		close(done)
	}()
	if timeout <= 0 {
		<-done
		return nil
	}
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return &errors.WaitTimeoutError{Timeout: timeout}
	}
}

// GetStatus derives the command's status on call.
func (rt *Runtime) GetStatus(name string) (CommandStatus, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if _, ok := rt.configs[name]; !ok {
		return CommandStatus{}, &errors.NotFoundError{Command: name, Known: append([]string(nil), rt.order...)}
	}

	status := CommandStatus{ActiveCount: len(activeOf(rt.live[name])), State: StatusNeverRun}
	if hist := rt.history[name]; len(hist) > 0 {
		status.LastRun = hist[len(hist)-1]
		status.State = statusForRunState(status.LastRun.State())
	}
	if status.ActiveCount > 0 {
		status.State = StatusRunning
	}
	return status, nil
}

// GetHistory returns finalized runs newest-first. limit <= 0 returns the
// whole retained history.
func (rt *Runtime) GetHistory(name string, limit int) ([]*RunResult, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if _, ok := rt.configs[name]; !ok {
		return nil, &errors.NotFoundError{Command: name, Known: append([]string(nil), rt.order...)}
	}
	hist := rt.history[name]
	n := len(hist)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*RunResult, 0, n)
	for i := len(hist) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, hist[i])
	}
	return out, nil
}

// GetActiveHandles returns handles for the command's live runs.
func (rt *Runtime) GetActiveHandles(name string) ([]*RunHandle, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if _, ok := rt.configs[name]; !ok {
		return nil, &errors.NotFoundError{Command: name, Known: append([]string(nil), rt.order...)}
	}
	active := activeOf(rt.live[name])
	handles := make([]*RunHandle, 0, len(active))
	for _, r := range active {
		handles = append(handles, r.handle)
	}
	return handles, nil
}

// GetAllActiveHandles returns handles for every live run across commands.
func (rt *Runtime) GetAllActiveHandles() []*RunHandle {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	var handles []*RunHandle
	for _, name := range rt.order {
		for _, r := range activeOf(rt.live[name]) {
			handles = append(handles, r.handle)
		}
	}
	return handles
}

// GetResult fetches a run by ID, searching live runs and history. With an
// empty runID it returns the most recent live run, else the most recent
// finalized run, else nil.
func (rt *Runtime) GetResult(name, runID string) (*RunResult, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if _, ok := rt.configs[name]; !ok {
		return nil, &errors.NotFoundError{Command: name, Known: append([]string(nil), rt.order...)}
	}

	if runID == "" {
		if live := activeOf(rt.live[name]); len(live) > 0 {
			return live[len(live)-1], nil
		}
		if hist := rt.history[name]; len(hist) > 0 {
			return hist[len(hist)-1], nil
		}
		return nil, nil
	}

	for _, runs := range [][]*RunResult{rt.live[name], rt.history[name]} {
		for _, r := range runs {
			if r.runID == runID {
				return r, nil
			}
		}
	}
	return nil, fmt.Errorf("run not found: %s", runID)
}

// OnEvent subscribes a callback to events matching pattern. Patterns are
// exact trigger strings, optionally with a single * wildcard matching one
// or more non-colon characters.
func (rt *Runtime) OnEvent(pattern string, cb Callback) (*Subscription, error) {
	return rt.engine.subscribe(pattern, cb)
}

// OffEvent removes a subscription returned by OnEvent.
func (rt *Runtime) OffEvent(sub *Subscription) {
	rt.engine.unsubscribe(sub)
}

// SetLifecycleCallbacks subscribes per-state callbacks for one command's
// lifecycle events. Nil callbacks are skipped.
func (rt *Runtime) SetLifecycleCallbacks(name string, cbs LifecycleCallbacks) error {
	rt.mu.Lock()
	if _, ok := rt.configs[name]; !ok {
		known := append([]string(nil), rt.order...)
		rt.mu.Unlock()
		return &errors.NotFoundError{Command: name, Known: known}
	}
	rt.mu.Unlock()

	pairs := []struct {
		event string
		cb    Callback
	}{
		{EventStarted(name), cbs.OnStarted},
		{EventSuccess(name), cbs.OnSuccess},
		{EventFailed(name), cbs.OnFailed},
		{EventCancelled(name), cbs.OnCancelled},
	}
	for _, p := range pairs {
		if p.cb == nil {
			continue
		}
		if _, err := rt.engine.subscribe(p.event, p.cb); err != nil {
			return err
		}
	}
	return nil
}

// SetVar sets a global template variable.
func (rt *Runtime) SetVar(key, value string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.vars[key] = value
}

// SetVars merges the given variables into the global set.
func (rt *Runtime) SetVars(vars map[string]string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for k, v := range vars {
		rt.vars[k] = v
	}
}

// Vars returns a copy of the global template variables.
func (rt *Runtime) Vars() map[string]string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	out := make(map[string]string, len(rt.vars))
	for k, v := range rt.vars {
		out[k] = v
	}
	return out
}

// ValidateTemplates resolves every command template against the current
// globals without running anything. It returns a map of command name to
// the resolution errors found; an empty map means all templates resolve.
func (rt *Runtime) ValidateTemplates() map[string][]string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	problems := make(map[string][]string)
	for _, name := range rt.order {
		if _, err := rt.resolveCommandLocked(rt.configs[name], nil); err != nil {
			problems[name] = append(problems[name], err.Error())
		}
	}
	return problems
}

// CommandsByTrigger returns the names of commands started when the given
// trigger fires, in registration order.
func (rt *Runtime) CommandsByTrigger(event string) []string {
	return rt.engine.startsFor(event)
}

// CommandsByCancelTrigger returns the names of commands cancelled when the
// given trigger fires.
func (rt *Runtime) CommandsByCancelTrigger(event string) []string {
	return rt.engine.cancelsFor(event)
}

// HasTrigger reports whether the event starts any command.
func (rt *Runtime) HasTrigger(event string) bool { return rt.engine.hasStartTrigger(event) }

// HasCancelTrigger reports whether the event cancels any command.
func (rt *Runtime) HasCancelTrigger(event string) bool { return rt.engine.hasCancelTrigger(event) }

// HasAnyHandler reports whether the event starts commands, cancels
// commands, or matches any callback subscription.
func (rt *Runtime) HasAnyHandler(event string) bool {
	return rt.engine.hasStartTrigger(event) || rt.engine.hasCancelTrigger(event) || rt.engine.hasCallback(event)
}

// WaitForStatus polls until the command's derived status is one of the
// given states or ctx is done.
func (rt *Runtime) WaitForStatus(ctx context.Context, name string, states ...StatusState) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		status, err := rt.GetStatus(name)
		if err != nil {
			return err
		}
		for _, s := range states {
			if status.State == s {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "waiting for status of %q", name)
		case <-ticker.C:
		}
	}
}

// WaitForNotRunning polls until the command has no active runs.
func (rt *Runtime) WaitForNotRunning(ctx context.Context, name string) error {
	return rt.WaitForStatus(ctx, name, StatusNeverRun, StatusSuccess, StatusFailed, StatusCancelled)
}
