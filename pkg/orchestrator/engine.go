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
	"log/slog"
	"sync"

	"github.com/eyecantell/cmdorc/pkg/errors"
)

// defaultMaxChainLength caps the causal chain regardless of per-command
// loop detection settings.
const defaultMaxChainLength = 64

// commandDispatcher is the slice of the Runtime the engine calls back
// into. Split out as an interface so the engine can be exercised alone in
// tests.
type commandDispatcher interface {
	// startFromTrigger starts a run of the named command because event
	// fired. chain is the branch-local causal chain including event.
	startFromTrigger(name, event string, chain []string)

	// cancelFromTrigger cancels all active runs of the named command
	// because event fired, awaiting their finalization.
	cancelFromTrigger(name, event string)
}

// Subscription identifies a registered event callback so it can be removed.
type Subscription struct {
	id      uint64
	pattern string
}

// Pattern returns the pattern string this subscription was registered with.
func (s *Subscription) Pattern() string { return s.pattern }

// subscriberEntry pairs a compiled pattern with its callback.
type subscriberEntry struct {
	id       uint64
	pattern  eventPattern
	callback Callback
}

// TriggerEngine maps trigger strings to subscribed commands and callbacks
// and performs event dispatch with cycle detection. It owns two indexes:
// the start index (from each command's triggers) and the cancel index
// (from cancel_on_triggers), plus the callback registry.
type TriggerEngine struct {
	mu          sync.Mutex
	startIndex  map[string][]*CommandConfig
	cancelIndex map[string][]*CommandConfig
	subs        []*subscriberEntry
	nextSubID   uint64

	maxChainLength int
	dispatcher     commandDispatcher
	logger         *slog.Logger
}

// newTriggerEngine creates an engine dispatching into d.
func newTriggerEngine(d commandDispatcher, maxChainLength int, logger *slog.Logger) *TriggerEngine {
	if maxChainLength <= 0 {
		maxChainLength = defaultMaxChainLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TriggerEngine{
		startIndex:     make(map[string][]*CommandConfig),
		cancelIndex:    make(map[string][]*CommandConfig),
		maxChainLength: maxChainLength,
		dispatcher:     d,
		logger:         logger,
	}
}

// register adds a command's triggers to both indexes.
func (e *TriggerEngine) register(cfg *CommandConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range cfg.Triggers {
		e.startIndex[t] = append(e.startIndex[t], cfg)
	}
	for _, t := range cfg.CancelOnTriggers {
		e.cancelIndex[t] = append(e.cancelIndex[t], cfg)
	}
}

// subscribe registers a callback for events matching pattern.
func (e *TriggerEngine) subscribe(pattern string, cb Callback) (*Subscription, error) {
	compiled, err := compileEventPattern(pattern)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextSubID++
	e.subs = append(e.subs, &subscriberEntry{id: e.nextSubID, pattern: compiled, callback: cb})
	return &Subscription{id: e.nextSubID, pattern: pattern}, nil
}

// unsubscribe removes a previously registered callback. Unknown
// subscriptions are ignored.
func (e *TriggerEngine) unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, entry := range e.subs {
		if entry.id == sub.id {
			e.subs = append(e.subs[:i], e.subs[i+1:]...)
			return
		}
	}
}

// hasStartTrigger reports whether event starts any command.
func (e *TriggerEngine) hasStartTrigger(event string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.startIndex[event]) > 0
}

// hasCancelTrigger reports whether event cancels any command.
func (e *TriggerEngine) hasCancelTrigger(event string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cancelIndex[event]) > 0
}

// hasCallback reports whether any subscription matches event.
func (e *TriggerEngine) hasCallback(event string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, entry := range e.subs {
		if entry.pattern.Match(event) {
			return true
		}
	}
	return false
}

// startsFor returns the names of commands started by event, in
// registration order.
func (e *TriggerEngine) startsFor(event string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.startIndex[event]))
	for _, cfg := range e.startIndex[event] {
		names = append(names, cfg.Name)
	}
	return names
}

// cancelsFor returns the names of commands cancelled by event.
func (e *TriggerEngine) cancelsFor(event string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.cancelIndex[event]))
	for _, cfg := range e.cancelIndex[event] {
		names = append(names, cfg.Name)
	}
	return names
}

// Dispatch fires event down a causal chain. Side effects happen in a
// deterministic order: cancel-index effects, then start-index effects,
// then callbacks. chain is the caller's causal context; each downstream
// branch receives its own copy. h is the run the event concerns, if any.
func (e *TriggerEngine) Dispatch(event string, chain []string, h *RunHandle) {
	if len(chain) >= e.maxChainLength {
		e.logger.Warn("trigger chain length cap reached, aborting branch",
			"trigger", event, "cap", e.maxChainLength, "chain_tail", recentChain(chain))
		return
	}
	repeated := containsString(chain, event)

	// Branch-local chain: parallel branches never share backing arrays.
	branch := make([]string, 0, len(chain)+1)
	branch = append(branch, chain...)
	branch = append(branch, event)

	e.mu.Lock()
	cancels := append([]*CommandConfig(nil), e.cancelIndex[event]...)
	starts := append([]*CommandConfig(nil), e.startIndex[event]...)
	var callbacks []*subscriberEntry
	for _, entry := range e.subs {
		if entry.pattern.Match(event) {
			callbacks = append(callbacks, entry)
		}
	}
	e.mu.Unlock()

	for _, cfg := range cancels {
		e.dispatcher.cancelFromTrigger(cfg.Name, event)
	}

	for _, cfg := range starts {
		if cfg.LoopDetectionEnabled() {
			// A repeat of the event itself, or of this command's started
			// marker, means the chain has come back around.
			if repeated {
				e.warnCycle(event, chain)
				continue
			}
			if containsString(branch, EventStarted(cfg.Name)) {
				e.warnCycle(EventStarted(cfg.Name), branch)
				continue
			}
		}
		e.dispatcher.startFromTrigger(cfg.Name, event, branch)
	}

	for _, entry := range callbacks {
		e.invokeCallback(entry, event, branch, h)
	}
}

// invokeCallback runs one callback, containing errors and panics so they
// never abort the dispatch or other callbacks.
func (e *TriggerEngine) invokeCallback(entry *subscriberEntry, event string, branch []string, h *RunHandle) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Warn("event callback panicked",
				"trigger", event, "pattern", entry.pattern.raw, "panic", rec)
		}
	}()
	chainCopy := make([]string, len(branch))
	copy(chainCopy, branch)
	if err := entry.callback(h, EventContext{Event: event, Chain: chainCopy}); err != nil {
		e.logger.Warn("event callback failed",
			"trigger", event, "pattern", entry.pattern.raw, "error", err)
	}
}

// warnCycle logs a detected trigger cycle with the recent chain.
func (e *TriggerEngine) warnCycle(event string, chain []string) {
	cycle := &errors.CycleError{Event: event, Path: recentChain(chain)}
	e.logger.Warn("trigger cycle detected, aborting branch", "trigger", event, "cycle", cycle.Error())
}

// recentChain returns the last few chain entries for readable warnings.
func recentChain(chain []string) []string {
	const keep = 8
	if len(chain) <= keep {
		return chain
	}
	return chain[len(chain)-keep:]
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
