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

// Package watch fires orchestrator triggers on filesystem changes. It
// pairs an fsnotify watcher with include/exclude glob filtering and
// per-path debouncing, so rapid editor save bursts collapse into a single
// trigger.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Triggerer is the slice of the orchestrator the watcher needs: firing a
// trigger event. *orchestrator.Runtime satisfies it.
type Triggerer interface {
	Trigger(event string) error
}

// Event is one filesystem change that survived filtering.
type Event struct {
	Path string
	Type string
	Time time.Time
}

// eventTypeMap maps fsnotify operations to event type names.
var eventTypeMap = map[fsnotify.Op]string{
	fsnotify.Create: "created",
	fsnotify.Write:  "modified",
	fsnotify.Remove: "deleted",
	fsnotify.Rename: "renamed",
}

// Config describes what to watch and which trigger to fire.
type Config struct {
	// Path is the file or directory to watch.
	Path string

	// Recursive watches all subdirectories of Path, including ones
	// created while watching.
	Recursive bool

	// Include and Exclude are doublestar glob patterns applied to each
	// changed path. Empty Include matches everything; Exclude wins.
	Include []string
	Exclude []string

	// Events limits which change types fire (created, modified, deleted,
	// renamed). Empty watches all types.
	Events []string

	// Trigger is the orchestrator trigger fired for surviving events.
	Trigger string

	// Debounce collapses changes to the same path arriving within the
	// window into one trigger. 0 fires immediately.
	Debounce time.Duration
}

// Watcher observes a filesystem tree and fires a trigger into the
// orchestrator for each (debounced) change.
type Watcher struct {
	cfg       Config
	target    Triggerer
	fsw       *fsnotify.Watcher
	matcher   *PatternMatcher
	debouncer *Debouncer
	events    map[string]bool
	logger    *slog.Logger
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// New creates a watcher firing cfg.Trigger on target.
func New(cfg Config, target Triggerer) (*Watcher, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("watch path is required")
	}
	if cfg.Trigger == "" {
		return nil, fmt.Errorf("watch trigger is required")
	}
	if target == nil {
		return nil, fmt.Errorf("watch target is required")
	}

	matcher, err := NewPatternMatcher(cfg.Include, cfg.Exclude)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	cfg.Path = absPath

	eventMap := make(map[string]bool)
	if len(cfg.Events) == 0 {
		for _, name := range eventTypeMap {
			eventMap[name] = true
		}
	} else {
		for _, e := range cfg.Events {
			eventMap[e] = true
		}
	}

	w := &Watcher{
		cfg:     cfg,
		target:  target,
		fsw:     fsw,
		matcher: matcher,
		events:  eventMap,
		logger: slog.Default().With(
			slog.String("component", "watch"), slog.String("path", absPath)),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	if cfg.Debounce > 0 {
		w.debouncer = NewDebouncer(cfg.Debounce, func(ev Event) { w.fire(ev) })
	}

	if err := w.addWatches(absPath); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// addWatches registers the root path and, in recursive mode, every
// subdirectory.
func (w *Watcher) addWatches(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("failed to stat watch path: %w", err)
	}
	if !info.IsDir() || !w.cfg.Recursive {
		if err := w.fsw.Add(root); err != nil {
			return fmt.Errorf("failed to watch path: %w", err)
		}
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
		}
		return nil
	})
}

// Start begins watching. The loop runs until Stop or ctx cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	go w.eventLoop(ctx)
	w.logger.Info("file watcher started", "trigger", w.cfg.Trigger)
	return nil
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	<-w.doneCh
	if w.debouncer != nil {
		w.debouncer.Stop()
	}
	return w.fsw.Close()
}

// eventLoop converts fsnotify events into orchestrator triggers.
func (w *Watcher) eventLoop(ctx context.Context) {
	defer close(w.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		case fsEvent, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(fsEvent)
		}
	}
}

// handleEvent filters one fsnotify event and routes it to the debouncer
// or fires it directly.
func (w *Watcher) handleEvent(fsEvent fsnotify.Event) {
	// New directories need their own watch in recursive mode.
	if w.cfg.Recursive && fsEvent.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(fsEvent.Name); err == nil && info.IsDir() {
			if err := w.fsw.Add(fsEvent.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "dir", fsEvent.Name, "error", err)
			}
			return
		}
	}

	eventType := ""
	for op, name := range eventTypeMap {
		if fsEvent.Op.Has(op) {
			eventType = name
			break
		}
	}
	if eventType == "" || !w.events[eventType] {
		return
	}
	if !w.matcher.Match(fsEvent.Name) {
		return
	}

	ev := Event{Path: fsEvent.Name, Type: eventType, Time: time.Now()}
	recordWatchEvent(eventType)
	if w.debouncer != nil {
		w.debouncer.Add(ev)
		return
	}
	w.fire(ev)
}

// fire sends the configured trigger into the orchestrator.
func (w *Watcher) fire(ev Event) {
	w.logger.Debug("firing trigger for file event",
		"trigger", w.cfg.Trigger, "file", ev.Path, "type", ev.Type)
	if err := w.target.Trigger(w.cfg.Trigger); err != nil {
		w.logger.Warn("trigger rejected", "trigger", w.cfg.Trigger, "error", err)
	}
}
