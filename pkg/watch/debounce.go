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

package watch

import (
	"sync"
	"time"
)

// Debouncer manages per-path debounce timers so rapid bursts of changes
// to the same file (e.g. multiple editor saves) deliver one event.
// Delivery is delayed until no new events arrive for the window duration;
// the latest event wins.
type Debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	timers  map[string]*debounceTimer
	onFlush func(Event)
	stopped bool
}

// debounceTimer tracks the pending timer for one path.
type debounceTimer struct {
	timer *time.Timer
	event Event
}

// NewDebouncer creates a debouncer delivering events through onFlush.
func NewDebouncer(window time.Duration, onFlush func(Event)) *Debouncer {
	return &Debouncer{
		window:  window,
		timers:  make(map[string]*debounceTimer),
		onFlush: onFlush,
	}
}

// Add records an event, resetting the path's timer if one is pending.
func (d *Debouncer) Add(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	dt, exists := d.timers[ev.Path]
	if exists {
		dt.timer.Stop()
		dt.event = ev
	} else {
		dt = &debounceTimer{event: ev}
		d.timers[ev.Path] = dt
	}

	path := ev.Path
	dt.timer = time.AfterFunc(d.window, func() {
		d.flush(path)
	})
}

// flush delivers the pending event for a path and drops its timer.
func (d *Debouncer) flush(path string) {
	d.mu.Lock()
	dt, exists := d.timers[path]
	if !exists || d.stopped {
		d.mu.Unlock()
		return
	}
	delete(d.timers, path)
	ev := dt.event
	d.mu.Unlock()

	d.onFlush(ev)
}

// Stop cancels all pending timers; subsequent Adds are dropped.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for path, dt := range d.timers {
		dt.timer.Stop()
		delete(d.timers, path)
	}
}

// Pending returns the number of paths waiting on a timer.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}
