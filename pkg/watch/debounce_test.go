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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flushRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (f *flushRecorder) record(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *flushRecorder) snapshot() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Event, len(f.events))
	copy(out, f.events)
	return out
}

func TestDebouncerCoalescesBursts(t *testing.T) {
	rec := &flushRecorder{}
	d := NewDebouncer(50*time.Millisecond, rec.record)
	defer d.Stop()

	// A burst of saves to the same file collapses to the last event.
	for i := 0; i < 5; i++ {
		d.Add(Event{Path: "/tmp/a.go", Type: "modified", Time: time.Now()})
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(80 * time.Millisecond)
	assert.Len(t, rec.snapshot(), 1, "burst must deliver exactly one event")
}

func TestDebouncerSeparatePathsFireSeparately(t *testing.T) {
	rec := &flushRecorder{}
	d := NewDebouncer(30*time.Millisecond, rec.record)
	defer d.Stop()

	d.Add(Event{Path: "/tmp/a.go", Type: "modified"})
	d.Add(Event{Path: "/tmp/b.go", Type: "modified"})

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	paths := map[string]bool{}
	for _, ev := range rec.snapshot() {
		paths[ev.Path] = true
	}
	assert.True(t, paths["/tmp/a.go"])
	assert.True(t, paths["/tmp/b.go"])
}

func TestDebouncerStopDropsPending(t *testing.T) {
	rec := &flushRecorder{}
	d := NewDebouncer(50*time.Millisecond, rec.record)

	d.Add(Event{Path: "/tmp/a.go", Type: "modified"})
	assert.Equal(t, 1, d.Pending())
	d.Stop()

	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, rec.snapshot(), "stopped debouncer must not flush")

	// Adds after Stop are dropped.
	d.Add(Event{Path: "/tmp/b.go", Type: "modified"})
	assert.Equal(t, 0, d.Pending())
}
