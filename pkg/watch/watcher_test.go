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
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTriggerer counts fired triggers.
type fakeTriggerer struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeTriggerer) Trigger(event string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeTriggerer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func TestWatcherValidation(t *testing.T) {
	target := &fakeTriggerer{}
	dir := t.TempDir()

	_, err := New(Config{Trigger: "x"}, target)
	require.Error(t, err, "missing path")

	_, err = New(Config{Path: dir}, target)
	require.Error(t, err, "missing trigger")

	_, err = New(Config{Path: dir, Trigger: "x"}, nil)
	require.Error(t, err, "missing target")

	_, err = New(Config{Path: dir, Trigger: "x", Include: []string{"[bad"}}, target)
	require.Error(t, err, "invalid pattern")
}

func TestWatcherFiresTriggerOnWrite(t *testing.T) {
	dir := t.TempDir()
	target := &fakeTriggerer{}

	w, err := New(Config{
		Path:    dir,
		Trigger: "file_changed",
		Include: []string{"*.txt"},
	}, target)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.txt"), []byte("hi"), 0o600))

	require.Eventually(t, func() bool {
		return target.count() >= 1
	}, 3*time.Second, 20*time.Millisecond, "write should fire the trigger")

	target.mu.Lock()
	assert.Equal(t, "file_changed", target.events[0])
	target.mu.Unlock()
}

func TestWatcherIgnoresNonMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	target := &fakeTriggerer{}

	w, err := New(Config{
		Path:    dir,
		Trigger: "file_changed",
		Include: []string{"*.go"},
	}, target)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.md"), []byte("x"), 0o600))

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 0, target.count(), "non-matching files must not trigger")
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	target := &fakeTriggerer{}

	w, err := New(Config{
		Path:     dir,
		Trigger:  "file_changed",
		Include:  []string{"*.txt"},
		Debounce: 100 * time.Millisecond,
	}, target)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	path := filepath.Join(dir, "burst.txt")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte(i)}, 0o600))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return target.count() >= 1
	}, 3*time.Second, 20*time.Millisecond)

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, target.count(), "a write burst must collapse into one trigger")
}
