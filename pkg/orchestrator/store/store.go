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

// Package store persists finalized runs. It is the optional output
// storage hook on the executor (orchestrator.RunStore), not part of the
// core orchestration contract. SQLiteStore keeps runs in a sqlite file;
// MemoryStore backs tests.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/eyecantell/cmdorc/pkg/orchestrator"
)

// Record is the persisted form of a finalized run.
type Record struct {
	RunID        string
	CommandName  string
	TriggerEvent string
	State        string
	Output       string
	Error        string
	Comment      string
	Command      string
	Dir          string
	StartTime    time.Time
	EndTime      time.Time
	DurationMs   int64
}

// recordFromResult snapshots a finalized RunResult.
func recordFromResult(r *orchestrator.RunResult) Record {
	rec := Record{
		RunID:        r.RunID(),
		CommandName:  r.CommandName(),
		TriggerEvent: r.TriggerEvent(),
		State:        string(r.State()),
		Output:       r.Output(),
		Error:        r.Err(),
		Comment:      r.Comment(),
		StartTime:    r.StartTime(),
		EndTime:      r.EndTime(),
		DurationMs:   r.Duration().Milliseconds(),
	}
	if resolved := r.Resolved(); resolved != nil {
		rec.Command = resolved.Command
		rec.Dir = resolved.Dir
	}
	return rec
}

// MemoryStore is an in-memory run store for tests and single-shot tools.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// SaveRun implements orchestrator.RunStore.
func (s *MemoryStore) SaveRun(ctx context.Context, r *orchestrator.RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, recordFromResult(r))
	return nil
}

// Runs returns stored records for a command, newest first. Empty command
// matches all; limit <= 0 returns everything.
func (s *MemoryStore) Runs(ctx context.Context, command string, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for i := len(s.records) - 1; i >= 0; i-- {
		if command != "" && s.records[i].CommandName != command {
			continue
		}
		out = append(out, s.records[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Close implements the store lifecycle; MemoryStore holds no resources.
func (s *MemoryStore) Close() error { return nil }
