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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmdorc_runs_started_total",
			Help: "Total command runs started",
		},
		[]string{"command"},
	)

	runsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmdorc_runs_completed_total",
			Help: "Total command runs finalized by terminal state",
		},
		[]string{"command", "state"},
	)

	runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cmdorc_run_duration_seconds",
			Help:    "Duration of finalized command runs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	activeRuns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cmdorc_active_runs",
			Help: "Currently live runs per command",
		},
		[]string{"command"},
	)
)

// recordRunStarted updates metrics when a run enters the live set.
func recordRunStarted(command string) {
	runsStarted.WithLabelValues(command).Inc()
	activeRuns.WithLabelValues(command).Inc()
}

// recordRunCompleted updates metrics when a run leaves the live set.
func recordRunCompleted(command string, state RunState, duration time.Duration) {
	runsCompleted.WithLabelValues(command, string(state)).Inc()
	runDuration.WithLabelValues(command).Observe(duration.Seconds())
	activeRuns.WithLabelValues(command).Dec()
}
