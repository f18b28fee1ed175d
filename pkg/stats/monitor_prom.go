// Copyright 2025 PIR2Motion Authors
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

package stats

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

func (m *Monitor) initPrometheus() {
	labels := prometheus.Labels{"node_id": m.nodeID}

	m.motionEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   "pir2motion",
		Subsystem:   "sensor",
		Name:        "motion_events_total",
		ConstLabels: labels,
	}, []string{"type"})

	m.recordings = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   "pir2motion",
		Subsystem:   "recorder",
		Name:        "recordings_total",
		ConstLabels: labels,
	}, []string{"mode"})

	m.recordingFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   "pir2motion",
		Subsystem:   "recorder",
		Name:        "failures_total",
		ConstLabels: labels,
	}, []string{"mode"})

	m.recordingDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   "pir2motion",
		Subsystem:   "recorder",
		Name:        "recording_seconds",
		ConstLabels: labels,
		Buckets:     []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"mode"})

	m.recording = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "pir2motion",
		Subsystem:   "recorder",
		Name:        "recording",
		ConstLabels: labels,
	})

	m.filesDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   "pir2motion",
		Subsystem:   "retention",
		Name:        "files_deleted_total",
		ConstLabels: labels,
	})

	m.cleanupFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   "pir2motion",
		Subsystem:   "retention",
		Name:        "failures_total",
		ConstLabels: labels,
	})
}

// Register adds the monitor's collectors, and any extra ones, to the process
// registry served by PromHandler. Only one monitor may be registered.
func (m *Monitor) Register(extra ...prometheus.Collector) error {
	for _, c := range append([]prometheus.Collector{
		m.motionEvents,
		m.recordings,
		m.recordingFailures,
		m.recordingDuration,
		m.recording,
		m.filesDeleted,
		m.cleanupFailures,
	}, extra...) {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func PromHandler() http.Handler {
	return promhttp.InstrumentMetricHandler(
		registry, promhttp.HandlerFor(prometheus.Gatherers{registry, prometheus.DefaultGatherer}, promhttp.HandlerOpts{}),
	)
}
