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
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pir2motion/pir2motion/pkg/recorder"
	"github.com/pir2motion/pir2motion/pkg/sensor"
)

// Monitor counts motion events, recordings and cleanup results
type Monitor struct {
	nodeID string

	motionEvents      *prometheus.CounterVec
	recordings        *prometheus.CounterVec
	recordingFailures *prometheus.CounterVec
	recordingDuration *prometheus.HistogramVec
	filesDeleted      prometheus.Counter
	cleanupFailures   prometheus.Counter
	recording         prometheus.Gauge
}

func NewMonitor(nodeID string) *Monitor {
	m := &Monitor{nodeID: nodeID}
	m.initPrometheus()
	return m
}

func (m *Monitor) MotionEvent(t sensor.EventType) {
	m.motionEvents.WithLabelValues(t.String()).Inc()
}

func (m *Monitor) RecordingStarted(mode recorder.Mode) {
	m.recordings.WithLabelValues(mode.String()).Inc()
	m.recording.Set(1)
}

func (m *Monitor) RecordingEnded(mode recorder.Mode, d time.Duration) {
	m.recordingDuration.WithLabelValues(mode.String()).Observe(d.Seconds())
	m.recording.Set(0)
}

func (m *Monitor) RecordingFailed(mode recorder.Mode) {
	m.recordingFailures.WithLabelValues(mode.String()).Inc()
	m.recording.Set(0)
}

func (m *Monitor) FilesDeleted(n int) {
	m.filesDeleted.Add(float64(n))
}

func (m *Monitor) CleanupFailed(n int) {
	m.cleanupFailures.Add(float64(n))
}
