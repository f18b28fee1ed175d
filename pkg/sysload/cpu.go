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

package sysload

import (
	"runtime"
	"time"

	"github.com/mackerelio/go-osstat/cpu"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"

	"github.com/livekit/protocol/logger"
)

const (
	sampleInterval  = time.Second
	warningInterval = time.Minute
	highLoadIdle    = 0.1
)

// Monitor samples host cpu usage. A recording on a small board can starve
// the sensor watcher, so sustained load during a recording is logged.
type Monitor struct {
	numCPUs   float64
	recording func() bool

	idleCPUs    atomic.Float64
	lastWarning atomic.Time

	sysLoad prometheus.Gauge
	cpuLoad prometheus.Gauge
}

func NewMonitor(nodeID string, recording func() bool) *Monitor {
	labels := prometheus.Labels{"node_id": nodeID}
	return &Monitor{
		numCPUs:   float64(runtime.NumCPU()),
		recording: recording,
		sysLoad: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "pir2motion",
			Subsystem:   "node",
			Name:        "sys_load",
			ConstLabels: labels,
		}),
		cpuLoad: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "pir2motion",
			Subsystem:   "node",
			Name:        "cpu_load",
			ConstLabels: labels,
		}),
	}
}

func (m *Monitor) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.sysLoad, m.cpuLoad}
}

// Start samples until done is closed
func (m *Monitor) Start(done <-chan struct{}) {
	go m.monitorCPULoad(done)
}

// IdleCPUs returns the number of idle cpus at the last sample
func (m *Monitor) IdleCPUs() float64 {
	return m.idleCPUs.Load()
}

func (m *Monitor) monitorCPULoad(done <-chan struct{}) {
	prev, err := cpu.Get()
	if err != nil {
		logger.Warnw("cpu stats unavailable", err)
		return
	}

	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			next, err := cpu.Get()
			if err != nil {
				continue
			}
			m.update(prev, next)
			prev = next
		}
	}
}

func (m *Monitor) update(prev, next *cpu.Stats) {
	if next.Total <= prev.Total {
		return
	}

	idlePercent := float64(next.Idle-prev.Idle) / float64(next.Total-prev.Total)
	m.idleCPUs.Store(m.numCPUs * idlePercent)

	m.sysLoad.Set(100 * (1 - idlePercent))
	m.cpuLoad.Set(m.numCPUs - (m.numCPUs * idlePercent))

	if idlePercent < highLoadIdle && m.recording != nil && m.recording() {
		now := time.Now()
		if now.Sub(m.lastWarning.Load()) >= warningInterval {
			m.lastWarning.Store(now)
			logger.Infow("high cpu load while recording", "load", 100*(1-idlePercent))
		}
	}
}
