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

package retention

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/livekit/protocol/logger"
)

// Scheduler triggers retention sweeps between recordings on a cron schedule.
// An empty schedule disables it.
type Scheduler struct {
	schedule string
	cron     *cron.Cron

	mu      sync.Mutex
	running bool
}

func NewScheduler(schedule string, sweep func()) (*Scheduler, error) {
	s := &Scheduler{
		schedule: schedule,
		cron:     cron.New(),
	}
	if schedule == "" {
		return s, nil
	}

	if _, err := s.cron.AddFunc(schedule, sweep); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" || s.running {
		return
	}
	s.cron.Start()
	s.running = true
	logger.Infow("retention scheduler started", "schedule", s.schedule)
}

// Stop waits for a running sweep trigger to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	logger.Debugw("retention scheduler stopped")
}

func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
