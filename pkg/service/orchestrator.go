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

package service

import (
	"context"
	"sync"
	"time"

	"github.com/frostbyte73/core"
	"github.com/linkdata/deadlock"
	"go.uber.org/atomic"

	"github.com/livekit/protocol/logger"

	"github.com/pir2motion/pir2motion/pkg/config"
	"github.com/pir2motion/pir2motion/pkg/errors"
	"github.com/pir2motion/pir2motion/pkg/recorder"
	"github.com/pir2motion/pir2motion/pkg/retention"
	"github.com/pir2motion/pir2motion/pkg/sensor"
	"github.com/pir2motion/pir2motion/pkg/stats"
)

// MotionSource delivers motion transitions to a single listener
type MotionSource interface {
	Subscribe(l sensor.Listener)
	Unsubscribe()
}

// Orchestrator turns motion transitions into back-to-back recordings.
//
// All recording loops run on one worker goroutine, so at most one session is
// active. MotionStarted leaves a token in a single-slot queue; tokens that
// arrive while a token is already pending are coalesced. MotionStopped only
// sets stopRequested, which the loop checks before every session: the
// recording in flight always runs to completion and is cleaned up.
type Orchestrator struct {
	source  MotionSource
	runner  recorder.Runner
	cleaner *retention.Cleaner
	monitor *stats.Monitor
	saveDir string
	maxAge  time.Duration
	now     func() time.Time

	stopRequested atomic.Bool
	pending       chan struct{}
	sweeps        chan struct{}
	selfTests     chan chan error

	startMu    sync.Mutex
	ready      atomic.Bool
	workerOnce sync.Once
	stopOnce   sync.Once
	shutdown   core.Fuse
	done       chan struct{}

	mu       deadlock.Mutex
	active   *recorder.Session
	sessions int64
}

func NewOrchestrator(
	conf *config.ServiceConfig,
	source MotionSource,
	runner recorder.Runner,
	store retention.Store,
	monitor *stats.Monitor,
) *Orchestrator {
	o := &Orchestrator{
		source:    source,
		runner:    runner,
		monitor:   monitor,
		saveDir:   conf.MotionDetection.SaveFolder,
		maxAge:    conf.Retention.MaxAge,
		now:       time.Now,
		pending:   make(chan struct{}, 1),
		sweeps:    make(chan struct{}, 1),
		selfTests: make(chan chan error, 1),
		done:      make(chan struct{}),
	}
	o.cleaner = retention.NewCleaner(store, func() time.Time { return o.now() })
	return o
}

// Start subscribes to the motion source and runs the self-test recording,
// returning once its output has been deleted. A failed self-test is returned
// and leaves the orchestrator unsubscribed.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.startMu.Lock()
	defer o.startMu.Unlock()

	if o.shutdown.IsBroken() {
		return errors.ErrShutdown
	}
	if o.ready.Load() {
		return nil
	}

	o.source.Subscribe(o)
	o.stopRequested.Store(false)

	if err := o.runSelfTest(ctx); err != nil {
		o.source.Unsubscribe()
		return err
	}

	o.ready.Store(true)
	logger.Infow("recording orchestrator ready", "saveFolder", o.saveDir)
	return nil
}

func (o *Orchestrator) runSelfTest(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res := make(chan error, 1)
	select {
	case o.selfTests <- res:
	case <-ctx.Done():
		return ctx.Err()
	case <-o.shutdown.Watch():
		return errors.ErrShutdown
	}
	o.workerOnce.Do(func() {
		go o.worker()
	})

	select {
	case err := <-res:
		if err != nil {
			return errors.ErrSelfTestFailed(err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MotionStarted schedules a recording loop without blocking
func (o *Orchestrator) MotionStarted() {
	if o.shutdown.IsBroken() {
		return
	}

	logger.Infow("motion registered")
	o.monitor.MotionEvent(sensor.Started)
	o.stopRequested.Store(false)

	select {
	case o.pending <- struct{}{}:
	default:
		logger.Debugw("recording loop already pending")
	}
}

// MotionStopped lets the current recording finish, then ends the loop
func (o *Orchestrator) MotionStopped() {
	logger.Infow("stopping motion triggered recording")
	o.monitor.MotionEvent(sensor.Stopped)
	o.stopRequested.Store(true)
}

// Sweep schedules a retention pass between recordings. Dropped if one is
// already pending.
func (o *Orchestrator) Sweep() {
	if o.shutdown.IsBroken() {
		return
	}
	select {
	case o.sweeps <- struct{}{}:
	default:
	}
}

// Stop unsubscribes and ends the worker after its current loop. A recording
// process in flight is neither killed nor waited for.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		o.source.Unsubscribe()
		o.stopRequested.Store(true)
		o.shutdown.Break()

		if s := o.Active(); s != nil {
			logger.Infow("leaving recording in flight to finish",
				"sessionID", s.ID,
				"filename", s.Filename,
			)
		}
		logger.Infow("recording orchestrator stopped")
	})
}

// Done is closed when the worker has exited after Stop. The worker is
// launched by the first Start that reaches the self-test.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

func (o *Orchestrator) Active() *recorder.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

type Status struct {
	Ready         bool              `json:"ready"`
	StopRequested bool              `json:"stop_requested"`
	Sessions      int64             `json:"sessions"`
	Recording     *recorder.Session `json:"recording,omitempty"`
}

func (o *Orchestrator) Status() *Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	return &Status{
		Ready:         o.ready.Load(),
		StopRequested: o.stopRequested.Load(),
		Sessions:      o.sessions,
		Recording:     o.active,
	}
}

func (o *Orchestrator) worker() {
	defer close(o.done)

	for {
		// a queued self-test always goes first
		select {
		case res := <-o.selfTests:
			res <- o.record(recorder.SelfTest)
			continue
		default:
		}

		select {
		case <-o.shutdown.Watch():
			return
		case res := <-o.selfTests:
			res <- o.record(recorder.SelfTest)
		case <-o.pending:
			_ = o.record(recorder.Normal)
		case <-o.sweeps:
			o.sweep()
		}
	}
}
