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

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"github.com/frostbyte73/core"

	"github.com/livekit/protocol/logger"

	"github.com/pir2motion/pir2motion/pkg/config"
	"github.com/pir2motion/pir2motion/pkg/recorder"
	"github.com/pir2motion/pir2motion/pkg/retention"
	"github.com/pir2motion/pir2motion/pkg/sensor"
	"github.com/pir2motion/pir2motion/pkg/service"
	"github.com/pir2motion/pir2motion/pkg/stats"
	"github.com/pir2motion/pir2motion/pkg/sysload"
	"github.com/pir2motion/pir2motion/version"
)

type Server struct {
	conf *config.ServiceConfig

	sensor       *sensor.PIR
	runner       *recorder.ProcessRunner
	orchestrator *service.Orchestrator
	scheduler    *retention.Scheduler
	monitor      *stats.Monitor
	load         *sysload.Monitor
	promServer   *http.Server

	ctx      context.Context
	cancel   context.CancelFunc
	shutdown core.Fuse
}

// NewServer wires the sensor to the recording orchestrator. A nil opener uses
// the host's gpio registry.
func NewServer(conf *config.ServiceConfig, opener sensor.PinOpener) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		conf:    conf,
		sensor:  sensor.NewPIR(conf.Sensor.Pin, conf.Sensor.Debounce, opener),
		runner:  recorder.NewProcessRunner(&conf.Recording),
		monitor: stats.NewMonitor(conf.NodeID),
		ctx:     ctx,
		cancel:  cancel,
	}

	s.orchestrator = service.NewOrchestrator(
		conf,
		s.sensor,
		s.runner,
		retention.NewLocalStore(conf.MotionDetection.SaveFolder),
		s.monitor,
	)

	scheduler, err := retention.NewScheduler(conf.Retention.Schedule, s.orchestrator.Sweep)
	if err != nil {
		cancel()
		return nil, err
	}
	s.scheduler = scheduler
	s.load = sysload.NewMonitor(conf.NodeID, func() bool {
		return s.orchestrator.Active() != nil
	})

	if conf.PrometheusPort > 0 {
		if err = s.monitor.Register(s.load.Collectors()...); err != nil {
			cancel()
			return nil, err
		}
		s.promServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", conf.PrometheusPort),
			Handler: stats.PromHandler(),
		}

		promListener, err := net.Listen("tcp", s.promServer.Addr)
		if err != nil {
			cancel()
			return nil, err
		}
		go func() {
			_ = s.promServer.Serve(promListener)
		}()
	}

	return s, nil
}

// Run claims the sensor, runs the self-test and blocks until Shutdown
func (s *Server) Run() error {
	logger.Debugw("starting service", "version", version.Version)

	if err := s.sensor.Start(); err != nil {
		s.Shutdown()
		return err
	}
	if err := s.orchestrator.Start(s.ctx); err != nil {
		s.Shutdown()
		return err
	}
	s.scheduler.Start()
	s.load.Start(s.shutdown.Watch())

	logger.Infow("service ready")
	<-s.shutdown.Watch()
	logger.Infow("service stopped")
	return nil
}

// SelfTest runs the startup recording check without claiming the sensor
func (s *Server) SelfTest() error {
	defer s.Shutdown()
	return s.orchestrator.Start(s.ctx)
}

func (s *Server) Status() ([]byte, error) {
	status := map[string]interface{}{
		"Version":      version.Version,
		"NodeID":       s.conf.NodeID,
		"Motion":       s.sensor.Level().String(),
		"Orchestrator": s.orchestrator.Status(),
		"IdleCPUs":     s.load.IdleCPUs(),
	}
	if p := s.runner.Active(); p != nil {
		status["PID"] = p.PID
	}
	if next := s.scheduler.NextRun(); next != nil {
		status["NextSweep"] = next
	}
	return json.Marshal(status)
}

func (s *Server) IsShutdown() bool {
	return s.shutdown.IsBroken()
}

// Shutdown releases the sensor and stops recording after the current file.
// The recording process in flight is left to exit on its own.
func (s *Server) Shutdown() {
	s.shutdown.Once(func() {
		s.scheduler.Stop()
		s.orchestrator.Stop()
		s.sensor.Stop()
		s.cancel()

		if s.promServer != nil {
			_ = s.promServer.Close()
		}
		if err := s.runner.Close(); err != nil {
			logger.Warnw("failed to close recording log", err)
		}
	})
}
