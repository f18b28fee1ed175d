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
	"github.com/livekit/protocol/logger"

	"github.com/pir2motion/pir2motion/pkg/recorder"
	"github.com/pir2motion/pir2motion/pkg/retention"
)

// record runs sessions back to back until stop is requested. A self-test runs
// exactly one session whatever the flag says, and returns its error; in normal
// mode an error ends the loop until the next motion.
func (o *Orchestrator) record(mode recorder.Mode) error {
	for mode == recorder.SelfTest || !o.stopRequested.Load() {
		s := recorder.NewSession(mode, o.saveDir, o.now())
		if err := o.recordSession(s); err != nil {
			logger.Errorw("error in motion recording loop", err,
				"sessionID", s.ID,
				"mode", mode,
				"filename", s.Filename,
			)
			return err
		}
		if mode == recorder.SelfTest {
			return nil
		}
	}
	return nil
}

func (o *Orchestrator) recordSession(s *recorder.Session) error {
	o.setActive(s)
	defer o.setActive(nil)

	o.monitor.RecordingStarted(s.Mode)
	res, err := o.runner.Run(s)
	if err != nil {
		o.monitor.RecordingFailed(s.Mode)
		return err
	}
	o.monitor.RecordingEnded(s.Mode, res.Duration)

	report, err := o.cleaner.Run(retention.PolicyFor(s, o.maxAge))
	if err != nil {
		return err
	}
	o.monitor.FilesDeleted(len(report.Deleted))
	o.monitor.CleanupFailed(len(report.Failed))

	if s.Mode == recorder.SelfTest {
		if len(report.Failed) > 0 {
			return report.Failed[0]
		}
		if len(report.Deleted) == 0 {
			logger.Warnw("self-test recording produced no file", nil, "filename", s.Filename)
		}
	}
	return nil
}

func (o *Orchestrator) sweep() {
	report, err := o.cleaner.Run(retention.MaxAge{Age: o.maxAge})
	if err != nil {
		logger.Errorw("retention sweep failed", err, "saveFolder", o.saveDir)
		return
	}
	o.monitor.FilesDeleted(len(report.Deleted))
	o.monitor.CleanupFailed(len(report.Failed))
	logger.Debugw("retention sweep done", "listed", report.Listed, "deleted", len(report.Deleted))
}

func (o *Orchestrator) setActive(s *recorder.Session) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.active = s
	if s != nil {
		o.sessions++
	}
}
