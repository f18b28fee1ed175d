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

package recorder

import (
	"bytes"
	"io"
	"os/exec"
	"slices"
	"time"

	"github.com/linkdata/deadlock"

	"github.com/livekit/protocol/logger"

	"github.com/pir2motion/pir2motion/pkg/config"
	"github.com/pir2motion/pir2motion/pkg/errors"
	"github.com/pir2motion/pir2motion/pkg/logging"
)

// Runner records a session. Run blocks until the recording process exits.
type Runner interface {
	Run(s *Session) (*Result, error)
}

type Result struct {
	PID      int
	ExitCode int
	Stdout   string
	Duration time.Duration
}

// Process describes the recording process in flight
type Process struct {
	Session *Session
	PID     int
}

// ProcessRunner launches the configured recording command once per session
// with the output file path and file name appended to its arguments. The
// process is never signaled; it is expected to exit on its own.
type ProcessRunner struct {
	command string
	args    []string
	dir     string
	output  io.WriteCloser

	mu     deadlock.Mutex
	active *Process
}

func NewProcessRunner(conf *config.RecordingConfig) *ProcessRunner {
	return &ProcessRunner{
		command: conf.Command,
		args:    slices.Clone(conf.Args),
		dir:     conf.Dir,
		output:  logging.NewOutputFile(conf.LogFile, conf.LogMaxSize, conf.LogMaxBackups),
	}
}

func (r *ProcessRunner) Run(s *Session) (*Result, error) {
	args := append(slices.Clone(r.args), s.FilePath, s.Filename)

	stdout := &bytes.Buffer{}
	cmd := exec.Command(r.command, args...)
	cmd.Dir = r.dir
	cmd.Stdout = io.MultiWriter(stdout, r.output)
	cmd.Stderr = io.MultiWriter(logging.NewProcessLogger(s.ID, s.Filename), r.output)

	logger.Infow("launching recording process",
		"sessionID", s.ID,
		"mode", s.Mode,
		"command", r.command,
		"args", args,
	)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, errors.ErrProcessFailed("start", s.Filename, err)
	}

	res := &Result{PID: cmd.Process.Pid}
	r.setActive(&Process{Session: s, PID: res.PID})
	err := cmd.Wait()
	r.setActive(nil)

	res.Duration = time.Since(start)
	res.Stdout = stdout.String()
	res.ExitCode = cmd.ProcessState.ExitCode()

	logger.Infow("recording process exited",
		"sessionID", s.ID,
		"pid", res.PID,
		"exitCode", res.ExitCode,
		"duration", res.Duration,
		"stdout", res.Stdout,
	)

	if err != nil {
		// the exit code is not a failure, only the inability to wait is
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return res, nil
		}
		return res, errors.ErrProcessFailed("wait", s.Filename, err)
	}
	return res, nil
}

// Active returns the process in flight, or nil
func (r *ProcessRunner) Active() *Process {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *ProcessRunner) Close() error {
	return r.output.Close()
}

func (r *ProcessRunner) setActive(p *Process) {
	r.mu.Lock()
	r.active = p
	r.mu.Unlock()
}
