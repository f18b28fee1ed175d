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

package logging

import (
	"strings"

	"github.com/livekit/protocol/logger"
)

// ProcessLogger logs stderr of recording processes, one entry per line
type ProcessLogger struct {
	logger logger.Logger
}

func NewProcessLogger(sessionID, filename string) *ProcessLogger {
	return &ProcessLogger{
		logger: logger.GetLogger().WithValues("sessionID", sessionID, "filename", filename),
	}
}

func (l *ProcessLogger) Write(p []byte) (int, error) {
	for _, line := range strings.Split(string(p), "\n") {
		line = strings.TrimRight(line, "\r ")
		if line == "" {
			continue
		}
		if strings.Contains(strings.ToLower(line), "error") {
			l.logger.Warnw(line, nil)
		} else {
			l.logger.Debugw(line)
		}
	}
	return len(p), nil
}
