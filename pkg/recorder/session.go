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
	"path/filepath"
	"time"

	"github.com/livekit/protocol/utils"
)

const (
	FileExtension  = ".mkv"
	filenameLayout = "v20060102T150405"
)

type Mode int

const (
	Normal Mode = iota
	SelfTest
)

func (m Mode) String() string {
	switch m {
	case Normal:
		return "normal"
	case SelfTest:
		return "self-test"
	default:
		return "unknown"
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Session is a single recording attempt, one output file
type Session struct {
	ID        string    `json:"id"`
	Mode      Mode      `json:"mode"`
	Filename  string    `json:"filename"`
	FilePath  string    `json:"file_path"`
	StartedAt time.Time `json:"started_at"`
}

func NewSession(mode Mode, saveDir string, now time.Time) *Session {
	filename := Filename(now)
	return &Session{
		ID:        utils.NewGuid("RS_"),
		Mode:      mode,
		Filename:  filename,
		FilePath:  filepath.Join(saveDir, filename),
		StartedAt: now,
	}
}

// Filename returns the recording file name for a start time, e.g. v20240101T000000.mkv
func Filename(t time.Time) string {
	return t.Format(filenameLayout) + FileExtension
}
