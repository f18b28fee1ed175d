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
	"time"

	"github.com/samber/lo"

	"github.com/pir2motion/pir2motion/pkg/recorder"
)

// Policy picks the files to delete after a recording
type Policy interface {
	Select(files []File, now time.Time) []File
	String() string
}

// MaxAge selects files created strictly before now-Age
type MaxAge struct {
	Age time.Duration
}

func (p MaxAge) Select(files []File, now time.Time) []File {
	cutoff := now.Add(-p.Age)
	return lo.Filter(files, func(f File, _ int) bool {
		return f.Created.Before(cutoff)
	})
}

func (p MaxAge) String() string {
	return fmt.Sprintf("older than %s", p.Age)
}

// ExactName selects the single file with the given name
type ExactName struct {
	Name string
}

func (p ExactName) Select(files []File, _ time.Time) []File {
	return lo.Filter(files, func(f File, _ int) bool {
		return f.Name == p.Name
	})
}

func (p ExactName) String() string {
	return "named " + p.Name
}

// PolicyFor returns the cleanup policy for a finished session. Self-test
// sessions remove their own output, normal sessions apply the age limit.
func PolicyFor(s *recorder.Session, maxAge time.Duration) Policy {
	if s.Mode == recorder.SelfTest {
		return ExactName{Name: s.Filename}
	}
	return MaxAge{Age: maxAge}
}
