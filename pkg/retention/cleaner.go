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
	"time"

	"github.com/livekit/protocol/logger"
)

type Report struct {
	Listed  int
	Deleted []File
	Failed  []error
}

// Cleaner applies a policy to a store. Deletion is best effort: a file that
// cannot be removed is logged and skipped.
type Cleaner struct {
	store Store
	now   func() time.Time
}

func NewCleaner(store Store, now func() time.Time) *Cleaner {
	if now == nil {
		now = time.Now
	}
	return &Cleaner{
		store: store,
		now:   now,
	}
}

func (c *Cleaner) Run(p Policy) (*Report, error) {
	files, err := c.store.List()
	if err != nil {
		return nil, err
	}

	report := &Report{Listed: len(files)}
	for _, f := range p.Select(files, c.now()) {
		if err = c.store.Remove(f); err != nil {
			logger.Errorw("failed to delete file", err, "path", f.Path, "policy", p)
			report.Failed = append(report.Failed, err)
			continue
		}
		logger.Infow("file deleted", "path", f.Path, "created", f.Created, "policy", p)
		report.Deleted = append(report.Deleted, f)
	}
	return report, nil
}
