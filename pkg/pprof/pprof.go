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

package pprof

import (
	"bytes"
	"context"
	"runtime/pprof"
	"time"

	"github.com/pir2motion/pir2motion/pkg/errors"
)

const (
	cpuProfileName = "cpu"
	defaultTimeout = 30 * time.Second
)

// GetProfileData collects a named runtime profile. The cpu profile samples
// for timeout, or defaultTimeout when zero.
func GetProfileData(ctx context.Context, profileName string, timeout time.Duration, debug int) ([]byte, error) {
	switch profileName {
	case cpuProfileName:
		return getCPUProfileData(ctx, timeout)
	default:
		return getGenericProfileData(profileName, debug)
	}
}

func getCPUProfileData(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	buf := &bytes.Buffer{}
	if err := pprof.StartCPUProfile(buf); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		// results are discarded
		go pprof.StopCPUProfile()
		return nil, context.Canceled
	case <-time.After(timeout):
	}

	pprof.StopCPUProfile()
	return buf.Bytes(), nil
}

func getGenericProfileData(profileName string, debug int) ([]byte, error) {
	pp := pprof.Lookup(profileName)
	if pp == nil {
		return nil, errors.ErrProfileNotFound
	}

	buf := &bytes.Buffer{}
	if err := pp.WriteTo(buf, debug); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
