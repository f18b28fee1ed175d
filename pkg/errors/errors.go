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

package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNoConfig            = errors.New("missing config")
	ErrNoSaveFolder        = errors.New("missing motion_detection.save_folder")
	ErrHardwareUnavailable = errors.New("sensor hardware unavailable")
	ErrRecordingProcess    = errors.New("recording process failed")
	ErrCleanup             = errors.New("cleanup failed")
	ErrSelfTest            = errors.New("self-test failed")
	ErrNotStarted          = errors.New("not started")
	ErrShutdown            = errors.New("shutting down")
	ErrProfileNotFound     = errors.New("profile not found")
)

func New(err string) error {
	return errors.New(err)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func ErrCouldNotParseConfig(err error) error {
	return fmt.Errorf("could not parse config: %v", err)
}

func ErrInvalidConfig(field string, err error) error {
	return fmt.Errorf("invalid config field %s: %v", field, err)
}

func ErrPinUnavailable(pin string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: pin %s not found", ErrHardwareUnavailable, pin)
	}
	return fmt.Errorf("%w: pin %s: %v", ErrHardwareUnavailable, pin, err)
}

func ErrProcessFailed(stage, filename string, err error) error {
	return fmt.Errorf("%w: %s %s: %v", ErrRecordingProcess, stage, filename, err)
}

func ErrDeleteFailed(path string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrCleanup, path, err)
}

func ErrListFailed(dir string, err error) error {
	return fmt.Errorf("could not list %s: %w", dir, err)
}

func ErrSelfTestFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrSelfTest, err)
}
