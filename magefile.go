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

//go:build mage

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/livekit/mageutil"

	"github.com/pir2motion/pir2motion/version"
)

const (
	binary  = "bin/pir2motion"
	ldflags = "-s -w"
)

func Build() error {
	fmt.Println("building pir2motion", version.Version)
	return mageutil.Run(context.Background(),
		fmt.Sprintf("go build -ldflags '%s' -o %s ./cmd/server", ldflags, binary),
	)
}

// BuildPi cross compiles for a 32-bit Raspberry Pi
func BuildPi() error {
	env := map[string]string{
		"GOOS":        "linux",
		"GOARCH":      "arm",
		"GOARM":       "6",
		"CGO_ENABLED": "0",
	}
	for k, v := range env {
		os.Setenv(k, v)
		defer os.Unsetenv(k)
	}

	fmt.Println("building pir2motion", version.Version, "for linux/armv6")
	return mageutil.Run(context.Background(),
		fmt.Sprintf("go build -ldflags '%s' -o %s-armv6 ./cmd/server", ldflags, binary),
	)
}

func Test() error {
	return mageutil.Run(context.Background(), "go test -race ./...")
}

// TestDeadlock runs the tests with the deadlock build tag
func TestDeadlock() error {
	return mageutil.Run(context.Background(), "go test -tags deadlock ./...")
}

func SelfTest(configFile string) error {
	return mageutil.Run(context.Background(),
		fmt.Sprintf("go run ./cmd/server --config %s self-test", configFile),
	)
}
