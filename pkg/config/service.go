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

package config

import (
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/livekit/protocol/logger"
	"github.com/livekit/protocol/utils"

	"github.com/pir2motion/pir2motion/pkg/errors"
)

const (
	DefaultPin           = "GPIO4"
	DefaultDebounce      = 50 * time.Millisecond
	DefaultCommand       = "/bin/sh"
	DefaultScript        = "motionalert.sh"
	DefaultMaxAge        = 7 * 24 * time.Hour
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
)

type ServiceConfig struct {
	NodeID string `yaml:"-"` // do not supply - will be overwritten

	Logging *logger.Config `yaml:"logging"` // logging config

	// required
	MotionDetection MotionDetectionConfig `yaml:"motion_detection"`

	// optional
	Sensor         SensorConfig    `yaml:"sensor"`          // PIR sensor pin and debounce
	Recording      RecordingConfig `yaml:"recording"`       // external recording command
	Retention      RetentionConfig `yaml:"retention"`       // cleanup of old recordings
	HealthPort     int             `yaml:"health_port"`     // health check port
	PrometheusPort int             `yaml:"prometheus_port"` // prometheus handler port
}

type MotionDetectionConfig struct {
	SaveFolder string `yaml:"save_folder" envconfig:"SAVE_FOLDER"` // (env MOTION_DETECTION_SAVE_FOLDER)
}

type SensorConfig struct {
	Pin      string        `yaml:"pin" envconfig:"PIN"`           // gpio pin name, e.g. GPIO4
	Debounce time.Duration `yaml:"debounce" envconfig:"DEBOUNCE"` // settle time before reading the level after an edge
}

type RecordingConfig struct {
	Command       string   `yaml:"command"`         // executable to launch per recording
	Args          []string `yaml:"args"`            // leading arguments, the file path and name are appended
	Dir           string   `yaml:"dir"`             // working directory of the recording process
	LogFile       string   `yaml:"log_file"`        // if set, process output is also written here, rotated
	LogMaxSize    int      `yaml:"log_max_size"`    // megabytes before rotation
	LogMaxBackups int      `yaml:"log_max_backups"` // rotated files to keep
}

type RetentionConfig struct {
	MaxAge   time.Duration `yaml:"max_age"`  // recordings older than this are deleted after each recording
	Schedule string        `yaml:"schedule"` // optional cron schedule for sweeps between recordings
}

func NewServiceConfig(confString string) (*ServiceConfig, error) {
	conf := &ServiceConfig{
		Logging: &logger.Config{
			Level: "info",
		},
		Sensor: SensorConfig{
			Pin:      DefaultPin,
			Debounce: DefaultDebounce,
		},
		Recording: RecordingConfig{
			Command:       DefaultCommand,
			Args:          []string{DefaultScript},
			LogMaxSize:    defaultLogMaxSize,
			LogMaxBackups: defaultLogMaxBackups,
		},
		Retention: RetentionConfig{
			MaxAge: DefaultMaxAge,
		},
	}
	if confString != "" {
		if err := yaml.Unmarshal([]byte(confString), conf); err != nil {
			return nil, errors.ErrCouldNotParseConfig(err)
		}
	}

	if err := envconfig.Process("MOTION_DETECTION", &conf.MotionDetection); err != nil {
		return nil, errors.ErrCouldNotParseConfig(err)
	}
	if err := envconfig.Process("SENSOR", &conf.Sensor); err != nil {
		return nil, errors.ErrCouldNotParseConfig(err)
	}

	// always create a new node ID
	conf.NodeID = utils.NewGuid("PM_")

	if err := conf.Validate(); err != nil {
		return nil, err
	}

	if err := conf.initLogger("nodeID", conf.NodeID); err != nil {
		return nil, err
	}

	return conf, nil
}

func (c *ServiceConfig) Validate() error {
	if c.MotionDetection.SaveFolder == "" {
		return errors.ErrNoSaveFolder
	}
	info, err := os.Stat(c.MotionDetection.SaveFolder)
	if err != nil {
		return errors.ErrInvalidConfig("motion_detection.save_folder", err)
	}
	if !info.IsDir() {
		return errors.ErrInvalidConfig("motion_detection.save_folder", errors.New("not a directory"))
	}

	if c.Sensor.Pin == "" {
		c.Sensor.Pin = DefaultPin
	}
	if c.Sensor.Debounce < 0 {
		c.Sensor.Debounce = 0
	}
	if c.Recording.Command == "" {
		return errors.ErrInvalidConfig("recording.command", errors.New("empty"))
	}
	if c.Recording.LogMaxSize <= 0 {
		c.Recording.LogMaxSize = defaultLogMaxSize
	}
	if c.Retention.MaxAge <= 0 {
		c.Retention.MaxAge = DefaultMaxAge
	}
	return nil
}
