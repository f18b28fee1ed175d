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

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/livekit/protocol/logger"

	"github.com/pir2motion/pir2motion/pkg/config"
	"github.com/pir2motion/pir2motion/pkg/errors"
	"github.com/pir2motion/pir2motion/pkg/server"
	"github.com/pir2motion/pir2motion/version"
)

func main() {
	cmd := &cli.Command{
		Name:        "pir2motion",
		Usage:       "PIR motion triggered recorder",
		Version:     version.Version,
		Description: "records video while a PIR sensor reports motion",
		Commands: []*cli.Command{
			{
				Name:        "self-test",
				Description: "records and removes a single test file, then exits",
				Action:      runSelfTest,
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "pir2motion yaml config file",
				Sources: cli.EnvVars("PIR2MOTION_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "config-body",
				Usage:   "pir2motion yaml config body",
				Sources: cli.EnvVars("PIR2MOTION_CONFIG_BODY"),
			},
		},
		Action: runService,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func getConfig(c *cli.Command) (*config.ServiceConfig, error) {
	configFile := c.String("config")
	configBody := c.String("config-body")
	if configBody == "" {
		if configFile == "" {
			return nil, errors.ErrNoConfig
		}
		content, err := os.ReadFile(configFile)
		if err != nil {
			return nil, err
		}
		configBody = string(content)
	}

	return config.NewServiceConfig(configBody)
}

func runService(_ context.Context, c *cli.Command) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}

	svc, err := server.NewServer(conf, nil)
	if err != nil {
		return err
	}

	if conf.HealthPort != 0 {
		go func() {
			_ = http.ListenAndServe(fmt.Sprintf(":%d", conf.HealthPort), newHealthHandler(svc))
		}()
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT)

	go func() {
		sig := <-stopChan
		logger.Infow("exit requested, finishing recording then shutting down", "signal", sig)
		svc.Shutdown()
	}()

	return svc.Run()
}

func runSelfTest(_ context.Context, c *cli.Command) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}

	svc, err := server.NewServer(conf, nil)
	if err != nil {
		return err
	}

	killChan := make(chan os.Signal, 1)
	signal.Notify(killChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-killChan
		logger.Infow("exit requested, aborting self-test", "signal", sig)
		svc.Shutdown()
	}()

	if err = svc.SelfTest(); err != nil {
		return err
	}
	logger.Infow("self-test passed")
	return nil
}
