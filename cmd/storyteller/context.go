/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"storyteller/internal/config"
	"storyteller/internal/layout"
	applog "storyteller/internal/log"
	"storyteller/internal/storage"
	"storyteller/internal/telemetry"
)

type commandContext struct {
	workspaceFlag *string

	configOnce sync.Once
	config     config.AppConfig
	configErr  error

	wsMu sync.Mutex
	ws   *storage.Workspace

	tracker *telemetry.Client
}

func newCommandContext(workspaceFlag *string) *commandContext {
	return &commandContext{workspaceFlag: workspaceFlag}
}

// ensureConfig loads .env, the config file and initializes logging and telemetry once.
func (c *commandContext) ensureConfig() (config.AppConfig, error) {
	c.configOnce.Do(func() {
		_ = config.LoadDotEnv()
		cfg, err := config.Load()
		if err != nil {
			c.configErr = err
			return
		}
		applog.Init(applog.Options{
			Level:     cfg.Logging.Level,
			Format:    cfg.Logging.Format,
			AddSource: cfg.Logging.Source,
			File:      cfg.Logging.File,
		})
		tcfg := telemetry.FromEnv()
		tcfg.OptIn = cfg.General.TelemetryOptIn
		c.tracker = telemetry.New(tcfg)
		if prev := telemetry.SetDefault(c.tracker); prev != nil {
			prev.Close()
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() config.AppConfig {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) outputRoot() string {
	if c.workspaceFlag != nil {
		if v := strings.TrimSpace(*c.workspaceFlag); v != "" {
			return v
		}
	}
	if v := strings.TrimSpace(c.configValue().General.OutputDir); v != "" {
		return v
	}
	return "output"
}

// workspace opens the workspace under the output root on first use.
func (c *commandContext) workspace() (*storage.Workspace, error) {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	if c.ws != nil {
		return c.ws, nil
	}
	ws, err := storage.OpenWorkspace(c.outputRoot())
	if err != nil {
		return nil, fmt.Errorf("open workspace: %w", err)
	}
	c.ws = ws
	return ws, nil
}

func (c *commandContext) openedWorkspace() *storage.Workspace {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	return c.ws
}

func (c *commandContext) trackerValue() telemetry.Tracker {
	if c.tracker == nil {
		return telemetry.Nop{}
	}
	return c.tracker
}

func (c *commandContext) selector(cmd *cobra.Command, seed int64) *layout.Selector {
	var src layout.Source
	if cmd.Flags().Changed("seed") {
		src = rand.New(rand.NewSource(seed))
	}
	return layout.NewSelector(src, layout.WithRecommendations(c.configValue().Layout.Recommendations))
}

func (c *commandContext) close() {
	if c.tracker != nil {
		c.tracker.Flush(context.Background())
		c.tracker.Close()
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
