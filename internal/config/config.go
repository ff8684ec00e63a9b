/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are read-only overrides at runtime. Provider API keys never live
// in this struct; they come from the environment or the OS keychain.
//
// config_version: bump when the structure changes in a backward-incompatible way.
type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Logging       LoggingConfig `yaml:"logging"`
	Media         MediaConfig   `yaml:"media"`
	Layout        LayoutConfig  `yaml:"layout"`
	Server        ServerConfig  `yaml:"server"`
}

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	OutputDir      string `yaml:"output_dir"`
	OutputFile     string `yaml:"output_file"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// MediaConfig describes the 9:16 render target handed to scene processors.
type MediaConfig struct {
	ImageWidth    int     `yaml:"image_width"`
	ImageHeight   int     `yaml:"image_height"`
	SceneDuration float64 `yaml:"scene_duration"`
}

// LayoutConfig extends or replaces scene type recommendations by label.
type LayoutConfig struct {
	Recommendations map[string][]int `yaml:"recommendations,omitempty"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	DatabaseURL string `yaml:"database_url"`
	// APIToken is env-only.
	APIToken string `yaml:"-"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false, OutputDir: "output", OutputFile: "final.png"},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
		Media:         MediaConfig{ImageWidth: 1080, ImageHeight: 1920, SceneDuration: 6.0},
		Server:        ServerConfig{Addr: ":8080"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath     = "STY_CONFIG"
	EnvTelemetryOptIn = "STY_TELEMETRY_OPT_IN"
	EnvOutputDir      = "STY_OUTPUT_DIR"
	EnvOutputFile     = "STY_OUTPUT_FILE"
	EnvImageWidth     = "STY_IMAGE_WIDTH"
	EnvImageHeight    = "STY_IMAGE_HEIGHT"
	EnvServerAddr     = "STY_SERVER_ADDR"
	EnvDatabaseURL    = "STY_DATABASE_URL"
	EnvAPIToken       = "STY_API_TOKEN"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "STY_LOG_LEVEL"
	EnvLogFormat = "STY_LOG_FORMAT"
	EnvLogSource = "STY_LOG_SOURCE"
	EnvLogFile   = "STY_LOG_FILE"
)

// Provider API keys. The env var name doubles as the keychain entry name.
const (
	KeyFal        = "FAL_API_KEY"
	KeyElevenLabs = "ELEVENLABS_API_KEY"
)

// ProviderKeys lists the keys Secrets resolves.
var ProviderKeys = []string{KeyFal, KeyElevenLabs}

// ErrUnknownKey is returned for key names outside ProviderKeys.
var ErrUnknownKey = errors.New("unknown provider key")

// ConfigPath returns the per-user config file path, or $STY_CONFIG when set.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "Storyteller")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "Storyteller")
	default: // linux and others
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "storyteller")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "storyteller")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env") without
// overriding variables already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("load dotenv: %w", err)
	}
	return nil
}

// Load reads the user config file (if present), applies defaults, and merges environment
// overrides. A malformed file is reported but defaults plus env still apply.
func Load() (AppConfig, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}
	var parseErr error
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		} else {
			parseErr = fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, parseErr
}

// Save writes the user config YAML.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	if s := strings.TrimSpace(src.General.OutputDir); s != "" {
		dst.General.OutputDir = s
	}
	if s := strings.TrimSpace(src.General.OutputFile); s != "" {
		dst.General.OutputFile = s
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
	// media
	if src.Media.ImageWidth > 0 {
		dst.Media.ImageWidth = src.Media.ImageWidth
	}
	if src.Media.ImageHeight > 0 {
		dst.Media.ImageHeight = src.Media.ImageHeight
	}
	if src.Media.SceneDuration > 0 {
		dst.Media.SceneDuration = src.Media.SceneDuration
	}
	if len(src.Layout.Recommendations) > 0 {
		dst.Layout.Recommendations = make(map[string][]int, len(src.Layout.Recommendations))
		for k, v := range src.Layout.Recommendations {
			dst.Layout.Recommendations[strings.ToLower(strings.TrimSpace(k))] = append([]int(nil), v...)
		}
	}
	if s := strings.TrimSpace(src.Server.Addr); s != "" {
		dst.Server.Addr = s
	}
	if s := strings.TrimSpace(src.Server.DatabaseURL); s != "" {
		dst.Server.DatabaseURL = s
	}
}

func envBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvOutputDir)); v != "" {
		cfg.General.OutputDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvOutputFile)); v != "" {
		cfg.General.OutputFile = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvImageWidth)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Media.ImageWidth = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvImageHeight)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Media.ImageHeight = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvServerAddr)); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDatabaseURL)); v != "" {
		cfg.Server.DatabaseURL = v
	}
	cfg.Server.APIToken = strings.TrimSpace(os.Getenv(EnvAPIToken))
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var overrideKeys = map[string]string{
	"general.telemetry_opt_in": EnvTelemetryOptIn,
	"general.output_dir":       EnvOutputDir,
	"general.output_file":      EnvOutputFile,
	"media.image_width":        EnvImageWidth,
	"media.image_height":       EnvImageHeight,
	"server.addr":              EnvServerAddr,
	"server.database_url":      EnvDatabaseURL,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := overrideKeys[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}
