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
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"
)

func isolate(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(EnvConfigPath, p)
	return p
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.General.OutputDir != "output" || cfg.General.OutputFile != "final.png" {
		t.Fatalf("unexpected general defaults: %#v", cfg.General)
	}
	if cfg.Media.ImageWidth != 1080 || cfg.Media.ImageHeight != 1920 || cfg.Media.SceneDuration != 6.0 {
		t.Fatalf("unexpected media defaults: %#v", cfg.Media)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	isolate(t)
	cfg := Defaults()
	cfg.General.OutputDir = "renders"
	cfg.Layout.Recommendations = map[string][]int{"Outro": {100, 99}}
	cfg.Server.APIToken = "never-written"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.General.OutputDir != "renders" {
		t.Fatalf("OutputDir = %q", got.General.OutputDir)
	}
	if ids := got.Layout.Recommendations["outro"]; len(ids) != 2 || ids[0] != 100 {
		t.Fatalf("recommendations not merged: %#v", got.Layout.Recommendations)
	}
	if got.Server.APIToken != "" {
		t.Fatalf("api token must not persist to disk")
	}
}

func TestLoadMalformedFileKeepsDefaults(t *testing.T) {
	p := isolate(t)
	if err := os.WriteFile(p, []byte("general: [oops"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load()
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if cfg.General.OutputDir != "output" {
		t.Fatalf("defaults lost: %#v", cfg.General)
	}
}

func TestEnvOverridesTelemetry(t *testing.T) {
	isolate(t)
	t.Setenv(EnvTelemetryOptIn, "true")
	cfg, _ := Load()
	if !cfg.General.TelemetryOptIn {
		t.Fatalf("General.TelemetryOptIn expected true from env override")
	}
	if env, ok := EnvOverrideFor("general.telemetry_opt_in"); !ok || env != EnvTelemetryOptIn {
		t.Fatalf("EnvOverrideFor = %q, %v", env, ok)
	}
	if _, ok := EnvOverrideFor("general.output_dir"); ok {
		t.Fatalf("output_dir is not overridden")
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "DEBUG"
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "/tmp/sty.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "/tmp/sty.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestEnvOverridesLoggingAndMedia(t *testing.T) {
	isolate(t)
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "/var/log/sty.log")
	t.Setenv(EnvImageWidth, "720")
	t.Setenv(EnvImageHeight, "bogus")
	t.Setenv(EnvAPIToken, "tok")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "/var/log/sty.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
	if cfg.Media.ImageWidth != 720 || cfg.Media.ImageHeight != 1920 {
		t.Fatalf("media overrides: %#v", cfg.Media)
	}
	if cfg.Server.APIToken != "tok" {
		t.Fatalf("api token from env not applied")
	}
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, ".env")
	if err := os.WriteFile(p, []byte("STY_TEST_DOTENV_A=fromfile\nSTY_TEST_DOTENV_B=fromfile\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STY_TEST_DOTENV_A", "fromenv")
	t.Cleanup(func() { _ = os.Unsetenv("STY_TEST_DOTENV_B") })
	if err := LoadDotEnv(p, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("STY_TEST_DOTENV_A"); got != "fromenv" {
		t.Fatalf("existing env overridden: %q", got)
	}
	if got := os.Getenv("STY_TEST_DOTENV_B"); got != "fromfile" {
		t.Fatalf("dotenv value not loaded: %q", got)
	}
}

func TestSecretsPreferEnvThenKeyring(t *testing.T) {
	keyring.MockInit()
	t.Setenv(KeyFal, "")
	t.Setenv(KeyElevenLabs, "")

	if v, src, err := Secret(KeyFal); err != nil || v != "" || src != SourceNone {
		t.Fatalf("empty secret: %q %q %v", v, src, err)
	}
	if err := StoreSecret(KeyFal, "kr-fal"); err != nil {
		t.Fatalf("StoreSecret: %v", err)
	}
	if v, src, _ := Secret(KeyFal); v != "kr-fal" || src != SourceKeyring {
		t.Fatalf("keyring secret: %q %q", v, src)
	}
	t.Setenv(KeyFal, "env-fal")
	if v, src, _ := Secret(KeyFal); v != "env-fal" || src != SourceEnv {
		t.Fatalf("env secret: %q %q", v, src)
	}
	all := Secrets()
	if all[KeyFal] != "env-fal" {
		t.Fatalf("Secrets() = %#v", all)
	}
	if _, ok := all[KeyElevenLabs]; ok {
		t.Fatalf("unset key should be absent")
	}
	if err := StoreSecret(KeyFal, ""); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := StoreSecret(KeyFal, ""); err != nil {
		t.Fatalf("deleting a missing key should be a no-op: %v", err)
	}
	if _, _, err := Secret("OTHER_KEY"); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
}

type failingStore struct{}

func (failingStore) Get(string, string) (string, error) { return "", errors.New("locked") }
func (failingStore) Set(string, string, string) error   { return errors.New("locked") }
func (failingStore) Delete(string, string) error        { return errors.New("locked") }

func TestSecretKeyringFailure(t *testing.T) {
	restore := SetTokenStore(failingStore{})
	defer restore()
	t.Setenv(KeyElevenLabs, "")
	if _, _, err := Secret(KeyElevenLabs); err == nil {
		t.Fatalf("expected keyring error")
	}
	if got := Secrets(); len(got) != 0 {
		t.Fatalf("failing keyring should yield no secrets: %#v", got)
	}
	if err := StoreSecret(KeyElevenLabs, "x"); err == nil {
		t.Fatalf("expected set error")
	}
}
