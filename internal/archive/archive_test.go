/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package archive

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, p, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestPackAndRestore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "tides", "scene_01", "prompts.txt"), "moon")
	writeFile(t, filepath.Join(root, "tides", "scene_02", "final.png"), "png")
	writeFile(t, filepath.Join(root, "tides", ".lock"), "")

	dest := DefaultPath(root, "tides", time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	if !strings.HasSuffix(dest, filepath.Join(DirName, "tides-20250301-100000.zip")) {
		t.Fatalf("unexpected default path %s", dest)
	}
	n, err := Pack(root, "tides", dest, ".lock")
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 files, got %d", n)
	}
	r, err := zip.OpenReader(dest)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	names := map[string]bool{}
	for _, f := range r.File {
		names[f.Name] = true
	}
	_ = r.Close()
	for _, want := range []string{"tides/scene_01/prompts.txt", "tides/scene_02/final.png", ManifestName} {
		if !names[want] {
			t.Fatalf("zip lacks %s: %v", want, names)
		}
	}
	if names["tides/.lock"] {
		t.Fatalf("skipped file was archived")
	}

	other := t.TempDir()
	writeFile(t, filepath.Join(other, "tides", "scene_01", "prompts.txt"), "keep")
	restored, err := Restore(other, dest)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored != 1 {
		t.Fatalf("expected 1 restored file, got %d", restored)
	}
	b, _ := os.ReadFile(filepath.Join(other, "tides", "scene_01", "prompts.txt"))
	if string(b) != "keep" {
		t.Fatalf("existing file overwritten: %q", b)
	}
	if _, err := os.Stat(filepath.Join(other, "tides", "scene_02", "final.png")); err != nil {
		t.Fatalf("final.png not restored: %v", err)
	}
}

func TestPackMissingExplainer(t *testing.T) {
	if _, err := Pack(t.TempDir(), "nope", filepath.Join(t.TempDir(), "x.zip")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRestoreRejectsEscapingEntries(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "evil.zip")
	f, err := os.Create(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, _ := zw.Create("../outside.txt")
	_, _ = w.Write([]byte("x"))
	_ = zw.Close()
	_ = f.Close()

	_, err = Restore(t.TempDir(), zipPath)
	if !errors.Is(err, ErrUnsafePath) {
		t.Fatalf("expected ErrUnsafePath, got %v", err)
	}
}
