/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package crash

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"storyteller/internal/storage"
)

func TestWriteReportInTempDir(t *testing.T) {
	path, err := writeReport(nil, "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	t.Cleanup(func() { _ = os.Remove(path) })
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "Storyteller Crash Report") || !strings.Contains(s, "Panic: boom") {
		t.Fatalf("unexpected report: %s", s)
	}
}

func TestWriteReportInWorkspaceBackups(t *testing.T) {
	ws, err := storage.OpenWorkspace(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.RegisterExplainer("ocean", "ocean.txt", "Ocean"); err != nil {
		t.Fatal(err)
	}
	path, err := writeReport(ws, "kaboom", []byte("stack"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(ws.Root, storage.BackupsDirName) {
		t.Fatalf("expected crash report under backups dir, got %s", path)
	}
	b, _ := os.ReadFile(path)
	if !bytes.Contains(b, []byte("Explainer: ocean")) {
		t.Fatalf("report lacks workspace context: %s", b)
	}
}

func TestRecoverWritesReportAndExits(t *testing.T) {
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	defer func() {
		_ = w.Close()
		os.Stderr = oldStderr
		_, _ = io.Copy(io.Discard, r)
	}()

	code := 0
	oldExit := exitFn
	exitFn = func(c int) { code = c }
	defer func() { exitFn = oldExit }()

	ws, err := storage.OpenWorkspace(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	func() {
		defer Recover(ws)
		panic("boom")
	}()

	if code != ExitCode {
		t.Fatalf("expected exit code %d, got %d", ExitCode, code)
	}
	if _, err := os.Stat(ws.ManifestPath); err != nil {
		t.Fatalf("manifest not saved: %v", err)
	}
	files, _ := os.ReadDir(filepath.Join(ws.Root, storage.BackupsDirName))
	found := false
	for _, f := range files {
		if strings.HasPrefix(f.Name(), "crash-") {
			found = true
		}
	}
	if !found {
		t.Fatalf("crash report not written")
	}
}

func TestRecoverWithoutPanicIsNoop(t *testing.T) {
	oldExit := exitFn
	exitFn = func(int) { t.Fatalf("exit called without panic") }
	defer func() { exitFn = oldExit }()
	func() {
		defer Recover(nil)
	}()
}

func TestRecoverFuncResolvesWorkspaceLate(t *testing.T) {
	oldStderr := os.Stderr
	_, w, _ := os.Pipe()
	os.Stderr = w
	defer func() {
		_ = w.Close()
		os.Stderr = oldStderr
	}()

	code := 0
	oldExit := exitFn
	exitFn = func(c int) { code = c }
	defer func() { exitFn = oldExit }()

	var ws *storage.Workspace
	dir := t.TempDir()
	func() {
		defer RecoverFunc(func() *storage.Workspace { return ws })
		var err error
		ws, err = storage.OpenWorkspace(dir)
		if err != nil {
			t.Fatal(err)
		}
		panic("late")
	}()
	if code != ExitCode {
		t.Fatalf("expected exit code %d, got %d", ExitCode, code)
	}
	if _, err := os.Stat(ws.ManifestPath); err != nil {
		t.Fatalf("manifest not saved: %v", err)
	}
}
