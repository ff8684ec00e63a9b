/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic in the CLI into a logged, persisted crash report.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "storyteller/internal/log"
	"storyteller/internal/storage"
	"storyteller/internal/telemetry"
	"storyteller/internal/version"
)

// exitFn lets tests observe the exit code without terminating.
var exitFn = os.Exit

// ExitCode is the process status after a recovered panic.
const ExitCode = 2

// Recover captures a panic, logs it with its stack, writes a crash report and saves the
// workspace manifest (if ws is non-nil) before exiting with ExitCode.
//
// Usage: defer crash.Recover(ws)
func Recover(ws *storage.Workspace) {
	r := recover()
	if r == nil {
		return
	}
	handle(ws, r)
}

// RecoverFunc is Recover for a workspace opened after the defer statement runs.
//
// Usage: defer crash.RecoverFunc(func() *storage.Workspace { return ws })
func RecoverFunc(get func() *storage.Workspace) {
	r := recover()
	if r == nil {
		return
	}
	var ws *storage.Workspace
	if get != nil {
		ws = get()
	}
	handle(ws, r)
}

func handle(ws *storage.Workspace, r any) {
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, err := writeReport(ws, r, stack)
	if err != nil {
		l.Error("write crash report failed", slog.Any("err", err))
	}
	if ws != nil {
		if err := ws.Save(); err != nil {
			l.Error("workspace save after panic failed", slog.Any("err", err))
		} else {
			l.Info("workspace manifest saved", slog.String("path", ws.ManifestPath))
		}
	}
	fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath)
	fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	exitFn(ExitCode)
}

// reportDir is the workspace backups dir, or the temp dir without a workspace.
func reportDir(ws *storage.Workspace) string {
	if ws == nil || ws.Root == "" {
		return os.TempDir()
	}
	dir := filepath.Join(ws.Root, storage.BackupsDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return os.TempDir()
	}
	return dir
}

func writeReport(ws *storage.Workspace, panicVal any, stack []byte) (string, error) {
	now := time.Now()
	path := filepath.Join(reportDir(ws), fmt.Sprintf("crash-%s.log", now.Format("20060102-150405")))

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Storyteller Crash Report\n")
	fmt.Fprintf(&buf, "Timestamp: %s\n", now.Format(time.RFC3339))
	fmt.Fprintf(&buf, "Version: %s\n", version.String())
	fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if ws != nil {
		fmt.Fprintf(&buf, "Workspace: %s\n", ws.Root)
		for _, name := range ws.ExplainerNames() {
			fmt.Fprintf(&buf, "Explainer: %s\n", name)
		}
	}
	fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	fmt.Fprintf(&buf, "Stack:\n%s\n", stack)

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return path, err
	}
	telemetry.UploadCrash(buf.Bytes())
	return path, nil
}
