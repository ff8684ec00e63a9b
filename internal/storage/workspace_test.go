/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"storyteller/internal/layout"
)

func TestOpenWorkspaceCreatesAndPersists(t *testing.T) {
	root := filepath.Join(t.TempDir(), "output")
	ws, err := OpenWorkspace(root)
	if err != nil {
		t.Fatalf("OpenWorkspace: %v", err)
	}
	if st, err := os.Stat(filepath.Join(root, BackupsDirName)); err != nil || !st.IsDir() {
		t.Fatalf("backups dir missing: %v", err)
	}
	if err := ws.RegisterExplainer("intro", "/scripts/intro.txt", "Intro"); err != nil {
		t.Fatalf("RegisterExplainer: %v", err)
	}
	if err := ws.SetSceneState("intro", SceneStatus{Number: 2, State: SceneFailed, Error: "boom"}); err != nil {
		t.Fatalf("SetSceneState: %v", err)
	}
	if err := ws.SetSceneState("intro", SceneStatus{Number: 0, State: SceneCompleted}); err != nil {
		t.Fatalf("SetSceneState: %v", err)
	}
	if err := ws.SetSceneState("intro", SceneStatus{Number: 2, State: SceneCompleted}); err != nil {
		t.Fatalf("SetSceneState: %v", err)
	}
	seq := []layout.SequenceEntry{{SceneNumber: 0, PatternID: 46, Name: "Circular Orbit (Clockwise)", Category: layout.CategoryCircular, Weight: layout.WeightMedium}}
	if err := ws.SetSequence("intro", seq); err != nil {
		t.Fatalf("SetSequence: %v", err)
	}

	again, err := OpenWorkspace(root)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	e, ok := again.Explainer("intro")
	if !ok {
		t.Fatalf("explainer not persisted")
	}
	if e.ScriptPath != "/scripts/intro.txt" || e.Title != "Intro" {
		t.Fatalf("unexpected explainer: %+v", e)
	}
	if len(e.Scenes) != 2 || e.Scenes[0].Number != 0 || e.Scenes[1].State != SceneCompleted || e.Scenes[1].Error != "" {
		t.Fatalf("unexpected scenes: %+v", e.Scenes)
	}
	if len(e.Sequence) != 1 || e.Sequence[0].PatternID != 46 {
		t.Fatalf("sequence not persisted: %+v", e.Sequence)
	}
	if names := again.ExplainerNames(); len(names) != 1 || names[0] != "intro" {
		t.Fatalf("names: %v", names)
	}
}

func TestOpenWorkspaceFallsBackToBackup(t *testing.T) {
	root := t.TempDir()
	ws, err := OpenWorkspace(root)
	if err != nil {
		t.Fatalf("OpenWorkspace: %v", err)
	}
	if err := ws.RegisterExplainer("a", "a.txt", "A"); err != nil {
		t.Fatal(err)
	}
	// second save backs up the first manifest
	if err := ws.RegisterExplainer("b", "b.txt", "B"); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ws.ManifestPath, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	again, err := OpenWorkspace(root)
	if err != nil {
		t.Fatalf("reopen with corrupt manifest: %v", err)
	}
	if _, ok := again.Explainer("a"); !ok {
		t.Fatalf("backup content not restored")
	}
}

func TestOpenWorkspaceCorruptWithoutBackup(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ManifestFileName), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenWorkspace(root); err == nil || !strings.Contains(err.Error(), "parse manifest") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestManifestBackupsPruned(t *testing.T) {
	root := t.TempDir()
	ws, err := OpenWorkspace(root)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < maxManifestBackups+5; i++ {
		if err := ws.SetSceneState("x", SceneStatus{Number: i, State: SceneCompleted}); err != nil {
			t.Fatal(err)
		}
	}
	baks, err := manifestBackups(filepath.Join(root, BackupsDirName))
	if err != nil {
		t.Fatal(err)
	}
	if len(baks) > maxManifestBackups {
		t.Fatalf("expected at most %d backups, got %d", maxManifestBackups, len(baks))
	}
}

func TestManifestCopyIsDetached(t *testing.T) {
	ws, err := OpenWorkspace(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.SetSceneState("x", SceneStatus{Number: 1, State: SceneCompleted}); err != nil {
		t.Fatal(err)
	}
	m := ws.Manifest()
	m.Explainers["x"].Scenes[0].State = SceneFailed
	if e, _ := ws.Explainer("x"); e.Scenes[0].State != SceneCompleted {
		t.Fatalf("manifest copy aliased internal state")
	}
}
