/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"storyteller/internal/layout"
)

const (
	ManifestFileName = "storyteller.json"
	BackupsDirName   = "backups"

	manifestVersion = 1
	// maxManifestBackups bounds the backups dir; older manifest backups are removed on save.
	maxManifestBackups = 20
)

// SceneState is the processing outcome recorded for a scene.
type SceneState string

const (
	ScenePending   SceneState = "pending"
	SceneCompleted SceneState = "completed"
	SceneSkipped   SceneState = "skipped"
	SceneFailed    SceneState = "failed"
)

// SceneStatus is the last recorded outcome for one scene.
type SceneStatus struct {
	Number    int        `json:"scene_number"`
	State     SceneState `json:"state"`
	Error     string     `json:"error,omitempty"`
	RunID     string     `json:"run_id,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Explainer is the manifest record for one script.
type Explainer struct {
	Name       string                 `json:"name"`
	ScriptPath string                 `json:"script_path,omitempty"`
	Title      string                 `json:"title,omitempty"`
	Scenes     []SceneStatus          `json:"scenes"`
	Sequence   []layout.SequenceEntry `json:"sequence,omitempty"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// Manifest is the canonical workspace document.
type Manifest struct {
	Version    int                   `json:"version"`
	Explainers map[string]*Explainer `json:"explainers"`
}

// Workspace keeps the manifest loaded from, and saved to, Root.
type Workspace struct {
	Root         string
	ManifestPath string

	mu       sync.Mutex
	manifest Manifest
}

// ErrUnknownExplainer is returned when an explainer has no manifest record.
var ErrUnknownExplainer = errors.New("unknown explainer")

// OpenWorkspace opens the workspace at root, creating it when absent. If the manifest
// cannot be read or parsed, the latest backup is used.
func OpenWorkspace(root string) (*Workspace, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("workspace root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, BackupsDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	w := &Workspace{
		Root:         root,
		ManifestPath: filepath.Join(root, ManifestFileName),
		manifest:     Manifest{Version: manifestVersion, Explainers: map[string]*Explainer{}},
	}
	b, err := os.ReadFile(w.ManifestPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if m, berr := openFromLatestBackup(root); berr == nil {
			w.manifest = *m
		}
		return w, nil
	case err != nil:
		m, berr := openFromLatestBackup(root)
		if berr != nil {
			return nil, fmt.Errorf("open manifest: %w; backup attempt: %v", err, berr)
		}
		w.manifest = *m
		return w, nil
	}
	m, uerr := decodeManifest(b)
	if uerr != nil {
		bm, berr := openFromLatestBackup(root)
		if berr != nil {
			return nil, fmt.Errorf("parse manifest: %w; backup attempt: %v", uerr, berr)
		}
		m = bm
	}
	w.manifest = *m
	return w, nil
}

func decodeManifest(b []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	if m.Explainers == nil {
		m.Explainers = map[string]*Explainer{}
	}
	if m.Version == 0 {
		m.Version = manifestVersion
	}
	return &m, nil
}

// Manifest returns a deep copy of the current manifest.
func (w *Workspace) Manifest() Manifest {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := Manifest{Version: w.manifest.Version, Explainers: make(map[string]*Explainer, len(w.manifest.Explainers))}
	for k, e := range w.manifest.Explainers {
		out.Explainers[k] = e.clone()
	}
	return out
}

func (e *Explainer) clone() *Explainer {
	c := *e
	c.Scenes = append([]SceneStatus(nil), e.Scenes...)
	c.Sequence = append([]layout.SequenceEntry(nil), e.Sequence...)
	return &c
}

// Explainer returns a copy of the named explainer record.
func (w *Workspace) Explainer(name string) (Explainer, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.manifest.Explainers[name]
	if !ok {
		return Explainer{}, false
	}
	return *e.clone(), true
}

// ExplainerNames returns the recorded explainer names, sorted.
func (w *Workspace) ExplainerNames() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.manifest.Explainers))
	for k := range w.manifest.Explainers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (w *Workspace) ensure(name string) *Explainer {
	e, ok := w.manifest.Explainers[name]
	if !ok {
		e = &Explainer{Name: name, Scenes: []SceneStatus{}}
		w.manifest.Explainers[name] = e
	}
	return e
}

// RegisterExplainer records the script behind an explainer and saves.
func (w *Workspace) RegisterExplainer(name, scriptPath, title string) error {
	w.mu.Lock()
	e := w.ensure(name)
	e.ScriptPath = scriptPath
	e.Title = title
	e.UpdatedAt = time.Now().UTC()
	w.mu.Unlock()
	return w.Save()
}

// SetSceneState records a scene outcome and saves.
func (w *Workspace) SetSceneState(name string, st SceneStatus) error {
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	w.mu.Lock()
	e := w.ensure(name)
	replaced := false
	for i := range e.Scenes {
		if e.Scenes[i].Number == st.Number {
			e.Scenes[i] = st
			replaced = true
			break
		}
	}
	if !replaced {
		e.Scenes = append(e.Scenes, st)
		sort.Slice(e.Scenes, func(i, j int) bool { return e.Scenes[i].Number < e.Scenes[j].Number })
	}
	e.UpdatedAt = st.UpdatedAt
	w.mu.Unlock()
	return w.Save()
}

// SetSequence stores the layout sequence chosen for an explainer and saves.
func (w *Workspace) SetSequence(name string, seq []layout.SequenceEntry) error {
	w.mu.Lock()
	e := w.ensure(name)
	e.Sequence = append([]layout.SequenceEntry(nil), seq...)
	e.UpdatedAt = time.Now().UTC()
	w.mu.Unlock()
	return w.Save()
}

// Save writes the manifest with transactional semantics and a timestamped backup of the
// previous manifest (if present).
func (w *Workspace) Save() error {
	if w == nil {
		return errors.New("nil Workspace")
	}
	if w.Root == "" || w.ManifestPath == "" {
		return errors.New("invalid Workspace: missing paths")
	}
	w.mu.Lock()
	data, err := json.MarshalIndent(w.manifest, "", "  ")
	w.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	data = append(data, '\n')

	bdir := filepath.Join(w.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	if _, statErr := os.Stat(w.ManifestPath); statErr == nil {
		stamp := time.Now().Format("20060102-150405.000000")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", ManifestFileName, stamp))
		if cerr := copyFile(w.ManifestPath, bpath); cerr != nil {
			return fmt.Errorf("backup current manifest: %w", cerr)
		}
		pruneManifestBackups(bdir, maxManifestBackups)
	}

	// write to a temp file in the same directory, then rename over the target
	temp := filepath.Join(w.Root, fmt.Sprintf(".%s.tmp-%d-%d", ManifestFileName, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp manifest: %w", werr)
	}
	if rerr := os.Rename(temp, w.ManifestPath); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace manifest: %w", rerr)
	}
	return nil
}

// writeFileSync writes data to a file and flushes it to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies src to dst, overwriting dst.
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

func manifestBackups(bdir string) ([]string, error) {
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, ManifestFileName+".") && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	// timestamp in name yields lexicographic order
	sort.Strings(out)
	return out, nil
}

func pruneManifestBackups(bdir string, keep int) {
	all, err := manifestBackups(bdir)
	if err != nil || len(all) <= keep {
		return
	}
	for _, p := range all[:len(all)-keep] {
		_ = os.Remove(p)
	}
}

// openFromLatestBackup loads the newest parseable manifest backup.
func openFromLatestBackup(root string) (*Manifest, error) {
	candidates, err := manifestBackups(filepath.Join(root, BackupsDirName))
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	if len(candidates) == 0 {
		return nil, errors.New("no backups found")
	}
	for i := len(candidates) - 1; i >= 0; i-- {
		b, err := os.ReadFile(candidates[i])
		if err != nil {
			continue
		}
		if m, err := decodeManifest(b); err == nil {
			return m, nil
		}
	}
	return nil, errors.New("no readable backups")
}
