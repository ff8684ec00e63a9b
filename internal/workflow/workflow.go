/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package workflow drives a user-supplied processor over the scenes of a script, skipping
// scenes whose output exists and recording every outcome.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/oklog/ulid/v2"

	applog "storyteller/internal/log"
	"storyteller/internal/script"
	"storyteller/internal/storage"
	"storyteller/internal/telemetry"
)

const (
	DefaultOutputRoot = "output"
	DefaultOutputFile = "final.png"
	LockFileName      = ".storyteller.lock"
)

// ErrLocked is returned when another run holds the explainer's lock.
var ErrLocked = errors.New("explainer is being processed by another run")

// Processor handles one scene, writing its results into outDir.
type Processor func(ctx context.Context, scene script.Scene, outDir string) error

// Recorder persists run progress. *storage.Workspace implements it.
type Recorder interface {
	RegisterExplainer(name, scriptPath, title string) error
	SetSceneState(name string, st storage.SceneStatus) error
	RecordRun(ctx context.Context, r storage.RunRecord) error
}

// Indexer is optionally implemented by a Recorder to index the script before a run.
type Indexer interface {
	IndexScript(ctx context.Context, explainer, text string) error
}

// Options configures Run. The zero value of Overwrite skips scenes whose output exists.
type Options struct {
	ScriptPath string
	// Scenes limits processing to these scene numbers; empty means all.
	Scenes          []int
	Overwrite       bool
	OutputRoot      string
	OutputFile      string
	ContinueOnError bool
	// Confirm is asked after a failure when ContinueOnError is set; false stops the run.
	// A nil Confirm always continues.
	Confirm  func(scene script.Scene, err error) bool
	Recorder Recorder
	Tracker  telemetry.Tracker
	// Progress, when set, is called after each scene.
	Progress func(ev ProgressEvent)
}

// ProgressEvent describes the outcome of one scene.
type ProgressEvent struct {
	Index int // 1-based position in the selection
	Total int
	Scene script.Scene
	State storage.SceneState
	Err   error
}

// Stats summarises a run.
type Stats struct {
	RunID     string        `json:"run_id"`
	Explainer string        `json:"explainer"`
	Title     string        `json:"title"`
	Total     int           `json:"total"`
	Completed int           `json:"completed"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Stopped   bool          `json:"stopped"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Status maps the stats onto a run status.
func (s Stats) Status(cancelled bool) string {
	switch {
	case cancelled:
		return storage.RunCancelled
	case s.Failed > 0:
		return storage.RunFailed
	default:
		return storage.RunSucceeded
	}
}

// ExplainerName is the script file name without its extension.
func ExplainerName(scriptPath string) string {
	base := filepath.Base(scriptPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SceneDir returns <root>/<explainer>/scene_NN.
func SceneDir(root, explainer string, n int) string {
	return filepath.Join(root, explainer, fmt.Sprintf("scene_%02d", n))
}

// OutputExists reports whether the scene's output file is present.
func OutputExists(dir, file string) bool {
	st, err := os.Stat(filepath.Join(dir, file))
	return err == nil && !st.IsDir()
}

// FilterScenes keeps scenes whose number is in numbers; empty numbers keeps all.
func FilterScenes(scenes []script.Scene, numbers []int) []script.Scene {
	if len(numbers) == 0 {
		return scenes
	}
	want := make(map[int]bool, len(numbers))
	for _, n := range numbers {
		want[n] = true
	}
	out := make([]script.Scene, 0, len(numbers))
	for _, s := range scenes {
		if want[s.Number] {
			out = append(out, s)
		}
	}
	return out
}

var (
	entropyMu sync.Mutex
	entropy   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// NewRunID returns a ULID; ids sort by creation time.
func NewRunID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Run processes the selected scenes of the script at opts.ScriptPath.
// A processor failure is counted, not returned; the returned error covers a missing
// script, a held lock, recorder failures and cancellation.
func Run(ctx context.Context, opts Options, process Processor) (Stats, error) {
	if process == nil {
		return Stats{}, errors.New("workflow: nil processor")
	}
	if opts.OutputRoot == "" {
		opts.OutputRoot = DefaultOutputRoot
	}
	if opts.OutputFile == "" {
		opts.OutputFile = DefaultOutputFile
	}
	if opts.Tracker == nil {
		opts.Tracker = telemetry.Nop{}
	}

	text, err := script.ReadText(opts.ScriptPath)
	if err != nil {
		return Stats{}, err
	}
	doc := script.Parse(text)
	explainer := ExplainerName(opts.ScriptPath)
	stats := Stats{Explainer: explainer, Title: doc.Title}

	scenes := FilterScenes(doc.Scenes, opts.Scenes)
	l := applog.WithOperation(applog.WithComponent("workflow"), "run").With(slog.String("script", opts.ScriptPath))
	if len(scenes) == 0 {
		l.InfoContext(ctx, "no scenes to process", slog.Int("parsed", len(doc.Scenes)))
		return stats, nil
	}

	explainerDir := filepath.Join(opts.OutputRoot, explainer)
	if err := os.MkdirAll(explainerDir, 0o755); err != nil {
		return stats, fmt.Errorf("create output dir: %w", err)
	}
	lock := flock.New(filepath.Join(explainerDir, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return stats, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return stats, fmt.Errorf("%w: %s", ErrLocked, explainer)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			l.Warn("release lock failed", slog.Any("err", err))
		}
	}()

	stats.RunID = NewRunID()
	stats.Total = len(scenes)
	ctx = applog.ContextWithRun(ctx, stats.RunID, explainer)
	started := time.Now()
	l.InfoContext(ctx, "run started",
		slog.String("title", doc.Title),
		slog.Float64("total_duration", doc.TotalDuration),
		slog.Int("scenes", len(doc.Scenes)),
		slog.Int("selected", len(scenes)))

	if rec := opts.Recorder; rec != nil {
		if err := rec.RegisterExplainer(explainer, opts.ScriptPath, doc.Title); err != nil {
			return stats, fmt.Errorf("record explainer: %w", err)
		}
		if ix, ok := rec.(Indexer); ok {
			if err := ix.IndexScript(ctx, explainer, text); err != nil {
				l.WarnContext(ctx, "index script failed", slog.Any("err", err))
			}
		}
	}

	cancelled := false
	for i, sc := range scenes {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		state, perr := processScene(ctx, opts, process, explainer, sc)
		switch state {
		case storage.SceneSkipped:
			stats.Skipped++
		case storage.SceneCompleted:
			stats.Completed++
		case storage.SceneFailed:
			stats.Failed++
		}
		sl := l.With(slog.Int("scene", sc.Number), slog.String("state", string(state)))
		if perr != nil {
			sl.ErrorContext(ctx, "scene failed", slog.Any("err", perr))
		} else {
			sl.InfoContext(ctx, "scene done")
		}
		if opts.Recorder != nil {
			st := storage.SceneStatus{Number: sc.Number, State: state, RunID: stats.RunID}
			if perr != nil {
				st.Error = perr.Error()
			}
			if err := opts.Recorder.SetSceneState(explainer, st); err != nil {
				return stats, fmt.Errorf("record scene %d: %w", sc.Number, err)
			}
		}
		if opts.Progress != nil {
			opts.Progress(ProgressEvent{Index: i + 1, Total: len(scenes), Scene: sc, State: state, Err: perr})
		}
		if perr != nil && !shouldContinue(opts, sc, perr) {
			stats.Stopped = i < len(scenes)-1
			break
		}
	}
	stats.Elapsed = time.Since(started)

	if opts.Recorder != nil {
		rec := storage.RunRecord{
			ID:         stats.RunID,
			Explainer:  explainer,
			ScriptPath: opts.ScriptPath,
			StartedAt:  started,
			FinishedAt: started.Add(stats.Elapsed),
			Total:      stats.Total,
			Completed:  stats.Completed,
			Skipped:    stats.Skipped,
			Failed:     stats.Failed,
			Status:     stats.Status(cancelled),
		}
		// recorded even when ctx is done
		if err := opts.Recorder.RecordRun(context.WithoutCancel(ctx), rec); err != nil {
			l.WarnContext(ctx, "record run failed", slog.Any("err", err))
		}
	}
	opts.Tracker.Event(telemetry.EventWorkflowComplete, map[string]any{
		"total":     stats.Total,
		"completed": stats.Completed,
		"skipped":   stats.Skipped,
		"failed":    stats.Failed,
		"elapsed":   stats.Elapsed,
		"status":    stats.Status(cancelled),
	})
	l.InfoContext(ctx, "run finished",
		slog.Int("completed", stats.Completed),
		slog.Int("skipped", stats.Skipped),
		slog.Int("failed", stats.Failed),
		slog.Duration("elapsed", stats.Elapsed))

	if cancelled {
		return stats, ctx.Err()
	}
	return stats, nil
}

func processScene(ctx context.Context, opts Options, process Processor, explainer string, sc script.Scene) (storage.SceneState, error) {
	dir := SceneDir(opts.OutputRoot, explainer, sc.Number)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return storage.SceneFailed, fmt.Errorf("create scene dir: %w", err)
	}
	if !opts.Overwrite && OutputExists(dir, opts.OutputFile) {
		return storage.SceneSkipped, nil
	}
	if err := callProcessor(ctx, process, sc, dir); err != nil {
		return storage.SceneFailed, err
	}
	return storage.SceneCompleted, nil
}

// callProcessor turns a processor panic into a scene failure.
func callProcessor(ctx context.Context, process Processor, sc script.Scene, dir string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panic: %v", r)
		}
	}()
	return process(ctx, sc, dir)
}

func shouldContinue(opts Options, sc script.Scene, err error) bool {
	if !opts.ContinueOnError {
		return false
	}
	if opts.Confirm == nil {
		return true
	}
	return opts.Confirm(sc, err)
}
