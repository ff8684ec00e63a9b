/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "storyteller/internal/log"
	"storyteller/internal/script"
	"storyteller/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName holds all derived per-workspace data under the root.
	IndexDirName  = ".sty"
	IndexFileName = "index.sqlite"

	// schemaVersion tracks the local SQLite schema. Bump it and add a migration step
	// for breaking changes.
	schemaVersion = 3

	// tsLayout is fixed-width so stored timestamps sort lexicographically.
	tsLayout = "2006-01-02T15:04:05.000000000Z"
)

// Indexed scene fields.
const (
	FieldTitle     = "title"
	FieldPrompt    = "prompt"
	FieldInitial   = "initial_prompt"
	FieldFinal     = "final_prompt"
	FieldNarration = "narration"
)

// IndexPath returns the full path to the workspace index database file.
func IndexPath(root string) string {
	return filepath.Join(root, IndexDirName, IndexFileName)
}

// InitOrOpenIndex ensures the index exists at .sty/index.sqlite, opens it in WAL mode and
// brings its schema up to date.
func InitOrOpenIndex(root string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_init").With(slog.String("root", root))
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("workspace root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, IndexDirName), 0o755); err != nil {
		l.Error("create index dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create %s dir: %w", IndexDirName, err)
	}

	path := IndexPath(root)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure index schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("index ready", slog.String("path", path))
	return db, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// fresh databases start at schema 1 and migrate forward
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, 1, ?, ?, ?)`, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// SchemaVersion reports the schema recorded in the index.
func SchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// migrations maps a target schema version to the statements that reach it.
var migrations = map[int][]string{
	2: {
		`CREATE INDEX IF NOT EXISTS idx_runs_explainer_started ON runs(explainer, started_at);`,
		`CREATE INDEX IF NOT EXISTS idx_script_snapshots_explainer_ts ON script_snapshots(explainer, ts);`,
	},
	// 3 replaces the contentless fts_scenes with an external-content table over scenes.
	3: append(append([]string{
		`DROP TRIGGER IF EXISTS scenes_ai;`,
		`DROP TRIGGER IF EXISTS scenes_ad;`,
		`DROP TRIGGER IF EXISTS scenes_au;`,
		`DROP TABLE IF EXISTS fts_scenes;`,
		createFTSScenes,
	}, ftsTriggers...), `INSERT INTO fts_scenes(fts_scenes) VALUES('rebuild');`),
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	cur, err := SchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	// never downgrade
	for cur < schemaVersion {
		next := cur + 1
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range migrations[next] {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	// best-effort FTS merge
	_, _ = db.ExecContext(ctx, `INSERT INTO fts_scenes(fts_scenes) VALUES('optimize')`)
	return nil
}

// fts_scenes reads its text from scenes so snippet() can highlight hits.
const createFTSScenes = `CREATE VIRTUAL TABLE IF NOT EXISTS fts_scenes USING fts5(
	text,
	content='scenes',
	content_rowid='id',
	tokenize = 'unicode61'
);`

var ftsTriggers = []string{
	`CREATE TRIGGER IF NOT EXISTS scenes_ai AFTER INSERT ON scenes BEGIN
		INSERT INTO fts_scenes(rowid, text) VALUES (new.id, new.text);
	END;`,
	`CREATE TRIGGER IF NOT EXISTS scenes_ad AFTER DELETE ON scenes BEGIN
		INSERT INTO fts_scenes(fts_scenes, rowid, text) VALUES ('delete', old.id, old.text);
	END;`,
	`CREATE TRIGGER IF NOT EXISTS scenes_au AFTER UPDATE OF text ON scenes BEGIN
		INSERT INTO fts_scenes(fts_scenes, rowid, text) VALUES ('delete', old.id, old.text);
		INSERT INTO fts_scenes(rowid, text) VALUES (new.id, new.text);
	END;`,
}

// ensureIndexSchema creates index tables and FTS structures if they do not exist.
func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		// one row per indexed text field of a scene
		`CREATE TABLE IF NOT EXISTS scenes (
			id           INTEGER PRIMARY KEY,
			explainer    TEXT    NOT NULL,
			scene_number INTEGER NOT NULL,
			title        TEXT    NOT NULL,
			field        TEXT    NOT NULL,
			text         TEXT    NOT NULL,
			UNIQUE(explainer, scene_number, field)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_scenes_explainer ON scenes(explainer, scene_number);`,

		createFTSScenes,

		`CREATE TABLE IF NOT EXISTS runs (
			id          TEXT    PRIMARY KEY,
			explainer   TEXT    NOT NULL,
			script_path TEXT    NOT NULL,
			started_at  TEXT    NOT NULL,
			finished_at TEXT    NOT NULL,
			total       INTEGER NOT NULL,
			completed   INTEGER NOT NULL,
			skipped     INTEGER NOT NULL,
			failed      INTEGER NOT NULL,
			status      TEXT    NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS script_snapshots (
			id        INTEGER PRIMARY KEY,
			explainer TEXT    NOT NULL,
			ts        TEXT    NOT NULL,
			text      TEXT    NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	for _, q := range ftsTriggers {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure fts triggers: %w", err)
		}
	}
	return nil
}

// SceneField is one searchable text field of a scene.
type SceneField struct {
	Number int
	Title  string
	Field  string
	Text   string
}

// SceneFields flattens a document and its narrations into searchable fields. Empty fields
// are dropped.
func SceneFields(doc script.Document, narrations []script.Narration) []SceneField {
	rows := make([]SceneField, 0, len(doc.Scenes)*4+len(narrations))
	titles := map[int]string{}
	for _, s := range doc.Scenes {
		titles[s.Number] = s.Title
		for _, f := range []struct{ field, text string }{
			{FieldTitle, s.Title},
			{FieldPrompt, s.Prompt},
			{FieldInitial, s.InitialPrompt},
			{FieldFinal, s.FinalPrompt},
		} {
			if strings.TrimSpace(f.text) != "" {
				rows = append(rows, SceneField{s.Number, s.Title, f.field, f.text})
			}
		}
	}
	for _, n := range narrations {
		if strings.TrimSpace(n.Text) == "" {
			continue
		}
		if _, ok := titles[n.SceneNumber]; !ok {
			// narration-only scene; index its title too
			titles[n.SceneNumber] = n.Title
			rows = append(rows, SceneField{n.SceneNumber, n.Title, FieldTitle, n.Title})
		}
		rows = append(rows, SceneField{n.SceneNumber, n.Title, FieldNarration, n.Text})
	}
	return rows
}

// IndexDocument replaces the indexed scenes of one explainer.
func IndexDocument(ctx context.Context, root, explainer string, doc script.Document, narrations []script.Narration) error {
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return err
	}
	defer db.Close()
	return indexDocumentDB(ctx, db, explainer, doc, narrations)
}

func indexDocumentDB(ctx context.Context, db *sql.DB, explainer string, doc script.Document, narrations []script.Narration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM scenes WHERE explainer=?`, explainer); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear scenes: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO scenes(explainer, scene_number, title, field, text) VALUES(?,?,?,?,?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, r := range SceneFields(doc, narrations) {
		if _, err := stmt.ExecContext(ctx, explainer, r.Number, r.Title, r.Field, r.Text); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert scene %d %s: %w", r.Number, r.Field, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// IndexedExplainers returns the distinct explainer names present in the index.
func IndexedExplainers(ctx context.Context, root string) ([]string, error) {
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	rows, err := db.QueryContext(ctx, `SELECT DISTINCT explainer FROM scenes ORDER BY explainer`)
	if err != nil {
		return nil, fmt.Errorf("list explainers: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RebuildIndex drops the derived scene tables and re-indexes every explainer whose script
// is still readable. Runs and snapshots are kept.
func RebuildIndex(ctx context.Context, root string, m Manifest) error {
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return err
	}
	defer db.Close()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	drops := []string{
		"DROP TRIGGER IF EXISTS scenes_ai;",
		"DROP TRIGGER IF EXISTS scenes_ad;",
		"DROP TRIGGER IF EXISTS scenes_au;",
		"DROP TABLE IF EXISTS scenes;",
		"DROP TABLE IF EXISTS fts_scenes;",
	}
	for _, q := range drops {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("drop schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("drop commit: %w", err)
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		return err
	}
	l := applog.WithOperation(applog.WithComponent("storage"), "index_rebuild")
	for name, e := range m.Explainers {
		if e == nil || e.ScriptPath == "" {
			continue
		}
		text, err := script.ReadText(e.ScriptPath)
		if err != nil {
			l.Warn("skip explainer, script unreadable", slog.String("explainer", name), slog.Any("err", err))
			continue
		}
		if err := indexDocumentDB(ctx, db, name, script.Parse(text), script.ExtractNarrations(text)); err != nil {
			return err
		}
	}
	return nil
}

// DetectAndRebuildIndex checks for corruption or missing schema and rebuilds the index
// if needed. It reports whether a rebuild happened.
func DetectAndRebuildIndex(ctx context.Context, root string, m Manifest) (bool, error) {
	path := IndexPath(root)
	db, err := InitOrOpenIndex(root)
	if err != nil {
		backupIndexFile(path)
		removeIndexFiles(path)
		if rbErr := RebuildIndex(ctx, root, m); rbErr != nil {
			return false, fmt.Errorf("rebuild after open failure: %w (open err: %v)", rbErr, err)
		}
		return true, nil
	}
	needs := false
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.Contains(strings.ToLower(chk), "ok") {
		needs = true
	}
	if !needs {
		if _, err := db.ExecContext(ctx, `SELECT 1 FROM scenes LIMIT 1;`); err != nil {
			needs = true
		}
	}
	_ = db.Close()
	if !needs {
		return false, nil
	}
	backupIndexFile(path)
	removeIndexFiles(path)
	if err := RebuildIndex(ctx, root, m); err != nil {
		return false, err
	}
	return true, nil
}

// backupIndexFile copies the current index file into .sty/backups.
func backupIndexFile(indexPath string) {
	bdir := filepath.Join(filepath.Dir(indexPath), BackupsDirName)
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), stamp))
	if data, err := os.ReadFile(indexPath); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}

func removeIndexFiles(indexPath string) {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(indexPath + suffix)
	}
}

// IndexScript indexes the scenes and narration of a script and snapshots its text when it
// changed since the last run.
func (w *Workspace) IndexScript(ctx context.Context, explainer, text string) error {
	if err := IndexDocument(ctx, w.Root, explainer, script.Parse(text), script.ExtractNarrations(text)); err != nil {
		return err
	}
	_, err := SnapshotIfChanged(ctx, w.Root, explainer, text)
	return err
}
