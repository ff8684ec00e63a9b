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
	"time"
)

// language=SQL
// dialect=SQLite
const insertScriptSnapshotSQL = `INSERT INTO script_snapshots(explainer, ts, text) VALUES (?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestScriptSnapshotSQL = `SELECT ts, text FROM script_snapshots WHERE explainer = ? ORDER BY ts DESC, id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const listScriptSnapshotsSQL = `SELECT ts, text FROM script_snapshots WHERE explainer = ? ORDER BY ts DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneOldScriptSnapshotsSQL = `DELETE FROM script_snapshots WHERE explainer = ? AND id NOT IN (
	SELECT id FROM script_snapshots WHERE explainer = ? ORDER BY ts DESC, id DESC LIMIT ?
)`

// ScriptSnapshot is a stored copy of a script's text.
type ScriptSnapshot struct {
	TS   time.Time
	Text string
}

// SaveScriptSnapshot stores the full script text of an explainer at ts.
func SaveScriptSnapshot(ctx context.Context, root, explainer, text string, ts time.Time) error {
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	if _, err := db.ExecContext(ctx, insertScriptSnapshotSQL, explainer, ts.UTC().Format(tsLayout), text); err != nil {
		return fmt.Errorf("save script snapshot: %w", err)
	}
	return nil
}

// GetLatestScriptSnapshot returns the newest snapshot, or a zero value if there is none.
func GetLatestScriptSnapshot(ctx context.Context, root, explainer string) (ScriptSnapshot, error) {
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return ScriptSnapshot{}, err
	}
	defer func() { _ = db.Close() }()
	var tsStr, txt string
	err = db.QueryRowContext(ctx, selectLatestScriptSnapshotSQL, explainer).Scan(&tsStr, &txt)
	if errors.Is(err, sql.ErrNoRows) {
		return ScriptSnapshot{}, nil
	}
	if err != nil {
		return ScriptSnapshot{}, err
	}
	ts, _ := time.Parse(tsLayout, tsStr)
	return ScriptSnapshot{TS: ts, Text: txt}, nil
}

// ListScriptSnapshots returns up to limit snapshots, newest first.
func ListScriptSnapshots(ctx context.Context, root, explainer string, limit int) ([]ScriptSnapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	rows, err := db.QueryContext(ctx, listScriptSnapshotsSQL, explainer, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []ScriptSnapshot
	for rows.Next() {
		var tsStr, txt string
		if err := rows.Scan(&tsStr, &txt); err != nil {
			return nil, err
		}
		ts, _ := time.Parse(tsLayout, tsStr)
		out = append(out, ScriptSnapshot{TS: ts, Text: txt})
	}
	return out, rows.Err()
}

// SnapshotIfChanged stores text when it differs from the latest snapshot.
func SnapshotIfChanged(ctx context.Context, root, explainer, text string) (bool, error) {
	last, err := GetLatestScriptSnapshot(ctx, root, explainer)
	if err != nil {
		return false, err
	}
	if !last.TS.IsZero() && last.Text == text {
		return false, nil
	}
	if err := SaveScriptSnapshot(ctx, root, explainer, text, time.Now()); err != nil {
		return false, err
	}
	return true, nil
}

// PruneOldScriptSnapshots keeps at most keepLast snapshots of an explainer.
func PruneOldScriptSnapshots(ctx context.Context, root, explainer string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	res, err := db.ExecContext(ctx, pruneOldScriptSnapshotsSQL, explainer, explainer, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
