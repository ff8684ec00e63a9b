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
	"fmt"
	"time"
)

// Run statuses.
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
	RunCancelled = "cancelled"
)

// RunRecord is one workflow execution.
type RunRecord struct {
	ID         string    `json:"id"`
	Explainer  string    `json:"explainer"`
	ScriptPath string    `json:"script_path"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Total      int       `json:"total"`
	Completed  int       `json:"completed"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Status     string    `json:"status"`
}

// Duration is the wall time of the run.
func (r RunRecord) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// language=SQL
const insertRunSQL = `INSERT OR REPLACE INTO runs(id, explainer, script_path, started_at, finished_at, total, completed, skipped, failed, status)
	VALUES (?,?,?,?,?,?,?,?,?,?)`

// language=SQL
const listRunsSQL = `SELECT id, explainer, script_path, started_at, finished_at, total, completed, skipped, failed, status
	FROM runs WHERE (? = '' OR explainer = ?) ORDER BY started_at DESC, id DESC LIMIT ?`

// RecordRun stores r in the workspace index.
func RecordRun(ctx context.Context, root string, r RunRecord) error {
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.ExecContext(ctx, insertRunSQL, r.ID, r.Explainer, r.ScriptPath,
		r.StartedAt.UTC().Format(tsLayout), r.FinishedAt.UTC().Format(tsLayout),
		r.Total, r.Completed, r.Skipped, r.Failed, r.Status)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// ListRuns returns up to limit runs, newest first, optionally for one explainer.
func ListRuns(ctx context.Context, root, explainer string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	rows, err := db.QueryContext(ctx, listRunsSQL, explainer, explainer, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	out := []RunRecord{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRun(rows *sql.Rows) (RunRecord, error) {
	var r RunRecord
	var started, finished string
	if err := rows.Scan(&r.ID, &r.Explainer, &r.ScriptPath, &started, &finished, &r.Total, &r.Completed, &r.Skipped, &r.Failed, &r.Status); err != nil {
		return r, fmt.Errorf("scan run: %w", err)
	}
	r.StartedAt, _ = time.Parse(tsLayout, started)
	r.FinishedAt, _ = time.Parse(tsLayout, finished)
	return r, nil
}

// RecordRun stores the run in the index of this workspace.
func (w *Workspace) RecordRun(ctx context.Context, r RunRecord) error {
	return RecordRun(ctx, w.Root, r)
}
