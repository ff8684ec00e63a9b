/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"storyteller/internal/script"
	"storyteller/internal/storage"
)

// IndexScriptPG replaces the shared index rows of one explainer.
func IndexScriptPG(ctx context.Context, db *sql.DB, explainer string, doc script.Document, narrations []script.Narration) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM scene_documents WHERE explainer = $1`, explainer); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("clear scenes: %w", err)
	}
	fields := storage.SceneFields(doc, narrations)
	for _, f := range fields {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scene_documents(explainer, scene_number, title, field, body) VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (explainer, scene_number, field) DO NOTHING`,
			explainer, f.Number, f.Title, f.Field, f.Text); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert scene %d %s: %w", f.Number, f.Field, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(fields), nil
}

// SearchPG runs q against the shared index using tsvector matching. Results use the same
// shape and snippet markers as storage.Search so both indexes can be compared.
func SearchPG(ctx context.Context, db *sql.DB, q storage.SearchQuery) ([]storage.SearchResult, error) {
	var (
		args []any
		b    strings.Builder
	)
	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if strings.TrimSpace(q.Text) != "" {
		p := place(q.Text)
		b.WriteString("SELECT d.id, d.explainer, d.scene_number, d.title, d.field, ")
		b.WriteString("COALESCE(ts_headline('simple', d.body, plainto_tsquery('simple', " + p + "), 'StartSel=[, StopSel=], MaxFragments=1, MaxWords=12'), '') ")
		b.WriteString("FROM scene_documents d WHERE d.search_vector @@ plainto_tsquery('simple', " + p + ") ")
	} else {
		b.WriteString("SELECT d.id, d.explainer, d.scene_number, d.title, d.field, '' FROM scene_documents d WHERE TRUE ")
	}
	if e := strings.TrimSpace(q.Explainer); e != "" {
		b.WriteString(" AND d.explainer = " + place(e) + " ")
	}
	if len(q.Fields) > 0 {
		b.WriteString(" AND d.field = ANY (" + place(q.Fields) + ") ")
	}
	if q.SceneFrom >= 0 {
		b.WriteString(" AND d.scene_number >= " + place(q.SceneFrom) + " ")
	}
	if q.SceneTo >= 0 {
		b.WriteString(" AND d.scene_number <= " + place(q.SceneTo) + " ")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	b.WriteString(" ORDER BY d.explainer, d.scene_number, d.id ")
	b.WriteString(" LIMIT " + place(limit) + " OFFSET " + place(offset))

	rows, err := db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search pg query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []storage.SearchResult{}
	for rows.Next() {
		var r storage.SearchResult
		if err := rows.Scan(&r.ID, &r.Explainer, &r.SceneNumber, &r.Title, &r.Field, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
