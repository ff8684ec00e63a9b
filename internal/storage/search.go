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
	"strings"
)

// SearchQuery describes a scene search.
// Text uses SQLite FTS5 syntax (terms, quoted phrases, AND/OR/NOT). Empty Text lists rows
// matching the filters. Fields restricts to FieldTitle, FieldPrompt and the like.
// SceneFrom/SceneTo are inclusive; negative means unset.
type SearchQuery struct {
	Text      string
	Explainer string
	Fields    []string
	SceneFrom int
	SceneTo   int
	Limit     int
	Offset    int
}

// NewSearchQuery returns a query for text with scene bounds unset.
func NewSearchQuery(text string) SearchQuery {
	return SearchQuery{Text: text, SceneFrom: -1, SceneTo: -1}
}

// SearchResult is one matching scene field. Snippet marks hits with [ ] when Text is set.
type SearchResult struct {
	ID          int64  `json:"id"`
	Explainer   string `json:"explainer"`
	SceneNumber int    `json:"scene_number"`
	Title       string `json:"title"`
	Field       string `json:"field"`
	Snippet     string `json:"snippet"`
}

// Search runs q against the workspace index.
func Search(ctx context.Context, root string, q SearchQuery) ([]SearchResult, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("workspace root is required")
	}
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return searchDB(ctx, db, q)
}

func searchDB(ctx context.Context, db *sql.DB, q SearchQuery) ([]SearchResult, error) {
	var args []any
	var sb strings.Builder
	if strings.TrimSpace(q.Text) != "" {
		sb.WriteString("SELECT s.id, s.explainer, s.scene_number, s.title, s.field, snippet(fts_scenes, 0, '[', ']', '…', 10)\n")
		sb.WriteString("FROM fts_scenes JOIN scenes s ON fts_scenes.rowid = s.id\n")
		sb.WriteString("WHERE fts_scenes MATCH ?\n")
		args = append(args, q.Text)
	} else {
		sb.WriteString("SELECT s.id, s.explainer, s.scene_number, s.title, s.field, ''\n")
		sb.WriteString("FROM scenes s\nWHERE 1=1\n")
	}
	if e := strings.TrimSpace(q.Explainer); e != "" {
		sb.WriteString(" AND s.explainer = ?\n")
		args = append(args, e)
	}
	if len(q.Fields) > 0 {
		sb.WriteString(" AND s.field IN (" + placeholders(len(q.Fields)) + ")\n")
		for _, f := range q.Fields {
			args = append(args, f)
		}
	}
	if q.SceneFrom >= 0 {
		sb.WriteString(" AND s.scene_number >= ?\n")
		args = append(args, q.SceneFrom)
	}
	if q.SceneTo >= 0 {
		sb.WriteString(" AND s.scene_number <= ?\n")
		args = append(args, q.SceneTo)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	sb.WriteString("ORDER BY s.explainer, s.scene_number, s.id\n")
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, offset)

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		var sn sql.NullString
		if err := rows.Scan(&r.ID, &r.Explainer, &r.SceneNumber, &r.Title, &r.Field, &sn); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Snippet = sn.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
