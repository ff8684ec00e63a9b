/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package backend serves the layout catalog, script parsing and shared sequences over HTTP.
// Sequences and the shared scene index live in Postgres.
package backend

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/oklog/ulid/v2"

	"storyteller/internal/layout"
)

// ErrNotFound is returned when a stored sequence does not exist.
var ErrNotFound = errors.New("not found")

// SavedSequence is a generated sequence persisted for sharing.
type SavedSequence struct {
	ID         string                 `json:"id"`
	Title      string                 `json:"title,omitempty"`
	SceneTypes []string               `json:"scene_types"`
	Entries    []layout.SequenceEntry `json:"entries"`
	CreatedAt  time.Time              `json:"created_at"`
}

// SequenceStore persists sequences.
type SequenceStore interface {
	SaveSequence(ctx context.Context, s SavedSequence) (SavedSequence, error)
	GetSequence(ctx context.Context, id string) (SavedSequence, error)
	ListSequences(ctx context.Context, limit int) ([]SavedSequence, error)
}

// PGStore is the Postgres SequenceStore. It also holds the shared scene index.
type PGStore struct {
	DB *sql.DB
}

// OpenPG connects with the pgx stdlib driver, pings and applies migrations.
func OpenPG(ctx context.Context, dsn string) (*PGStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("database url is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &PGStore{DB: db}, nil
}

// Close closes the pool.
func (s *PGStore) Close() error { return s.DB.Close() }

// Ping reports whether the database is reachable.
func (s *PGStore) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

// SaveSequence assigns an id and creation time and inserts s.
func (s *PGStore) SaveSequence(ctx context.Context, seq SavedSequence) (SavedSequence, error) {
	seq.ID = ulid.Make().String()
	seq.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	if seq.SceneTypes == nil {
		seq.SceneTypes = []string{}
	}
	types, err := json.Marshal(seq.SceneTypes)
	if err != nil {
		return SavedSequence{}, err
	}
	entries, err := json.Marshal(seq.Entries)
	if err != nil {
		return SavedSequence{}, err
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO sequences(id, title, scene_count, scene_types, entries, created_at) VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6)`,
		seq.ID, seq.Title, len(seq.Entries), string(types), string(entries), seq.CreatedAt)
	if err != nil {
		return SavedSequence{}, fmt.Errorf("insert sequence: %w", err)
	}
	return seq, nil
}

// GetSequence loads one sequence by id.
func (s *PGStore) GetSequence(ctx context.Context, id string) (SavedSequence, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, title, scene_types::text, entries::text, created_at FROM sequences WHERE id = $1`, id)
	seq, err := scanSequence(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SavedSequence{}, fmt.Errorf("sequence %s: %w", id, ErrNotFound)
	}
	return seq, err
}

// ListSequences returns the newest sequences first.
func (s *PGStore) ListSequences(ctx context.Context, limit int) ([]SavedSequence, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, title, scene_types::text, entries::text, created_at FROM sequences ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sequences: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []SavedSequence{}
	for rows.Next() {
		seq, err := scanSequence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, seq)
	}
	return out, rows.Err()
}

type scanner interface{ Scan(dest ...any) error }

func scanSequence(sc scanner) (SavedSequence, error) {
	var (
		seq            SavedSequence
		types, entries string
	)
	if err := sc.Scan(&seq.ID, &seq.Title, &types, &entries, &seq.CreatedAt); err != nil {
		return SavedSequence{}, err
	}
	if err := json.Unmarshal([]byte(types), &seq.SceneTypes); err != nil {
		return SavedSequence{}, fmt.Errorf("decode scene types: %w", err)
	}
	if err := json.Unmarshal([]byte(entries), &seq.Entries); err != nil {
		return SavedSequence{}, fmt.Errorf("decode entries: %w", err)
	}
	return seq, nil
}
