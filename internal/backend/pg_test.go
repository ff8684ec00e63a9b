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
	"errors"
	"os"
	"testing"
	"time"

	"storyteller/internal/layout"
	"storyteller/internal/script"
	"storyteller/internal/storage"
)

// openPGForTest connects to STY_PG_DSN and skips when it is unset or unreachable.
func openPGForTest(t *testing.T) *PGStore {
	t.Helper()
	dsn := os.Getenv("STY_PG_DSN")
	if dsn == "" {
		t.Skip("STY_PG_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	st, err := OpenPG(ctx, dsn)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestPGSequenceStore(t *testing.T) {
	st := openPGForTest(t)
	ctx := context.Background()
	entries := []layout.SequenceEntry{{SceneNumber: 0, PatternID: 46, Name: "Circular Orbit (Clockwise)", Category: layout.CategoryCircular, Weight: layout.WeightMedium}}
	saved, err := st.SaveSequence(ctx, SavedSequence{Title: "pg", SceneTypes: []string{"intro"}, Entries: entries})
	if err != nil {
		t.Fatalf("SaveSequence: %v", err)
	}
	got, err := st.GetSequence(ctx, saved.ID)
	if err != nil {
		t.Fatalf("GetSequence: %v", err)
	}
	if got.Title != "pg" || len(got.Entries) != 1 || got.Entries[0].PatternID != 46 || got.SceneTypes[0] != "intro" {
		t.Fatalf("unexpected sequence: %+v", got)
	}
	if _, err := st.GetSequence(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	list, err := st.ListSequences(ctx, 5)
	if err != nil || len(list) == 0 {
		t.Fatalf("ListSequences: %v %v", list, err)
	}
	// migrations are idempotent
	if err := applyMigrations(ctx, st.DB); err != nil {
		t.Fatalf("reapply migrations: %v", err)
	}
}

func TestPGSearchMatchesSQLite(t *testing.T) {
	st := openPGForTest(t)
	ctx := context.Background()
	doc := script.Parse(apiScript)
	narr := script.ExtractNarrations(apiScript)
	explainer := "volcanoes-" + time.Now().Format("150405.000000")
	if _, err := IndexScriptPG(ctx, st.DB, explainer, doc, narr); err != nil {
		t.Fatalf("IndexScriptPG: %v", err)
	}
	root := t.TempDir()
	if err := storage.IndexDocument(ctx, root, explainer, doc, narr); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
	for _, text := range []string{"magma", "cone", "rock"} {
		q := storage.NewSearchQuery(text)
		q.Explainer = explainer
		pg, err := SearchPG(ctx, st.DB, q)
		if err != nil {
			t.Fatalf("SearchPG %q: %v", text, err)
		}
		lite, err := storage.Search(ctx, root, q)
		if err != nil {
			t.Fatalf("Search %q: %v", text, err)
		}
		if len(pg) != len(lite) {
			t.Fatalf("%q: pg %d results, sqlite %d", text, len(pg), len(lite))
		}
		for i := range pg {
			if pg[i].SceneNumber != lite[i].SceneNumber || pg[i].Field != lite[i].Field {
				t.Fatalf("%q: result %d differs: %+v vs %+v", text, i, pg[i], lite[i])
			}
		}
	}
}
