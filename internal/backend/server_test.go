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
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"storyteller/internal/layout"
	"storyteller/internal/script"
)

type memStore struct {
	mu   sync.Mutex
	seqs map[string]SavedSequence
	n    int
}

func (m *memStore) SaveSequence(_ context.Context, s SavedSequence) (SavedSequence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seqs == nil {
		m.seqs = map[string]SavedSequence{}
	}
	m.n++
	s.ID = fmt.Sprintf("seq-%d", m.n)
	s.CreatedAt = time.Now().UTC()
	m.seqs[s.ID] = s
	return s, nil
}

func (m *memStore) GetSequence(_ context.Context, id string) (SavedSequence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.seqs[id]
	if !ok {
		return SavedSequence{}, ErrNotFound
	}
	return s, nil
}

func (m *memStore) ListSequences(context.Context, int) ([]SavedSequence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []SavedSequence{}
	for _, s := range m.seqs {
		out = append(out, s)
	}
	return out, nil
}

type recTracker struct{ names []string }

func (r *recTracker) Event(name string, _ map[string]any) { r.names = append(r.names, name) }

const apiScript = `# Volcanoes - 2 SCENES

Total Duration: 12 seconds

## SCENE 0: Magma (6 seconds)

Narration: "Deep below, rock melts."

Image Generation Prompts (2-Step Workflow):
Initial: glowing magma chamber | Iteration 1: add pressure
Final Prompt (after review):
"[To be determined after initial render]"

Animation Prompt: rise

## SCENE 1: Eruption (6 seconds)

Image Generation Prompts (2-Step Workflow):
Initial: ash cloud over a cone | Iteration 1: add lightning
Final Prompt (after review):
"[To be determined after initial render]"

Animation Prompt: shake
`

func do(t *testing.T, h http.Handler, method, target, body, contentType, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthAndVersionArePublic(t *testing.T) {
	s := NewServer(Options{Token: "secret"})
	if rec := do(t, s, http.MethodGet, "/healthz", "", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
	rec := do(t, s, http.MethodGet, "/version", "", "", "")
	if rec.Code != http.StatusOK || decode[map[string]string](t, rec)["version"] == "" {
		t.Fatalf("version: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, s, http.MethodGet, "/readyz", "", "", "")
	if rec.Code != http.StatusOK || decode[map[string]string](t, rec)["store"] != "none" {
		t.Fatalf("readyz: %d %s", rec.Code, rec.Body.String())
	}
}

func TestAuthRequired(t *testing.T) {
	s := NewServer(Options{Token: "secret"})
	if rec := do(t, s, http.MethodGet, "/api/patterns", "", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/patterns", "", "", "wrong"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/patterns", "", "", "secret"); rec.Code != http.StatusOK {
		t.Fatalf("valid token: %d", rec.Code)
	}
}

func TestPatternsEndpoints(t *testing.T) {
	s := NewServer(Options{})
	all := decode[[]layout.Pattern](t, do(t, s, http.MethodGet, "/api/patterns", "", "", ""))
	if len(all) != layout.CatalogSize {
		t.Fatalf("expected %d patterns, got %d", layout.CatalogSize, len(all))
	}
	circ := decode[[]layout.Pattern](t, do(t, s, http.MethodGet, "/api/patterns?category=circular", "", "", ""))
	if len(circ) != 15 {
		t.Fatalf("expected 15 circular patterns, got %d", len(circ))
	}
	p := decode[layout.Pattern](t, do(t, s, http.MethodGet, "/api/patterns/46", "", "", ""))
	if p.ID != 46 || p.Category != layout.CategoryCircular {
		t.Fatalf("unexpected pattern: %+v", p)
	}
	if rec := do(t, s, http.MethodGet, "/api/patterns/101", "", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id: %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/patterns/abc", "", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: %d", rec.Code)
	}
}

func TestParseAndNarration(t *testing.T) {
	s := NewServer(Options{})
	doc := decode[script.Document](t, do(t, s, http.MethodPost, "/api/parse", apiScript, "text/plain", ""))
	if doc.Title != "Volcanoes" || len(doc.Scenes) != 2 || doc.Scenes[1].InitialPrompt != "ash cloud over a cone" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	body, _ := json.Marshal(map[string]string{"text": apiScript})
	doc = decode[script.Document](t, do(t, s, http.MethodPost, "/api/parse", string(body), "application/json", ""))
	if len(doc.Scenes) != 2 {
		t.Fatalf("json body not parsed: %+v", doc)
	}

	one := decode[map[string]any](t, do(t, s, http.MethodPost, "/api/narration?scene=0", apiScript, "text/plain", ""))
	if one["text"] != "Deep below, rock melts." {
		t.Fatalf("unexpected narration: %v", one)
	}
	empty := decode[map[string]any](t, do(t, s, http.MethodPost, "/api/narration?scene=1", apiScript, "text/plain", ""))
	if empty["text"] != "" {
		t.Fatalf("expected empty narration, got %v", empty)
	}
	if rec := do(t, s, http.MethodPost, "/api/narration?scene=7", apiScript, "text/plain", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing scene: %d", rec.Code)
	}
	list := decode[[]script.Narration](t, do(t, s, http.MethodPost, "/api/narration", apiScript, "text/plain", ""))
	if len(list) != 1 || list[0].SceneNumber != 0 {
		t.Fatalf("unexpected narrations: %+v", list)
	}
}

func TestSuggestIsSeeded(t *testing.T) {
	s := NewServer(Options{})
	body := `{"scene_type":"comparison","used":[21],"previous":21,"count":3,"seed":7}`
	a := decode[[]layout.Suggestion](t, do(t, s, http.MethodPost, "/api/suggest", body, "application/json", ""))
	b := decode[[]layout.Suggestion](t, do(t, s, http.MethodPost, "/api/suggest", body, "application/json", ""))
	if len(a) != 3 || len(b) != 3 {
		t.Fatalf("expected 3 suggestions, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Fatalf("same seed gave different suggestions: %+v vs %+v", a, b)
		}
		if a[i].ID == 21 {
			t.Fatalf("used pattern suggested")
		}
	}
}

func TestGenerateSequenceAndStore(t *testing.T) {
	store := &memStore{}
	tr := &recTracker{}
	s := NewServer(Options{Store: store, Tracker: tr})

	rec := do(t, s, http.MethodPost, "/api/sequences", `{"count":5,"seed":1}`, "application/json", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("generate: %d %s", rec.Code, rec.Body.String())
	}
	resp := decode[SequenceResponse](t, rec)
	if len(resp.Sequence) != 5 || resp.ID != "" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	rec = do(t, s, http.MethodPost, "/api/sequences", `{"count":2,"scene_types":["intro","conclusion"],"save":true,"title":"demo"}`, "application/json", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("save: %d %s", rec.Code, rec.Body.String())
	}
	saved := decode[SequenceResponse](t, rec)
	if saved.ID == "" {
		t.Fatalf("expected id")
	}
	got := decode[SavedSequence](t, do(t, s, http.MethodGet, "/api/sequences/"+saved.ID, "", "", ""))
	if got.Title != "demo" || len(got.Entries) != 2 {
		t.Fatalf("unexpected stored sequence: %+v", got)
	}
	if rec := do(t, s, http.MethodGet, "/api/sequences/nope", "", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing sequence: %d", rec.Code)
	}
	if len(tr.names) != 2 {
		t.Fatalf("expected 2 telemetry events, got %v", tr.names)
	}

	if rec := do(t, s, http.MethodPost, "/api/sequences", `{"count":2,"scene_types":["intro"]}`, "application/json", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("mismatched types: %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/sequences", `{"count":101}`, "application/json", ""); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("capacity: %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/sequences", `{"count":`, "application/json", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json: %d", rec.Code)
	}
}

func TestStoreEndpointsWithoutStore(t *testing.T) {
	s := NewServer(Options{})
	if rec := do(t, s, http.MethodGet, "/api/sequences/x", "", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("get without store: %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/sequences", `{"count":1,"save":true}`, "application/json", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("save without store: %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/search?q=magma", "", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("search without index: %d", rec.Code)
	}
}

func TestClientRoundTrip(t *testing.T) {
	srv := httptest.NewServer(NewServer(Options{Token: "tok", Store: &memStore{}}))
	defer srv.Close()
	ctx := context.Background()

	c := NewClient(srv.URL+"/", "tok")
	pats, err := c.Patterns(ctx)
	if err != nil || len(pats) != layout.CatalogSize {
		t.Fatalf("Patterns: %d %v", len(pats), err)
	}
	seed := int64(3)
	id, seq, err := c.GenerateSequence(ctx, SequenceRequest{Count: 4, Seed: &seed, Save: true})
	if err != nil || id == "" || len(seq) != 4 {
		t.Fatalf("GenerateSequence: %q %v %v", id, seq, err)
	}
	got, err := c.GetSequence(ctx, id)
	if err != nil || len(got.Entries) != 4 || got.Entries[0].PatternID != seq[0].PatternID {
		t.Fatalf("GetSequence: %+v %v", got, err)
	}

	bad := NewClient(srv.URL, "")
	if _, err := bad.Patterns(ctx); err == nil || !strings.Contains(err.Error(), "missing bearer token") {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestParseVersion(t *testing.T) {
	if v, err := parseVersion("migrations/0003_more.sql"); err != nil || v != 3 {
		t.Fatalf("parseVersion: %d %v", v, err)
	}
	if _, err := parseVersion("init.sql"); err == nil {
		t.Fatalf("expected error")
	}
}
