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
	"errors"
	"fmt"
	"io"
	"math/rand"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"storyteller/internal/layout"
	"storyteller/internal/script"
	"storyteller/internal/storage"
	"storyteller/internal/telemetry"
	"storyteller/internal/version"
)

// maxBody bounds request bodies; scripts are a few KiB.
const maxBody = 5 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

// scriptText reads a script from a text body or from {"text": "..."} when the body is JSON.
func scriptText(r *http.Request) (string, error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "application/json" {
		var req struct {
			Text string `json:"text"`
		}
		if err := decodeJSON(r, &req); err != nil {
			return "", err
		}
		return req.Text, nil
	}
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(b), nil
}

func (s *Server) selector(seed *int64) *layout.Selector {
	var src layout.Source
	if seed != nil {
		src = rand.New(rand.NewSource(*seed))
	}
	return layout.NewSelector(src, layout.WithRecommendations(s.opts.Recommendations))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	p, ok := s.opts.Store.(interface{ Ping(context.Context) error })
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "store": "none"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		jsonError(w, "db not ready", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "store": "postgres"})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": version.String()})
}

func (s *Server) handleListPatterns(w http.ResponseWriter, r *http.Request) {
	cat := layout.Category(strings.ToLower(r.URL.Query().Get("category")))
	wt := layout.Weight(strings.ToLower(r.URL.Query().Get("weight")))
	out := []layout.Pattern{}
	for _, p := range layout.Catalog() {
		if cat != "" && p.Category != cat {
			continue
		}
		if wt != "" && p.Weight != wt {
			continue
		}
		out = append(out, p)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetPattern(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		jsonError(w, "invalid pattern id", http.StatusBadRequest)
		return
	}
	p, ok := layout.Lookup(id)
	if !ok {
		jsonError(w, fmt.Sprintf("pattern %d not found", id), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, layout.DefaultRecommendations().Merge(s.opts.Recommendations))
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	text, err := scriptText(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, script.Parse(text))
}

func (s *Server) handleNarration(w http.ResponseWriter, r *http.Request) {
	text, err := scriptText(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	q := r.URL.Query()
	if raw := q.Get("scene"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			jsonError(w, "invalid scene number", http.StatusBadRequest)
			return
		}
		narr, err := script.NarrationFor(text, n)
		if errors.Is(err, script.ErrSceneNotFound) {
			jsonError(w, fmt.Sprintf("scene %d not found", n), http.StatusNotFound)
			return
		}
		if err != nil {
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"scene_number": n, "text": narr})
		return
	}
	if q.Get("all") == "true" || q.Get("all") == "1" {
		writeJSON(w, http.StatusOK, script.AllNarrations(text))
		return
	}
	writeJSON(w, http.StatusOK, script.ExtractNarrations(text))
}

type suggestRequest struct {
	SceneType string `json:"scene_type"`
	Used      []int  `json:"used"`
	Previous  int    `json:"previous"`
	Count     int    `json:"count"`
	Seed      *int64 `json:"seed"`
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Count == 0 {
		req.Count = layout.SuggestionsPerStep
	}
	sug := s.selector(req.Seed).Suggest(layout.SelectionContext{
		SceneType: req.SceneType,
		Used:      req.Used,
		Previous:  req.Previous,
	}, req.Count)
	writeJSON(w, http.StatusOK, sug)
}

// SequenceRequest is the POST /api/sequences body.
type SequenceRequest struct {
	Count      int      `json:"count"`
	SceneTypes []string `json:"scene_types"`
	Title      string   `json:"title"`
	Seed       *int64   `json:"seed"`
	Save       bool     `json:"save"`
}

// SequenceResponse carries a generated sequence and, when saved, its id.
type SequenceResponse struct {
	ID       string                 `json:"id,omitempty"`
	Sequence []layout.SequenceEntry `json:"sequence"`
}

func (s *Server) handleGenerateSequence(w http.ResponseWriter, r *http.Request) {
	var req SequenceRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Save && s.opts.Store == nil {
		jsonError(w, "sequence store not configured", http.StatusServiceUnavailable)
		return
	}
	seq, err := s.selector(req.Seed).GenerateSequence(req.Count, req.SceneTypes)
	switch {
	case errors.Is(err, layout.ErrValidation):
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, layout.ErrCapacity):
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	case err != nil:
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.opts.Tracker.Event(telemetry.EventSequenceGenerated, map[string]any{
		"scenes": len(seq), "typed": len(req.SceneTypes) > 0, "source": "api",
	})
	resp := SequenceResponse{Sequence: seq}
	if req.Save {
		saved, err := s.opts.Store.SaveSequence(r.Context(), SavedSequence{Title: req.Title, SceneTypes: req.SceneTypes, Entries: seq})
		if err != nil {
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp.ID = saved.ID
		writeJSON(w, http.StatusCreated, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListSequences(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store == nil {
		jsonError(w, "sequence store not configured", http.StatusServiceUnavailable)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := s.opts.Store.ListSequences(r.Context(), limit)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetSequence(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store == nil {
		jsonError(w, "sequence store not configured", http.StatusServiceUnavailable)
		return
	}
	seq, err := s.opts.Store.GetSequence(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, ErrNotFound) {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, seq)
}

func (s *Server) handleIndexScript(w http.ResponseWriter, r *http.Request) {
	if s.opts.Index == nil {
		jsonError(w, "shared index not configured", http.StatusServiceUnavailable)
		return
	}
	explainer := strings.TrimSpace(chi.URLParam(r, "explainer"))
	text, err := scriptText(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	n, err := IndexScriptPG(r.Context(), s.opts.Index, explainer, script.Parse(text), script.ExtractNarrations(text))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"explainer": explainer, "fields": n})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.opts.Index == nil {
		jsonError(w, "shared index not configured", http.StatusServiceUnavailable)
		return
	}
	q, err := searchQueryFromURL(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := SearchPG(r.Context(), s.opts.Index, q)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func searchQueryFromURL(r *http.Request) (storage.SearchQuery, error) {
	v := r.URL.Query()
	q := storage.NewSearchQuery(v.Get("q"))
	q.Explainer = v.Get("explainer")
	q.Fields = v["field"]
	ints := []struct {
		key string
		dst *int
	}{{"from", &q.SceneFrom}, {"to", &q.SceneTo}, {"limit", &q.Limit}, {"offset", &q.Offset}}
	for _, it := range ints {
		raw := v.Get(it.key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, fmt.Errorf("invalid %s: %q", it.key, raw)
		}
		*it.dst = n
	}
	return q, nil
}
