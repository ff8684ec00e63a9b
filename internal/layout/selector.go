/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layout

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// DifferentCategoryBias is the probability that a suggestion pool is restricted to
// categories other than the previous pattern's.
const DifferentCategoryBias = 0.8

// SuggestionsPerStep is how many candidates GenerateSequence asks for per scene.
const SuggestionsPerStep = 3

var (
	// ErrValidation is returned for inconsistent sequence requests.
	ErrValidation = errors.New("layout: invalid request")
	// ErrCapacity is returned when the catalog cannot supply a distinct pattern.
	ErrCapacity = errors.New("layout: not enough unused patterns")
)

// Source is the randomness the selector draws from. *rand.Rand satisfies it.
type Source interface {
	Float64() float64
	Intn(n int) int
}

// SelectionContext is the running state a suggestion is made against.
// Previous is zero when there is no previous pattern.
type SelectionContext struct {
	SceneType string
	Used      []int
	Previous  int
}

// Suggestion is a candidate pattern with the reason it was proposed.
type Suggestion struct {
	Pattern
	Reason string `json:"reason"`
}

// SequenceEntry is one scene's pattern in a generated sequence.
type SequenceEntry struct {
	SceneNumber int      `json:"scene_number"`
	PatternID   int      `json:"pattern_id"`
	Name        string   `json:"name"`
	Category    Category `json:"category"`
	Weight      Weight   `json:"weight"`
}

// Selector proposes patterns. It is not safe for concurrent use unless its Source is.
type Selector struct {
	src  Source
	recs Recommendations
}

// Option configures a Selector.
type Option func(*Selector)

// WithRecommendations layers r over the built-in recommendation table.
func WithRecommendations(r Recommendations) Option {
	return func(s *Selector) { s.recs = s.recs.Merge(r) }
}

// NewSelector returns a Selector drawing from src, or from a time-seeded source when nil.
func NewSelector(src Source, opts ...Option) *Selector {
	if src == nil {
		src = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s := &Selector{src: src, recs: DefaultRecommendations()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Recommendations returns the table in effect.
func (s *Selector) Recommendations() Recommendations { return s.recs }

// Suggest returns up to count distinct patterns not in ctx.Used.
func (s *Selector) Suggest(ctx SelectionContext, count int) []Suggestion {
	if count <= 0 {
		return []Suggestion{}
	}
	used := make(map[int]bool, len(ctx.Used))
	for _, id := range ctx.Used {
		used[id] = true
	}

	var pool []int
	if recs, ok := s.recs[ctx.SceneType]; ok && ctx.SceneType != "" {
		pool = append(pool, recs...)
	} else {
		pool = allIDs()
	}
	pool = filter(pool, func(id int) bool { return !used[id] })

	if ctx.Previous != 0 {
		prev := CategoryOf(ctx.Previous)
		same := filter(pool, func(id int) bool { return CategoryOf(id) == prev })
		diff := filter(pool, func(id int) bool { return CategoryOf(id) != prev })
		if len(diff) > 0 && s.src.Float64() < DifferentCategoryBias {
			pool = diff
		} else {
			pool = append(same, diff...)
		}
	}

	if len(pool) < count {
		pool = backfill(pool, used, count)
	}

	picked := s.sample(pool, count)
	out := make([]Suggestion, 0, len(picked))
	for _, id := range picked {
		p, _ := Lookup(id)
		out = append(out, Suggestion{Pattern: p, Reason: s.reason(ctx, p)})
	}
	return out
}

// GenerateSequence picks one pattern per scene, taking the first suggestion each step.
// sceneTypes, when non-empty, must have one label per scene.
func (s *Selector) GenerateSequence(n int, sceneTypes []string) ([]SequenceEntry, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative scene count %d", ErrValidation, n)
	}
	if len(sceneTypes) > 0 && len(sceneTypes) != n {
		return nil, fmt.Errorf("%w: %d scene types for %d scenes", ErrValidation, len(sceneTypes), n)
	}
	if n > CatalogSize {
		return nil, fmt.Errorf("%w: %d scenes exceed %d patterns", ErrCapacity, n, CatalogSize)
	}
	seq := make([]SequenceEntry, 0, n)
	ctx := SelectionContext{Used: make([]int, 0, n)}
	for i := 0; i < n; i++ {
		ctx.SceneType = ""
		if len(sceneTypes) > 0 {
			ctx.SceneType = sceneTypes[i]
		}
		sug := s.Suggest(ctx, SuggestionsPerStep)
		if len(sug) == 0 {
			return nil, fmt.Errorf("%w: scene %d", ErrCapacity, i)
		}
		p := sug[0].Pattern
		seq = append(seq, SequenceEntry{
			SceneNumber: i,
			PatternID:   p.ID,
			Name:        p.Name,
			Category:    p.Category,
			Weight:      p.Weight,
		})
		ctx.Used = append(ctx.Used, p.ID)
		ctx.Previous = p.ID
	}
	return seq, nil
}

// sample draws k ids without replacement using a partial Fisher-Yates shuffle.
func (s *Selector) sample(pool []int, k int) []int {
	ids := append([]int(nil), pool...)
	if k > len(ids) {
		k = len(ids)
	}
	for i := 0; i < k; i++ {
		j := i + s.src.Intn(len(ids)-i)
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids[:k]
}

func (s *Selector) reason(ctx SelectionContext, p Pattern) string {
	var parts []string
	if ctx.SceneType != "" && s.recs.Has(ctx.SceneType, p.ID) {
		parts = append(parts, fmt.Sprintf("Recommended for %s scenes", ctx.SceneType))
	}
	if ctx.Previous != 0 && p.Category != CategoryOf(ctx.Previous) {
		parts = append(parts, "Different category from previous")
	}
	parts = append(parts, p.Weight.Title()+" visual weight")
	return strings.Join(parts, " | ")
}

// backfill tops pool up to count with unused catalog ids in id order, skipping ids
// already present.
func backfill(pool []int, used map[int]bool, count int) []int {
	in := make(map[int]bool, len(pool))
	for _, id := range pool {
		in[id] = true
	}
	for _, id := range allIDs() {
		if len(pool) >= count {
			break
		}
		if used[id] || in[id] {
			continue
		}
		pool = append(pool, id)
		in[id] = true
	}
	return pool
}

func filter(ids []int, keep func(int) bool) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if keep(id) {
			out = append(out, id)
		}
	}
	return out
}
