/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layout

import (
	"sync"
	"testing"
)

func TestCategoryPartition(t *testing.T) {
	for id := MinPatternID; id <= MaxPatternID; id++ {
		owners := 0
		for _, c := range Categories() {
			for _, cid := range CategoryIDs(c) {
				if cid == id {
					owners++
				}
			}
		}
		if owners != 1 {
			t.Fatalf("pattern %d owned by %d categories", id, owners)
		}
		if CategoryOf(id) == CategoryUnknown {
			t.Fatalf("pattern %d has unknown category", id)
		}
	}
}

func TestCategoryOfOutOfRange(t *testing.T) {
	for _, id := range []int{0, 101, -5} {
		if got := CategoryOf(id); got != CategoryUnknown {
			t.Fatalf("CategoryOf(%d) = %q", id, got)
		}
	}
}

func TestCatalogComplete(t *testing.T) {
	cat := Catalog()
	if len(cat) != CatalogSize {
		t.Fatalf("expected %d patterns, got %d", CatalogSize, len(cat))
	}
	for i, p := range cat {
		if p.ID != i+1 || p.Name == "" {
			t.Fatalf("bad entry at %d: %+v", i, p)
		}
	}
	if p, _ := Lookup(89); p.Name != "Hub-and-Spoke" || p.Category != CategorySpecialty {
		t.Fatalf("unexpected pattern 89: %+v", p)
	}
	if _, ok := Lookup(0); ok {
		t.Fatalf("id 0 should not exist")
	}
}

func TestWeightOf(t *testing.T) {
	cases := map[int]Weight{1: WeightHeavy, 2: WeightLight, 16: WeightMedium, 3: WeightMedium, 100: WeightLight}
	for id, want := range cases {
		if got := WeightOf(id); got != want {
			t.Fatalf("WeightOf(%d) = %q, want %q", id, got, want)
		}
	}
	if WeightHeavy.Title() != "Heavy" {
		t.Fatalf("title: %q", WeightHeavy.Title())
	}
}

func TestRecommendationsMerge(t *testing.T) {
	r := DefaultRecommendations().Merge(Recommendations{"custom": {5, 200}, "timeline": {1}})
	if got := r["custom"]; len(got) != 1 || got[0] != 5 {
		t.Fatalf("custom: %v", got)
	}
	if got := r["timeline"]; len(got) != 1 || got[0] != 1 {
		t.Fatalf("timeline override: %v", got)
	}
	if got := DefaultRecommendations()["timeline"]; len(got) != 3 {
		t.Fatalf("default table mutated: %v", got)
	}
	if !r.Has("opening", 46) || r.Has("opening", 1) {
		t.Fatalf("Has mismatch")
	}
}

func TestWeightTitleConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(w Weight, want string) {
			defer wg.Done()
			if got := w.Title(); got != want {
				errs <- got
			}
		}([]Weight{WeightLight, WeightMedium, WeightHeavy}[i%3], []string{"Light", "Medium", "Heavy"}[i%3])
	}
	wg.Wait()
	close(errs)
	for got := range errs {
		t.Fatalf("unexpected title %q", got)
	}
}
