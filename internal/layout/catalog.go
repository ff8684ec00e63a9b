/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package layout holds the fixed catalog of 100 visual layout patterns and a selector
// that proposes non-repeating, category-varied patterns for consecutive scenes.
package layout

import (
	"sort"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Category groups pattern ids into contiguous ranges.
type Category string

const (
	CategoryAsymmetric Category = "asymmetric"
	CategorySplit      Category = "split"
	CategoryDiagonal   Category = "diagonal"
	CategoryCircular   Category = "circular"
	CategoryGrid       Category = "grid"
	CategoryComparison Category = "comparison"
	CategorySpecialty  Category = "specialty"
	CategoryUnknown    Category = "unknown"
)

// Weight is the visual density class of a pattern.
type Weight string

const (
	WeightLight  Weight = "light"
	WeightMedium Weight = "medium"
	WeightHeavy  Weight = "heavy"
)

// A cases.Caser keeps state between calls and must not be shared unguarded.
var (
	titleMu    sync.Mutex
	titleCaser = cases.Title(language.English)
)

// Title returns the capitalised weight, e.g. "Heavy".
func (w Weight) Title() string {
	titleMu.Lock()
	defer titleMu.Unlock()
	return titleCaser.String(string(w))
}

// Pattern is one catalog entry.
type Pattern struct {
	ID       int      `json:"pattern_id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Weight   Weight   `json:"weight"`
}

const (
	MinPatternID = 1
	MaxPatternID = 100
	CatalogSize  = MaxPatternID - MinPatternID + 1
)

var patternNames = map[int]string{
	1:   "Right-Heavy Asymmetric",
	2:   "Left-Heavy Asymmetric",
	3:   "Top-Heavy Asymmetric",
	4:   "Bottom-Heavy Asymmetric",
	5:   "Diagonal Heavy (Top-Left to Bottom-Right)",
	6:   "Diagonal Heavy (Top-Right to Bottom-Left)",
	7:   "Corner Focus (Top-Left)",
	8:   "Corner Focus (Bottom-Right)",
	9:   "Z-Pattern Asymmetric",
	10:  "Inverted Z-Pattern",
	11:  "C-Curve Asymmetric",
	12:  "S-Curve Flow",
	13:  "Stair-Step Asymmetric",
	14:  "Cluster & Isolate",
	15:  "Weighted Corners (3:1)",
	16:  "Vertical 50/50",
	17:  "Vertical 30/70",
	18:  "Vertical 70/30",
	19:  "Vertical 20/80",
	20:  "Vertical 60/40",
	21:  "Horizontal 50/50",
	22:  "Horizontal 30/70",
	23:  "Horizontal 70/30",
	24:  "Horizontal 40/60",
	25:  "Triple Vertical Split (33/33/33)",
	26:  "Triple Horizontal Split",
	27:  "Golden Ratio Vertical (62/38)",
	28:  "Golden Ratio Horizontal (62/38)",
	29:  "Uneven Triple Vertical (50/25/25)",
	30:  "Uneven Triple Horizontal (20/60/20)",
	31:  "Diagonal Cascade (Top-Left to Bottom-Right)",
	32:  "Diagonal Cascade (Top-Right to Bottom-Left)",
	33:  "Diagonal Cascade (Bottom-Left to Top-Right)",
	34:  "Diagonal Cascade (Bottom-Right to Top-Left)",
	35:  "Cross-Diagonal (X-Pattern)",
	36:  "Chevron Up",
	37:  "Chevron Down",
	38:  "Lightning Bolt",
	39:  "Waterfall Flow",
	40:  "Ascending Stairs",
	41:  "Wave Pattern",
	42:  "Mountain Peak",
	43:  "Valley Dip",
	44:  "Spiral Diagonal",
	45:  "Ribbon Twist",
	46:  "Circular Orbit (Clockwise)",
	47:  "Circular Orbit (Counter-Clockwise)",
	48:  "Elliptical Orbit",
	49:  "Double Orbit",
	50:  "Radial Expansion (Outward)",
	51:  "Radial Contraction (Inward)",
	52:  "Compass Points (4 Directions)",
	53:  "Compass Points (8 Directions)",
	54:  "Sunburst Radial",
	55:  "Target Circles (Concentric)",
	56:  "Semicircle Arc (Top)",
	57:  "Semicircle Arc (Bottom)",
	58:  "Quarter Circle (Top-Right)",
	59:  "Quarter Circle (Bottom-Left)",
	60:  "Spiral (Inward)",
	61:  "Four-Quadrant (Equal)",
	62:  "Four-Quadrant (Unequal)",
	63:  "Six-Grid (2×3)",
	64:  "Six-Grid (3×2)",
	65:  "Nine-Grid (3×3)",
	66:  "Checkerboard Pattern",
	67:  "Brick Pattern (Offset Grid)",
	68:  "Honeycomb Grid",
	69:  "Plus/Cross Grid",
	70:  "L-Shaped Grid",
	71:  "T-Shaped Grid",
	72:  "U-Shaped Grid",
	73:  "Border Frame Grid",
	74:  "Scattered Grid",
	75:  "Nested Squares",
	76:  "Before/After (Left/Right)",
	77:  "Before/After (Top/Bottom)",
	78:  "Before/After (Diagonal Split)",
	79:  "Problem/Solution Split",
	80:  "Old vs New",
	81:  "Small vs Large (Scale Contrast)",
	82:  "Simple vs Complex",
	83:  "Empty vs Full",
	84:  "Light vs Dark (Value Contrast)",
	85:  "Few vs Many",
	86:  "Timeline Journey (Horizontal)",
	87:  "Timeline Journey (Vertical)",
	88:  "Timeline Journey (Spiral)",
	89:  "Hub-and-Spoke",
	90:  "Tree/Branch Structure",
	91:  "River Delta",
	92:  "Funnel (Wide to Narrow)",
	93:  "Inverse Funnel (Narrow to Wide)",
	94:  "Pinwheel",
	95:  "Overlapping Circles (Venn)",
	96:  "Scattered Constellation",
	97:  "Magazine Layout",
	98:  "Layered Depth (Front-to-Back)",
	99:  "Woven Pattern",
	100: "Floating Islands",
}

var categoryRanges = []struct {
	cat      Category
	from, to int
}{
	{CategoryAsymmetric, 1, 15},
	{CategorySplit, 16, 30},
	{CategoryDiagonal, 31, 45},
	{CategoryCircular, 46, 60},
	{CategoryGrid, 61, 75},
	{CategoryComparison, 76, 85},
	{CategorySpecialty, 86, 100},
}

var weightClasses = map[Weight][]int{
	WeightLight:  {2, 7, 14, 19, 24, 56, 73, 83, 96, 100},
	WeightMedium: {16, 21, 25, 51, 61, 65, 76, 86, 89, 95},
	WeightHeavy:  {1, 9, 48, 49, 62, 66, 74, 90, 97, 99},
}

var weightByID = func() map[int]Weight {
	m := make(map[int]Weight)
	for _, w := range []Weight{WeightLight, WeightMedium, WeightHeavy} {
		for _, id := range weightClasses[w] {
			if _, ok := m[id]; !ok {
				m[id] = w
			}
		}
	}
	return m
}()

// Categories lists the known categories in id order.
func Categories() []Category {
	out := make([]Category, 0, len(categoryRanges))
	for _, r := range categoryRanges {
		out = append(out, r.cat)
	}
	return out
}

// CategoryOf returns the category owning id, or CategoryUnknown outside the catalog.
func CategoryOf(id int) Category {
	for _, r := range categoryRanges {
		if id >= r.from && id <= r.to {
			return r.cat
		}
	}
	return CategoryUnknown
}

// CategoryIDs returns the ids in a category, ascending.
func CategoryIDs(c Category) []int {
	for _, r := range categoryRanges {
		if r.cat != c {
			continue
		}
		ids := make([]int, 0, r.to-r.from+1)
		for id := r.from; id <= r.to; id++ {
			ids = append(ids, id)
		}
		return ids
	}
	return nil
}

// WeightOf returns the weight class of id; unclassified ids are medium.
func WeightOf(id int) Weight {
	if w, ok := weightByID[id]; ok {
		return w
	}
	return WeightMedium
}

// Lookup returns the catalog entry for id.
func Lookup(id int) (Pattern, bool) {
	name, ok := patternNames[id]
	if !ok {
		return Pattern{}, false
	}
	return Pattern{ID: id, Name: name, Category: CategoryOf(id), Weight: WeightOf(id)}, true
}

// Catalog returns every pattern in id order.
func Catalog() []Pattern {
	out := make([]Pattern, 0, CatalogSize)
	for _, id := range allIDs() {
		p, _ := Lookup(id)
		out = append(out, p)
	}
	return out
}

func allIDs() []int {
	ids := make([]int, 0, len(patternNames))
	for id := range patternNames {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
