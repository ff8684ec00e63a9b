/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layout

import "sort"

// Recommendations maps a scene type label to its curated pattern ids.
type Recommendations map[string][]int

var defaultRecommendations = Recommendations{
	"opening":    {46, 50, 51, 60, 89, 95},
	"closing":    {46, 50, 51, 60, 89, 95, 100},
	"problem":    {1, 2, 46, 76, 77, 83},
	"discovery":  {31, 33, 50, 56, 92, 96},
	"solution":   {17, 61, 70, 89, 90, 93},
	"impact":     {42, 50, 86, 87, 91, 100},
	"comparison": {76, 77, 78, 79, 80, 81, 82, 83, 84, 85},
	"timeline":   {86, 87, 88},
	"network":    {89, 90, 91, 95},
}

// DefaultRecommendations returns a copy of the built-in table.
func DefaultRecommendations() Recommendations {
	return defaultRecommendations.Merge(nil)
}

// Merge returns a copy of r with entries from o replacing or adding scene types.
// Ids outside the catalog are dropped.
func (r Recommendations) Merge(o Recommendations) Recommendations {
	out := make(Recommendations, len(r)+len(o))
	for k, v := range r {
		out[k] = append([]int(nil), v...)
	}
	for k, v := range o {
		ids := make([]int, 0, len(v))
		for _, id := range v {
			if _, ok := patternNames[id]; ok {
				ids = append(ids, id)
			}
		}
		out[k] = ids
	}
	return out
}

// SceneTypes returns the known scene type labels, sorted.
func (r Recommendations) SceneTypes() []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Has reports whether id is recommended for sceneType.
func (r Recommendations) Has(sceneType string, id int) bool {
	for _, v := range r[sceneType] {
		if v == id {
			return true
		}
	}
	return false
}
