/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

// Document is a parsed explainer script.
// Scenes keep source order. Scenes whose body carries no recognised prompt block are
// not part of Scenes at all.
type Document struct {
	Title         string  `json:"title"`
	TotalDuration float64 `json:"total_duration"`
	Format        string  `json:"format"`
	Scenes        []Scene `json:"scenes"`
}

// Scene is one time-boxed segment of an explainer.
// Optional prompt fields are empty when the source does not provide them.
type Scene struct {
	Number        int     `json:"scene_number"`
	Title         string  `json:"title"`
	Duration      float64 `json:"duration_seconds"`
	Prompt        string  `json:"raw_prompt_block"`
	InitialPrompt string  `json:"initial_prompt,omitempty"`
	FinalPrompt   string  `json:"final_prompt,omitempty"`
}

// HasFinal reports whether the scene carries a second-stage refinement prompt.
func (s Scene) HasFinal() bool { return s.FinalPrompt != "" }

// Narration is the voice-over text attached to a scene heading.
// Duration is the raw descriptor from the heading, e.g. "6 seconds".
type Narration struct {
	SceneNumber int    `json:"scene_number"`
	Title       string `json:"title"`
	Duration    string `json:"duration"`
	Text        string `json:"narration"`
}

// SceneByNumber returns the first scene with the given number.
func (d Document) SceneByNumber(n int) (Scene, bool) {
	for _, s := range d.Scenes {
		if s.Number == n {
			return s, true
		}
	}
	return Scene{}, false
}
