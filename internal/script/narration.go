/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxNarrationScene is the highest scene number AllNarrations returns; the target format
// has exactly twelve scenes numbered from zero.
const MaxNarrationScene = 11

var reNarration = regexp.MustCompile(`Narration:\s*"([^"]+)"`)

// ExtractNarrations returns the narration of every scene heading that has one, in
// source order. Headings without narration are skipped.
func ExtractNarrations(text string) []Narration {
	var out []Narration
	for _, h := range sceneHeadings(text) {
		t, ok := narrationText(h.body)
		if !ok {
			continue
		}
		out = append(out, Narration{
			SceneNumber: h.number,
			Title:       h.title,
			Duration:    h.descriptor,
			Text:        t,
		})
	}
	return out
}

// NarrationFor returns the narration of the first heading numbered n. A heading without
// narration yields "" and no error; a missing heading yields ErrSceneNotFound.
func NarrationFor(text string, n int) (string, error) {
	for _, h := range sceneHeadings(text) {
		if h.number != n {
			continue
		}
		t, _ := narrationText(h.body)
		return t, nil
	}
	return "", fmt.Errorf("%w: scene %d", ErrSceneNotFound, n)
}

// AllNarrations returns narrations for scenes 0..MaxNarrationScene, first occurrence
// per scene number.
func AllNarrations(text string) []Narration {
	seen := make(map[int]bool)
	out := []Narration{}
	for _, n := range ExtractNarrations(text) {
		if n.SceneNumber < 0 || n.SceneNumber > MaxNarrationScene || seen[n.SceneNumber] {
			continue
		}
		seen[n.SceneNumber] = true
		out = append(out, n)
	}
	return out
}

func narrationText(body string) (string, bool) {
	m := reNarration.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}
