/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders a parsed script, its narration and its layout sequence as a
// storyboard: a PDF, one PNG card per scene, or an HTML page.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"storyteller/internal/layout"
	"storyteller/internal/script"
)

// Frame is one storyboard entry.
type Frame struct {
	Scene     script.Scene
	Narration string
	// Pattern is nil when no sequence entry covers the scene.
	Pattern *layout.SequenceEntry
}

// Storyboard is the export model shared by all formats.
type Storyboard struct {
	Title         string
	Format        string
	TotalDuration float64
	Frames        []Frame
}

// Build combines a document with its narrations and an optional layout sequence.
func Build(doc script.Document, narrations []script.Narration, seq []layout.SequenceEntry) Storyboard {
	narr := make(map[int]string, len(narrations))
	for _, n := range narrations {
		if _, ok := narr[n.SceneNumber]; !ok {
			narr[n.SceneNumber] = n.Text
		}
	}
	patterns := make(map[int]layout.SequenceEntry, len(seq))
	for _, e := range seq {
		patterns[e.SceneNumber] = e
	}
	sb := Storyboard{
		Title:         doc.Title,
		Format:        doc.Format,
		TotalDuration: doc.TotalDuration,
		Frames:        make([]Frame, 0, len(doc.Scenes)),
	}
	for _, s := range doc.Scenes {
		f := Frame{Scene: s, Narration: narr[s.Number]}
		if e, ok := patterns[s.Number]; ok {
			f.Pattern = &e
		}
		sb.Frames = append(sb.Frames, f)
	}
	return sb
}

// Load reads a script and, when sequencePath is set, its saved layout sequence.
func Load(scriptPath, sequencePath string) (Storyboard, error) {
	text, err := script.ReadText(scriptPath)
	if err != nil {
		return Storyboard{}, err
	}
	var seq []layout.SequenceEntry
	if sequencePath != "" {
		if seq, err = layout.LoadSequence(sequencePath); err != nil {
			return Storyboard{}, err
		}
	}
	return Build(script.Parse(text), script.ExtractNarrations(text), seq), nil
}

// PatternLabel renders the pattern of a frame as "#46 Circular Orbit (Clockwise), circular/medium".
func (f Frame) PatternLabel() string {
	if f.Pattern == nil {
		return ""
	}
	return fmt.Sprintf("#%d %s, %s/%s", f.Pattern.PatternID, f.Pattern.Name, f.Pattern.Category, f.Pattern.Weight)
}

// Heading is "Scene N: Title (Ds)".
func (f Frame) Heading() string {
	h := fmt.Sprintf("Scene %d", f.Scene.Number)
	if t := strings.TrimSpace(f.Scene.Title); t != "" {
		h += ": " + t
	}
	return fmt.Sprintf("%s (%gs)", h, f.Scene.Duration)
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	return nil
}

func ensureParent(path string) error { return ensureDir(filepath.Dir(path)) }
