/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package script parses explainer scripts: a title heading, a total duration line and a
// series of "## SCENE n: title (duration)" blocks carrying image prompts and narration.
package script

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
)

const (
	// DefaultTotalDuration is used when the document has no "Total Duration" line.
	DefaultTotalDuration = 72.0
	// DefaultSceneDuration is used when a heading's descriptor carries no seconds value.
	DefaultSceneDuration = 6.0
	// Format is the only output aspect ratio the convention supports.
	Format = "9:16"

	unknownTitle = "Unknown"
)

var (
	// ErrFileNotFound is returned when the script path does not exist.
	ErrFileNotFound = errors.New("script file not found")
	// ErrSceneNotFound is returned when a requested scene number has no heading.
	ErrSceneNotFound = errors.New("scene not found")
)

var (
	reTitle         = regexp.MustCompile(`(?m)^#\s*(.+?)\s*-\s*\d+\s*SCENES?`)
	reTotalDuration = regexp.MustCompile(`Total Duration:\s*(\d+)\s*seconds`)
	reSceneHeading  = regexp.MustCompile(`(?im)##\s*\*?\*?SCENE\s+(\d+):\s*([^(]+)\s*\(([^)]+)\)`)
	reSceneBoundary = regexp.MustCompile(`(?i)\n##\s*\*?\*?SCENE`)
	reFirstNumber   = regexp.MustCompile(`(\d+\.?\d*)`)
)

// heading is one scene heading with the body window that belongs to it.
type heading struct {
	number     int
	title      string
	descriptor string
	body       string
}

// Parse converts script text into a Document. It never fails: missing document-level
// fields fall back to defaults and scenes without a prompt block are omitted.
func Parse(text string) Document {
	doc := Document{
		Title:         unknownTitle,
		TotalDuration: DefaultTotalDuration,
		Format:        Format,
		Scenes:        []Scene{},
	}
	if m := reTitle.FindStringSubmatch(text); m != nil {
		doc.Title = m[1]
	}
	if m := reTotalDuration.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			doc.TotalDuration = v
		}
	}
	for _, h := range sceneHeadings(text) {
		prompt, ok := extractPrompt(h.body)
		if !ok {
			continue
		}
		doc.Scenes = append(doc.Scenes, newScene(h.number, h.title, prompt, parseDuration(h.descriptor)))
	}
	return doc
}

// ParseFile reads and parses the script at path.
func ParseFile(path string) (Document, error) {
	text, err := ReadText(path)
	if err != nil {
		return Document{}, err
	}
	return Parse(text), nil
}

// ReadText reads the raw script text, mapping a missing file to ErrFileNotFound.
func ReadText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %w", ErrFileNotFound, err)
		}
		return "", fmt.Errorf("read script: %w", err)
	}
	return string(b), nil
}

// sceneHeadings finds every scene heading and slices the text that follows it,
// up to the next scene heading or the end of the document.
func sceneHeadings(text string) []heading {
	matches := reSceneHeading.FindAllStringSubmatchIndex(text, -1)
	out := make([]heading, 0, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			continue
		}
		start := m[1]
		end := len(text)
		if loc := reSceneBoundary.FindStringIndex(text[start:]); loc != nil {
			end = start + loc[0]
		}
		out = append(out, heading{
			number:     n,
			title:      strings.TrimSpace(text[m[4]:m[5]]),
			descriptor: strings.TrimSpace(text[m[6]:m[7]]),
			body:       text[start:end],
		})
	}
	return out
}

// parseDuration reads "<n> seconds" descriptors; anything else is the default.
func parseDuration(descriptor string) float64 {
	if !strings.Contains(descriptor, "second") {
		return DefaultSceneDuration
	}
	m := reFirstNumber.FindString(descriptor)
	if m == "" {
		return DefaultSceneDuration
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || v <= 0 {
		return DefaultSceneDuration
	}
	return v
}
