/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

// Line breaking for text drawn onto raster cards. Measurement goes through font.Face so
// the same code serves the built-in bitmap face and any opentype face.

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// DefaultFace is a deterministic 7x13 bitmap face.
var DefaultFace font.Face = basicfont.Face7x13

// Metrics are pixel metrics of a face.
type Metrics struct {
	Ascent, Descent, LineHeight int
}

// MetricsOf returns the rounded metrics of face.
func MetricsOf(face font.Face) Metrics {
	if face == nil {
		face = DefaultFace
	}
	m := face.Metrics()
	return Metrics{Ascent: m.Ascent.Round(), Descent: m.Descent.Round(), LineHeight: m.Height.Round()}
}

// Measure returns the advance width of s in pixels.
func Measure(face font.Face, s string) int {
	if face == nil {
		face = DefaultFace
	}
	return font.MeasureString(face, s).Round()
}

// Wrap breaks text into lines no wider than maxWidth pixels. Newlines start a new line and
// words wider than maxWidth are split by rune. maxWidth <= 0 disables wrapping.
func Wrap(face font.Face, text string, maxWidth int) []string {
	if face == nil {
		face = DefaultFace
	}
	var lines []string
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		if maxWidth <= 0 {
			lines = append(lines, strings.Join(words, " "))
			continue
		}
		cur := ""
		for _, w := range words {
			cand := w
			if cur != "" {
				cand = cur + " " + w
			}
			if Measure(face, cand) <= maxWidth {
				cur = cand
				continue
			}
			if cur != "" {
				lines = append(lines, cur)
			}
			cur = w
			for Measure(face, cur) > maxWidth && utf8.RuneCountInString(cur) > 1 {
				head, rest := splitToWidth(face, cur, maxWidth)
				lines = append(lines, head)
				cur = rest
			}
		}
		lines = append(lines, cur)
	}
	return lines
}

// splitToWidth returns the longest prefix (at least one rune) fitting maxWidth and the rest.
func splitToWidth(face font.Face, s string, maxWidth int) (string, string) {
	end := 0
	for i, r := range s {
		next := i + utf8.RuneLen(r)
		if end > 0 && Measure(face, s[:next]) > maxWidth {
			break
		}
		end = next
	}
	return s[:end], s[end:]
}

// Truncate keeps at most maxLines lines, marking a cut with "..." on the last kept line.
func Truncate(lines []string, maxLines int) []string {
	if maxLines <= 0 || len(lines) <= maxLines {
		return lines
	}
	out := append([]string(nil), lines[:maxLines]...)
	out[maxLines-1] = strings.TrimRight(out[maxLines-1], " ") + "..."
	return out
}
