/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"path/filepath"
	"strings"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb    PresetName = "web"
	PresetPrint  PresetName = "print"
	PresetReview PresetName = "review"
)

// Format names accepted by Batch.
const (
	FormatPDF  = "pdf"
	FormatPNG  = "png"
	FormatHTML = "html"
)

// BatchOptions controls export of one storyboard to several formats.
//
// Layout under OutDir: storyboard.pdf, storyboard.html and cards/scene_NN.png.
type BatchOptions struct {
	Preset        PresetName
	Formats       []string // empty means preset defaults
	Scenes        []int
	IncludeGuides *bool // overrides the preset default when set
	CardWidth     int
	CardHeight    int
	OutDir        string
}

// BatchResult lists the files written by Batch.
type BatchResult struct {
	Files []string
}

// Batch runs the exports selected by the options.
func Batch(sb Storyboard, opt BatchOptions) (BatchResult, error) {
	var res BatchResult
	if len(sb.Frames) == 0 {
		return res, fmt.Errorf("storyboard has no scenes")
	}
	formats := opt.Formats
	if len(formats) == 0 {
		formats = PresetFormats(opt.Preset)
	}
	out := opt.OutDir
	if out == "" {
		out = filepath.Join("exports", string(opt.Preset))
	}
	guides := presetIncludeGuides(opt.Preset)
	if opt.IncludeGuides != nil {
		guides = *opt.IncludeGuides
	}

	for _, f := range formats {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case FormatPDF:
			p := filepath.Join(out, "storyboard.pdf")
			if err := StoryboardPDF(sb, p, PDFOptions{IncludeGuides: guides, Scenes: opt.Scenes}); err != nil {
				return res, fmt.Errorf("pdf: %w", err)
			}
			res.Files = append(res.Files, p)
		case FormatPNG:
			paths, err := SceneCardsPNG(sb, filepath.Join(out, "cards"), PNGOptions{
				Width: opt.CardWidth, Height: opt.CardHeight, IncludeGuides: guides, Scenes: opt.Scenes,
			})
			res.Files = append(res.Files, paths...)
			if err != nil {
				return res, fmt.Errorf("png: %w", err)
			}
		case FormatHTML:
			p := filepath.Join(out, "storyboard.html")
			if err := SaveHTML(sb, p); err != nil {
				return res, fmt.Errorf("html: %w", err)
			}
			res.Files = append(res.Files, p)
		default:
			return res, fmt.Errorf("unknown format: %s", f)
		}
	}
	return res, nil
}

// PresetFormats returns the default formats of a preset.
func PresetFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{FormatHTML, FormatPNG}
	case PresetPrint:
		return []string{FormatPDF}
	case PresetReview:
		return []string{FormatPDF, FormatPNG, FormatHTML}
	default:
		return []string{FormatPDF}
	}
}

func presetIncludeGuides(p PresetName) bool {
	return p == PresetPrint
}
