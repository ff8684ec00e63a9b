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
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"storyteller/internal/textlayout"
)

// PNGOptions controls scene card export. Sizes are pixels; zero values fall back to a
// 540x960 card with a 32px margin.
type PNGOptions struct {
	Width         int
	Height        int
	Margin        int
	IncludeGuides bool
	Scenes        []int
	// Face draws the card text; nil uses the built-in bitmap face.
	Face font.Face
}

var (
	cardBackground = color.RGBA{255, 255, 255, 255}
	cardText       = color.RGBA{20, 20, 20, 255}
	cardMuted      = color.RGBA{110, 110, 110, 255}
	cardFrame      = color.RGBA{0, 0, 0, 255}
	cardGuide      = color.RGBA{255, 0, 0, 255}
)

func (o PNGOptions) withDefaults() PNGOptions {
	if o.Width <= 0 || o.Height <= 0 {
		o.Width, o.Height = 540, 960
	}
	if o.Margin <= 0 {
		o.Margin = 32
	}
	if o.Face == nil {
		o.Face = textlayout.DefaultFace
	}
	return o
}

// CardFileName is scene_NN.png.
func CardFileName(n int) string { return fmt.Sprintf("scene_%02d.png", n) }

// SceneCardsPNG writes one card per scene into outDir and returns the written paths.
func SceneCardsPNG(sb Storyboard, outDir string, opt PNGOptions) ([]string, error) {
	opt = opt.withDefaults()
	if err := ensureDir(outDir); err != nil {
		return nil, err
	}
	var paths []string
	for _, f := range selectFrames(sb.Frames, opt.Scenes) {
		img := RenderCard(f, opt)
		name := filepath.Join(outDir, CardFileName(f.Scene.Number))
		if err := writePNG(name, img); err != nil {
			return paths, err
		}
		paths = append(paths, name)
	}
	return paths, nil
}

// RenderCard draws a single scene card.
func RenderCard(f Frame, opt PNGOptions) *image.RGBA {
	opt = opt.withDefaults()
	img := image.NewRGBA(image.Rect(0, 0, opt.Width, opt.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: cardBackground}, image.Point{}, draw.Src)
	if opt.IncludeGuides {
		strokeRect(img, opt.Margin/2, opt.Margin/2, opt.Width-1-opt.Margin/2, opt.Height-1-opt.Margin/2, cardGuide)
	}

	m := textlayout.MetricsOf(opt.Face)
	maxW := opt.Width - 2*opt.Margin
	bottom := opt.Height - opt.Margin
	y := opt.Margin + m.Ascent

	write := func(text string, col color.RGBA) {
		for _, line := range textlayout.Wrap(opt.Face, text, maxW) {
			if y > bottom {
				return
			}
			drawString(img, opt.Face, opt.Margin, y, line, col)
			y += m.LineHeight
		}
	}

	write(f.Heading(), cardText)
	if label := f.PatternLabel(); label != "" {
		write(label, cardMuted)
	}
	y += m.LineHeight / 2

	// frame placeholder
	boxH := maxW / 2
	if y+boxH < bottom {
		strokeRect(img, opt.Margin, y-m.Ascent, opt.Margin+maxW-1, y-m.Ascent+boxH-1, cardFrame)
		y += boxH + m.LineHeight
	}

	for _, s := range []struct{ label, body string }{
		{"Initial prompt", f.Scene.InitialPrompt},
		{"Final prompt", f.Scene.FinalPrompt},
		{"Narration", f.Narration},
	} {
		if strings.TrimSpace(s.body) == "" {
			continue
		}
		write(s.label+":", cardMuted)
		write(s.body, cardText)
		y += m.LineHeight / 2
	}
	return img
}

func drawString(img *image.RGBA, face font.Face, x, y int, s string, col color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func writePNG(name string, img image.Image) error {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close png: %w", err)
	}
	return nil
}

// strokeRect draws a 1px axis-aligned rectangle border inclusive of endpoints.
func strokeRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, y0, col)
		img.SetRGBA(x, y1, col)
	}
	for y := y0; y <= y1; y++ {
		img.SetRGBA(x0, y, col)
		img.SetRGBA(x1, y, col)
	}
}
