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
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// PDFOptions controls storyboard PDF export. Units are points.
// A zero page size means 405x720, a 9:16 page.
type PDFOptions struct {
	PageWidth     float64
	PageHeight    float64
	Margin        float64
	IncludeGuides bool
	// Scenes limits export to these scene numbers; empty exports all.
	Scenes []int
}

// RGB is a colour used for guides and frame boxes.
type RGB struct{ R, G, B int }

var (
	guideColor = RGB{255, 0, 0}
	frameColor = RGB{0, 0, 0}
	mutedColor = RGB{90, 90, 90}
)

func (o PDFOptions) withDefaults() PDFOptions {
	if o.PageWidth <= 0 || o.PageHeight <= 0 {
		o.PageWidth, o.PageHeight = 405, 720
	}
	if o.Margin <= 0 {
		o.Margin = 24
	}
	return o
}

// StoryboardPDF writes a cover page and one page per scene to outPath.
func StoryboardPDF(sb Storyboard, outPath string, opt PDFOptions) error {
	opt = opt.withDefaults()
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: opt.PageWidth, Ht: opt.PageHeight},
	})
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(sb.Title+" Storyboard"), false)
	pdf.SetAuthor("storyteller", false)
	pdf.SetMargins(opt.Margin, opt.Margin, opt.Margin)
	pdf.SetAutoPageBreak(true, opt.Margin)
	contentW := opt.PageWidth - 2*opt.Margin

	// cover
	pdf.AddPage()
	drawGuides(pdf, opt)
	pdf.SetY(opt.PageHeight / 3)
	pdf.SetFont("Helvetica", "B", 22)
	pdf.MultiCell(contentW, 26, tr(sb.Title), "", "C", false)
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 12)
	setText(pdf, mutedColor)
	pdf.MultiCell(contentW, 16, tr(fmt.Sprintf("%d scenes, %gs total, %s", len(sb.Frames), sb.TotalDuration, sb.Format)), "", "C", false)
	setText(pdf, frameColor)

	for _, f := range selectFrames(sb.Frames, opt.Scenes) {
		pdf.AddPage()
		drawGuides(pdf, opt)

		pdf.SetFont("Helvetica", "B", 15)
		pdf.MultiCell(contentW, 18, tr(f.Heading()), "", "L", false)
		if label := f.PatternLabel(); label != "" {
			pdf.SetFont("Helvetica", "I", 10)
			setText(pdf, mutedColor)
			pdf.MultiCell(contentW, 13, tr("Layout "+label), "", "L", false)
			setText(pdf, frameColor)
		}
		pdf.Ln(6)

		// frame placeholder sized to the page aspect
		boxH := contentW * 0.5
		y := pdf.GetY()
		setDraw(pdf, frameColor)
		pdf.SetLineWidth(0.8)
		pdf.Rect(opt.Margin, y, contentW, boxH, "D")
		pdf.SetY(y + boxH + 8)

		section(pdf, tr, contentW, "Initial prompt", f.Scene.InitialPrompt)
		if f.Scene.HasFinal() {
			section(pdf, tr, contentW, "Final prompt", f.Scene.FinalPrompt)
		}
		if f.Scene.InitialPrompt == "" && f.Scene.Prompt != "" {
			section(pdf, tr, contentW, "Prompt", f.Scene.Prompt)
		}
		section(pdf, tr, contentW, "Narration", f.Narration)
	}

	if err := ensureParent(outPath); err != nil {
		return err
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func section(pdf *gofpdf.Fpdf, tr func(string) string, w float64, label, body string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.MultiCell(w, 13, tr(label), "", "L", false)
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(w, 13, tr(body), "", "L", false)
	pdf.Ln(6)
}

func drawGuides(pdf *gofpdf.Fpdf, opt PDFOptions) {
	if !opt.IncludeGuides {
		return
	}
	setDraw(pdf, guideColor)
	pdf.SetLineWidth(0.2)
	pdf.Rect(opt.Margin, opt.Margin, opt.PageWidth-2*opt.Margin, opt.PageHeight-2*opt.Margin, "D")
}

func selectFrames(frames []Frame, scenes []int) []Frame {
	if len(scenes) == 0 {
		return frames
	}
	want := make(map[int]bool, len(scenes))
	for _, n := range scenes {
		want[n] = true
	}
	out := make([]Frame, 0, len(scenes))
	for _, f := range frames {
		if want[f.Scene.Number] {
			out = append(out, f)
		}
	}
	return out
}

func setDraw(pdf *gofpdf.Fpdf, c RGB) { pdf.SetDrawColor(c.R, c.G, c.B) }

func setText(pdf *gofpdf.Fpdf, c RGB) { pdf.SetTextColor(c.R, c.G, c.B) }
