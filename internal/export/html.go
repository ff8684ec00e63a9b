/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var mdEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`, "[", `\[`, "]", `\]`,
	"<", `\<`, ">", `\>`, "#", `\#`, "|", `\|`,
)

func escapeMD(s string) string { return mdEscaper.Replace(strings.TrimSpace(s)) }

// Markdown renders the storyboard as Markdown: a scene table followed by one section per scene.
func Markdown(sb Storyboard) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", escapeMD(sb.Title))
	fmt.Fprintf(&b, "%d scenes, %gs total, format %s\n\n", len(sb.Frames), sb.TotalDuration, escapeMD(sb.Format))
	if len(sb.Frames) > 0 {
		b.WriteString("| Scene | Title | Duration | Layout |\n|---:|---|---:|---|\n")
		for _, f := range sb.Frames {
			fmt.Fprintf(&b, "| %d | %s | %gs | %s |\n", f.Scene.Number, escapeMD(f.Scene.Title), f.Scene.Duration, escapeMD(f.PatternLabel()))
		}
		b.WriteString("\n")
	}
	for _, f := range sb.Frames {
		fmt.Fprintf(&b, "## %s\n\n", escapeMD(f.Heading()))
		if label := f.PatternLabel(); label != "" {
			fmt.Fprintf(&b, "*Layout %s*\n\n", escapeMD(label))
		}
		quote(&b, "Initial prompt", f.Scene.InitialPrompt)
		if f.Scene.HasFinal() {
			quote(&b, "Final prompt", f.Scene.FinalPrompt)
		}
		if f.Scene.InitialPrompt == "" {
			quote(&b, "Prompt", f.Scene.Prompt)
		}
		quote(&b, "Narration", f.Narration)
	}
	return b.String()
}

func quote(b *strings.Builder, label, body string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	fmt.Fprintf(b, "**%s**\n\n", label)
	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		fmt.Fprintf(b, "> %s\n", escapeMD(line))
	}
	b.WriteString("\n")
}

// StoryboardHTML writes a standalone HTML page for the storyboard to w.
func StoryboardHTML(w io.Writer, sb Storyboard) error {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(sb)), &body); err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	_, err := fmt.Fprintf(w, htmlPage, html.EscapeString(sb.Title), body.String())
	return err
}

// SaveHTML writes the HTML storyboard to path.
func SaveHTML(sb Storyboard, path string) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := StoryboardHTML(&buf, sb); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write html: %w", err)
	}
	return nil
}

const htmlPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; max-width: 46rem; margin: 2rem auto; padding: 0 1rem; color: #222; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: .25rem .5rem; }
blockquote { margin: .5rem 0 1rem; padding-left: .75rem; border-left: 3px solid #ccc; color: #444; }
</style>
</head>
<body>
%s</body>
</html>
`
