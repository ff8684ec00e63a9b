/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func sampleScript(scenes int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Sample Explainer: Test - %d SCENES\n\nTotal Duration: 72 seconds\nFormat: 9:16\n\n", scenes)
	for i := 0; i < scenes; i++ {
		fmt.Fprintf(&b, "## SCENE %d: Title %d (6 seconds)\n\n", i, i)
		fmt.Fprintf(&b, "Narration: \"Narration for scene %d.\"\n\n", i)
		b.WriteString("Image Generation Prompts (2-Step Workflow):\n")
		fmt.Fprintf(&b, "Initial: Scene %d base image | Iteration 1: add detail\n", i)
		b.WriteString("Final Prompt (after review):\n\"[To be determined after initial render]\"\n\n")
		b.WriteString("Animation Prompt: slow zoom\n\n")
	}
	return b.String()
}

func TestParseSampleDocument(t *testing.T) {
	doc := Parse(sampleScript(12))
	if doc.Title != "Sample Explainer: Test" {
		t.Fatalf("title: got %q", doc.Title)
	}
	if doc.TotalDuration != 72 {
		t.Fatalf("total duration: got %v", doc.TotalDuration)
	}
	if doc.Format != "9:16" {
		t.Fatalf("format: got %q", doc.Format)
	}
	if len(doc.Scenes) != 12 {
		t.Fatalf("expected 12 scenes, got %d", len(doc.Scenes))
	}
	for i, s := range doc.Scenes {
		if s.Number != i {
			t.Fatalf("scene %d numbered %d", i, s.Number)
		}
		if s.Title != fmt.Sprintf("Title %d", i) {
			t.Fatalf("scene %d title %q", i, s.Title)
		}
		if s.Duration != 6 {
			t.Fatalf("scene %d duration %v", i, s.Duration)
		}
		if want := fmt.Sprintf("Scene %d base image", i); s.InitialPrompt != want {
			t.Fatalf("scene %d initial %q want %q", i, s.InitialPrompt, want)
		}
		if s.FinalPrompt != "" || s.HasFinal() {
			t.Fatalf("scene %d: placeholder leaked into final prompt: %q", i, s.FinalPrompt)
		}
	}
}

func TestParseDefaults(t *testing.T) {
	doc := Parse("no headings here\n")
	if doc.Title != "Unknown" || doc.TotalDuration != 72 {
		t.Fatalf("defaults not applied: %+v", doc)
	}
	if doc.Scenes == nil || len(doc.Scenes) != 0 {
		t.Fatalf("expected empty non-nil scenes, got %#v", doc.Scenes)
	}
}

func TestParseInitialPrefix(t *testing.T) {
	text := "## SCENE 1: Ball (4.5 seconds)\n" +
		"Image Generation Prompts (2-Step Workflow):\n" +
		"Initial: A red ball on white background | Iteration 1: add shadow\n" +
		"Animation Prompt: bounce\n"
	doc := Parse(text)
	if len(doc.Scenes) != 1 {
		t.Fatalf("expected 1 scene, got %d", len(doc.Scenes))
	}
	s := doc.Scenes[0]
	if s.InitialPrompt != "A red ball on white background" {
		t.Fatalf("initial: got %q", s.InitialPrompt)
	}
	if s.Duration != 4.5 {
		t.Fatalf("duration: got %v", s.Duration)
	}
	if !strings.HasPrefix(s.Prompt, "Initial:") {
		t.Fatalf("raw prompt should be trimmed block, got %q", s.Prompt)
	}
}

func TestParseLegacyIterativeBlock(t *testing.T) {
	text := "## **SCENE 2: Legacy (about six)\n" +
		"Nano Banana Iterative Prompt:\n" +
		"  \"Initial: A blue cube | Iteration 1: rotate it\"\n\n" +
		"Animation Prompt: spin\n"
	doc := Parse(text)
	if len(doc.Scenes) != 1 {
		t.Fatalf("expected 1 scene, got %d", len(doc.Scenes))
	}
	s := doc.Scenes[0]
	if s.Number != 2 || s.Title != "Legacy" {
		t.Fatalf("unexpected scene header: %+v", s)
	}
	if s.Duration != DefaultSceneDuration {
		t.Fatalf("descriptor without seconds should default, got %v", s.Duration)
	}
	if s.InitialPrompt != "A blue cube" {
		t.Fatalf("initial: got %q", s.InitialPrompt)
	}
}

func TestParseLegacyInitialAndFinal(t *testing.T) {
	text := "## SCENE 3: Old (6 seconds)\n" +
		"Image Generation Prompts (2-Step Workflow):\n" +
		"Initial Prompt:\n\"A quiet harbor at dawn\"\n" +
		"Final Prompt (refined):\n\"A quiet harbor at dawn with gulls\"\n" +
		"Animation Prompt: pan\n"
	s := Parse(text).Scenes[0]
	if s.InitialPrompt != "A quiet harbor at dawn" {
		t.Fatalf("initial: got %q", s.InitialPrompt)
	}
	if s.FinalPrompt != "A quiet harbor at dawn with gulls" {
		t.Fatalf("final: got %q", s.FinalPrompt)
	}
}

func TestParseDropsScenesWithoutPrompt(t *testing.T) {
	text := "## SCENE 0: Has prompt (6 seconds)\n" +
		"Image Generation Prompts (2-Step Workflow):\nInitial: one | x\nAnimation Prompt: a\n" +
		"## SCENE 1: No prompt (6 seconds)\n" +
		"Narration: \"only words\"\n" +
		"## SCENE 2: Has prompt too (6 seconds)\n" +
		"Image Generation Prompts (2-Step Workflow):\nInitial: two | x\nAnimation Prompt: b\n"
	doc := Parse(text)
	if len(doc.Scenes) != 2 {
		t.Fatalf("expected 2 scenes, got %d", len(doc.Scenes))
	}
	if doc.Scenes[0].Number != 0 || doc.Scenes[1].Number != 2 {
		t.Fatalf("unexpected scene numbers: %d, %d", doc.Scenes[0].Number, doc.Scenes[1].Number)
	}
}

func TestParseScopesBodyToScene(t *testing.T) {
	// scene 0 has an Animation Prompt label only in scene 1's body
	text := "## SCENE 0: Leaky (6 seconds)\n" +
		"Image Generation Prompts (2-Step Workflow):\nInitial: zero | x\n" +
		"## SCENE 1: Next (6 seconds)\n" +
		"Image Generation Prompts (2-Step Workflow):\nInitial: one | x\nAnimation Prompt: b\n"
	doc := Parse(text)
	if len(doc.Scenes) != 1 || doc.Scenes[0].Number != 1 {
		t.Fatalf("scene 0 must not borrow scene 1's body: %+v", doc.Scenes)
	}
	if doc.Scenes[0].InitialPrompt != "one" {
		t.Fatalf("initial: got %q", doc.Scenes[0].InitialPrompt)
	}
}

func TestParseFileMissing(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "missing.txt"))
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist in chain, got %v", err)
	}
}

func TestParseFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "explainer.txt")
	if err := os.WriteFile(p, []byte(sampleScript(3)), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	doc, err := ParseFile(p)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(doc.Scenes) != 3 {
		t.Fatalf("expected 3 scenes, got %d", len(doc.Scenes))
	}
	if _, ok := doc.SceneByNumber(2); !ok {
		t.Fatalf("scene 2 not found")
	}
	if _, ok := doc.SceneByNumber(9); ok {
		t.Fatalf("scene 9 should not exist")
	}
}

func TestPromptExtractorOrder(t *testing.T) {
	body := "Image Generation Prompts (2-Step Workflow):\nInitial: current | x\nAnimation Prompt: z\n"
	p, ok := extractPrompt(body)
	if !ok || !strings.HasPrefix(p, "Initial: current") {
		t.Fatalf("unexpected extraction: %q %v", p, ok)
	}
	if _, ok := extractPrompt("Animation Prompt: only"); ok {
		t.Fatalf("expected no prompt")
	}
}
