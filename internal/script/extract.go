/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"regexp"
	"strings"
)

// PromptExtractor pulls the raw prompt block out of a scene body.
type PromptExtractor func(body string) (string, bool)

// PromptExtractors are tried in order; the first match wins. The two-step block is
// the current convention, the quoted iterative block is the legacy one.
var PromptExtractors = []PromptExtractor{
	regexpExtractor(regexp.MustCompile(`(?s)Image Generation Prompts \(2-Step Workflow\):(.*?)Animation Prompt`)),
	regexpExtractor(regexp.MustCompile(`(?s)Nano Banana Iterative Prompt:\s*\n\s*"(.+)"\s*\n+Animation Prompt`)),
}

var (
	reInlineInitial = regexp.MustCompile(`Initial:\s*([^|]+)`)
	reIterative     = regexp.MustCompile(`Nano Banana Iterative Prompt:\s*\n\s*"([^"]+)"`)
	reInitialPrompt = regexp.MustCompile(`Initial Prompt:\s*\n\s*"([^"]+)"`)
	reFinalPrompt   = regexp.MustCompile(`(?s)Final Prompt.*?:\s*\n\s*"([^"]+)"`)
)

const finalPlaceholder = "[To be determined"

func regexpExtractor(re *regexp.Regexp) PromptExtractor {
	return func(body string) (string, bool) {
		m := re.FindStringSubmatch(body)
		if m == nil {
			return "", false
		}
		return strings.TrimSpace(m[1]), true
	}
}

func extractPrompt(body string) (string, bool) {
	for _, ex := range PromptExtractors {
		if p, ok := ex(body); ok {
			return p, true
		}
	}
	return "", false
}

// newScene derives the initial and final sub-prompts from the raw block.
func newScene(number int, title, prompt string, duration float64) Scene {
	return Scene{
		Number:        number,
		Title:         title,
		Duration:      duration,
		Prompt:        prompt,
		InitialPrompt: initialPrompt(prompt),
		FinalPrompt:   finalPrompt(prompt),
	}
}

func initialPrompt(prompt string) string {
	if strings.HasPrefix(prompt, "Initial:") {
		return inlineInitial(prompt)
	}
	if m := reIterative.FindStringSubmatch(prompt); m != nil {
		if p := inlineInitial(m[1]); p != "" {
			return p
		}
	}
	if m := reInitialPrompt.FindStringSubmatch(prompt); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// inlineInitial reads the "Initial: <prompt> | Iteration 1: ..." form.
func inlineInitial(s string) string {
	m := reInlineInitial.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// finalPrompt returns the quoted refinement prompt unless it is still a placeholder.
func finalPrompt(prompt string) string {
	m := reFinalPrompt.FindStringSubmatch(prompt)
	if m == nil {
		return ""
	}
	p := strings.TrimSpace(m[1])
	if strings.HasPrefix(p, finalPlaceholder) {
		return ""
	}
	return p
}
