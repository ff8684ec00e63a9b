/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package workflow

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"unicode/utf8"

	"al.essio.dev/pkg/shellescape"

	"storyteller/internal/script"
)

// PromptsFileName is written by PromptFileProcessor into every scene dir.
const PromptsFileName = "prompts.txt"

// PromptFileProcessor writes the scene's prompts to prompts.txt so an external tool can pick
// them up.
func PromptFileProcessor() Processor {
	return func(_ context.Context, sc script.Scene, outDir string) error {
		var b strings.Builder
		fmt.Fprintf(&b, "scene: %d\ntitle: %s\nduration: %g\n\n", sc.Number, sc.Title, sc.Duration)
		fmt.Fprintf(&b, "[initial]\n%s\n", sc.InitialPrompt)
		if sc.HasFinal() {
			fmt.Fprintf(&b, "\n[final]\n%s\n", sc.FinalPrompt)
		}
		return os.WriteFile(filepath.Join(outDir, PromptsFileName), []byte(b.String()), 0o644)
	}
}

// SceneEnv returns the STY_* variables describing a scene to an external command.
func SceneEnv(sc script.Scene, outDir, outputFile string) []string {
	return []string{
		"STY_SCENE_NUMBER=" + strconv.Itoa(sc.Number),
		"STY_SCENE_TITLE=" + sc.Title,
		"STY_SCENE_DURATION=" + strconv.FormatFloat(sc.Duration, 'g', -1, 64),
		"STY_PROMPT=" + sc.Prompt,
		"STY_INITIAL_PROMPT=" + sc.InitialPrompt,
		"STY_FINAL_PROMPT=" + sc.FinalPrompt,
		"STY_SCENE_DIR=" + outDir,
		"STY_OUTPUT_PATH=" + filepath.Join(outDir, outputFile),
	}
}

// ExpandCommand replaces {scene}, {dir} and {output} in a command template with
// shell-quoted values.
func ExpandCommand(tmpl string, sc script.Scene, outDir, outputFile string) string {
	r := strings.NewReplacer(
		"{scene}", strconv.Itoa(sc.Number),
		"{dir}", shellescape.Quote(outDir),
		"{output}", shellescape.Quote(filepath.Join(outDir, outputFile)),
	)
	return r.Replace(tmpl)
}

// ExecProcessor runs command through the shell once per scene with the scene described in
// its environment. extraEnv is appended, e.g. provider API keys. Output is captured and
// included in the error on failure.
func ExecProcessor(command, outputFile string, extraEnv []string) Processor {
	if outputFile == "" {
		outputFile = DefaultOutputFile
	}
	return func(ctx context.Context, sc script.Scene, outDir string) error {
		line := ExpandCommand(command, sc, outDir, outputFile)
		var cmd *exec.Cmd
		if runtime.GOOS == "windows" {
			cmd = exec.CommandContext(ctx, "cmd", "/C", line)
		} else {
			cmd = exec.CommandContext(ctx, "sh", "-c", line)
		}
		cmd.Dir = outDir
		cmd.Env = append(append(os.Environ(), SceneEnv(sc, outDir, outputFile)...), extraEnv...)
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out
		if err := cmd.Run(); err != nil {
			tail := outputTail(strings.TrimSpace(out.String()), 512)
			if tail == "" {
				return fmt.Errorf("exec %s: %w", shellescape.Quote(line), err)
			}
			return fmt.Errorf("exec %s: %w: %s", shellescape.Quote(line), err, tail)
		}
		return nil
	}
}

// outputTail returns at most the last n bytes of s, starting on a rune boundary.
func outputTail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	i := len(s) - n
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return s[i:]
}
