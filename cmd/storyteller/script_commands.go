/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"storyteller/internal/script"
	"storyteller/internal/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Show version",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printf(cmd, "storyteller %s\n", version.String())
			return nil
		},
	}
}

func newParseCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse an explainer script into scenes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := script.ParseFile(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, doc)
			}
			printf(cmd, "%s\n%s, %gs total, %d scenes\n\n", doc.Title, doc.Format, doc.TotalDuration, len(doc.Scenes))
			rows := make([][]string, 0, len(doc.Scenes))
			for _, sc := range doc.Scenes {
				rows = append(rows, []string{
					strconv.Itoa(sc.Number),
					sc.Title,
					fmt.Sprintf("%gs", sc.Duration),
					yesNo(sc.InitialPrompt != ""),
					yesNo(sc.HasFinal()),
					truncate(sc.Prompt, 48),
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"#", "Title", "Duration", "Initial", "Final", "Prompt"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write the parsed document as JSON")
	return cmd
}

func newNarrationCommand() *cobra.Command {
	var (
		scene  int
		all    bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "narration <file>",
		Short: "Extract voice-over narration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := script.ReadText(args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("scene") && !all {
				n, err := script.NarrationFor(text, scene)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, map[string]any{"scene_number": scene, "narration": n})
				}
				printf(cmd, "%s\n", n)
				return nil
			}
			narrations := script.AllNarrations(text)
			if asJSON {
				return writeJSON(cmd, narrations)
			}
			for _, n := range narrations {
				printf(cmd, "Scene %d: %s (%s)\n  %s\n", n.SceneNumber, n.Title, n.Duration, n.Text)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&scene, "scene", 0, "Only the narration of this scene")
	cmd.Flags().BoolVar(&all, "all", false, "All narrations (default when --scene is not set)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write JSON")
	return cmd
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
