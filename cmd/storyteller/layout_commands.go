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
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"storyteller/internal/backend"
	"storyteller/internal/layout"
	"storyteller/internal/telemetry"
)

func newPatternsCommand() *cobra.Command {
	var (
		category string
		weight   string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "List the layout pattern catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var out []layout.Pattern
			for _, p := range layout.Catalog() {
				if category != "" && !strings.EqualFold(string(p.Category), category) {
					continue
				}
				if weight != "" && !strings.EqualFold(string(p.Weight), weight) {
					continue
				}
				out = append(out, p)
			}
			if asJSON {
				return writeJSON(cmd, out)
			}
			title := cases.Title(language.English)
			rows := make([][]string, 0, len(out))
			for _, p := range out {
				rows = append(rows, []string{strconv.Itoa(p.ID), p.Name, title.String(string(p.Category)), p.Weight.Title()})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Category", "Weight"}, rows, []columnAlignment{alignRight}))
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Only patterns of this category")
	cmd.Flags().StringVar(&weight, "weight", "", "Only patterns of this weight (light, medium, heavy)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write JSON")
	return cmd
}

func newSuggestCommand(ctx *commandContext) *cobra.Command {
	var (
		sceneType string
		previous  int
		used      []int
		count     int
		seed      int64
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest layout patterns for the next scene",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sug := ctx.selector(cmd, seed).Suggest(layout.SelectionContext{
				SceneType: sceneType,
				Used:      used,
				Previous:  previous,
			}, count)
			if asJSON {
				return writeJSON(cmd, sug)
			}
			rows := make([][]string, 0, len(sug))
			for _, s := range sug {
				rows = append(rows, []string{strconv.Itoa(s.ID), s.Name, string(s.Category), string(s.Weight), s.Reason})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Category", "Weight", "Reason"}, rows, []columnAlignment{alignRight}))
			return nil
		},
	}
	cmd.Flags().StringVar(&sceneType, "type", "", "Scene type label, e.g. hook or conclusion")
	cmd.Flags().IntVar(&previous, "previous", 0, "Pattern id of the previous scene")
	cmd.Flags().IntSliceVar(&used, "used", nil, "Pattern ids already used")
	cmd.Flags().IntVar(&count, "count", layout.SuggestionsPerStep, "Number of suggestions")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed for reproducible output")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write JSON")
	return cmd
}

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var (
		types     []string
		output    string
		seed      int64
		explainer string
		server    string
		token     string
		save      bool
		title     string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "generate <n>",
		Short: "Generate a sequence of distinct layout patterns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("%w: scene count %q", layout.ErrValidation, args[0])
			}
			var (
				id  string
				seq []layout.SequenceEntry
			)
			if server != "" {
				if token == "" {
					token = ctx.configValue().Server.APIToken
				}
				req := backend.SequenceRequest{Count: n, SceneTypes: types, Title: title, Save: save}
				if cmd.Flags().Changed("seed") {
					req.Seed = &seed
				}
				id, seq, err = backend.NewClient(server, token).GenerateSequence(cmd.Context(), req)
				if err != nil {
					return err
				}
			} else {
				seq, err = ctx.selector(cmd, seed).GenerateSequence(n, types)
				if err != nil {
					return err
				}
				ctx.trackerValue().Event(telemetry.EventSequenceGenerated, map[string]any{
					"scenes": len(seq), "typed": len(types) > 0, "source": "cli",
				})
			}

			if output != "" {
				if err := layout.SaveSequence(output, seq); err != nil {
					return err
				}
			}
			if explainer != "" {
				ws, err := ctx.workspace()
				if err != nil {
					return err
				}
				if err := ws.SetSequence(explainer, seq); err != nil {
					return err
				}
			}

			if asJSON {
				return writeJSON(cmd, backend.SequenceResponse{ID: id, Sequence: seq})
			}
			rows := make([][]string, 0, len(seq))
			for _, e := range seq {
				rows = append(rows, []string{strconv.Itoa(e.SceneNumber), strconv.Itoa(e.PatternID), e.Name, string(e.Category), string(e.Weight)})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Scene", "Pattern", "Name", "Category", "Weight"}, rows, []columnAlignment{alignRight, alignRight}))
			if id != "" {
				printf(cmd, "Saved as %s\n", id)
			}
			if output != "" {
				printf(cmd, "Wrote %s\n", output)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&types, "types", nil, "Scene type per scene, comma separated")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the sequence document to this file")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed for reproducible output")
	cmd.Flags().StringVar(&explainer, "explainer", "", "Attach the sequence to this explainer in the workspace")
	cmd.Flags().StringVar(&server, "server", "", "Generate through the HTTP API at this base URL")
	cmd.Flags().StringVar(&token, "token", "", "API token for --server (defaults to STY_API_TOKEN)")
	cmd.Flags().BoolVar(&save, "save", false, "Ask the server to persist the sequence")
	cmd.Flags().StringVar(&title, "title", "", "Title stored with a saved sequence")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write JSON")
	return cmd
}
