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
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"storyteller/internal/export"
	"storyteller/internal/script"
	"storyteller/internal/telemetry"
	"storyteller/internal/workflow"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var (
		sequence string
		out      string
		preset   string
		scenes   []string
		guides   bool
	)
	cmd := &cobra.Command{
		Use:       "export pdf|png|html|all <file>",
		Short:     "Export a storyboard of a script",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{export.FormatPDF, export.FormatPNG, export.FormatHTML, "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			format := strings.ToLower(args[0])
			scriptPath := args[1]
			numbers, err := parseIntList(scenes)
			if err != nil {
				return err
			}

			sb, err := loadStoryboard(ctx, scriptPath, sequence)
			if err != nil {
				return err
			}

			opt := export.BatchOptions{
				Preset: export.PresetName(preset),
				Scenes: numbers,
				OutDir: out,
			}
			switch format {
			case "all":
				opt.Formats = []string{export.FormatPDF, export.FormatPNG, export.FormatHTML}
			case export.FormatPDF, export.FormatPNG, export.FormatHTML:
				opt.Formats = []string{format}
			default:
				return fmt.Errorf("unknown export format %q", args[0])
			}
			if cmd.Flags().Changed("guides") {
				opt.IncludeGuides = &guides
			}
			cfg := ctx.configValue()
			if cfg.Media.ImageWidth > 0 && cfg.Media.ImageHeight > 0 {
				opt.CardWidth, opt.CardHeight = cfg.Media.ImageWidth/2, cfg.Media.ImageHeight/2
			}
			if opt.OutDir == "" {
				opt.OutDir = filepath.Join(ctx.outputRoot(), workflow.ExplainerName(scriptPath), "exports")
			}

			res, err := export.Batch(sb, opt)
			for _, f := range res.Files {
				printf(cmd, "Wrote %s\n", f)
			}
			if err != nil {
				return err
			}
			ctx.trackerValue().Event(telemetry.EventExport, map[string]any{
				"format": format, "preset": preset, "scenes": len(sb.Frames), "files": len(res.Files),
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&sequence, "sequence", "", "Layout sequence document; defaults to the sequence stored for the explainer")
	cmd.Flags().StringVar(&out, "out", "", "Output directory")
	cmd.Flags().StringVar(&preset, "preset", string(export.PresetReview), "Preset: web, print or review")
	cmd.Flags().StringSliceVar(&scenes, "scenes", nil, "Only these scenes, e.g. 1,3,5-7")
	cmd.Flags().BoolVar(&guides, "guides", false, "Draw safe-area guides (print preset default)")
	return cmd
}

// loadStoryboard falls back to the workspace sequence of the explainer when no file is given.
func loadStoryboard(ctx *commandContext, scriptPath, sequencePath string) (export.Storyboard, error) {
	if sequencePath != "" {
		return export.Load(scriptPath, sequencePath)
	}
	text, err := script.ReadText(scriptPath)
	if err != nil {
		return export.Storyboard{}, err
	}
	ws, err := ctx.workspace()
	if err != nil {
		return export.Storyboard{}, err
	}
	e, _ := ws.Explainer(workflow.ExplainerName(scriptPath))
	return export.Build(script.Parse(text), script.ExtractNarrations(text), e.Sequence), nil
}
