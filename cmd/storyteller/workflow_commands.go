/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"storyteller/internal/config"
	"storyteller/internal/script"
	"storyteller/internal/storage"
	"storyteller/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		scenes          []string
		noSkip          bool
		execCmd         string
		out             string
		yes             bool
		continueOnError bool
		asJSON          bool
	)
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Process the scenes of a script",
		Long: "Runs each selected scene through a processor. Without --exec the scene prompts are\n" +
			"written to " + workflow.PromptsFileName + "; with --exec the command runs once per scene in the\n" +
			"scene directory with STY_* variables, {scene}, {dir} and {output} expanded.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			numbers, err := parseIntList(scenes)
			if err != nil {
				return err
			}
			scriptPath, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if out != "" {
				*ctx.workspaceFlag = out
			}
			ws, err := ctx.workspace()
			if err != nil {
				return err
			}

			process := workflow.PromptFileProcessor()
			if execCmd != "" {
				process = workflow.ExecProcessor(execCmd, cfg.General.OutputFile, processorEnv(cfg))
			}

			opts := workflow.Options{
				ScriptPath:      scriptPath,
				Scenes:          numbers,
				Overwrite:       noSkip,
				OutputRoot:      ws.Root,
				OutputFile:      cfg.General.OutputFile,
				ContinueOnError: continueOnError || yes,
				Recorder:        ws,
				Tracker:         ctx.trackerValue(),
			}
			if !yes {
				opts.Confirm = confirmPrompt(cmd.InOrStdin(), cmd.OutOrStdout())
			}
			if !asJSON {
				opts.Progress = func(ev workflow.ProgressEvent) {
					line := fmt.Sprintf("[%d/%d] scene %d %s: %s", ev.Index, ev.Total, ev.Scene.Number, ev.Scene.Title, ev.State)
					if ev.Err != nil {
						line += " (" + ev.Err.Error() + ")"
					}
					printf(cmd, "%s\n", line)
				}
			}

			stats, err := workflow.Run(cmd.Context(), opts, process)
			if asJSON {
				if jerr := writeJSON(cmd, stats); jerr != nil {
					return jerr
				}
			} else if stats.Total > 0 {
				printf(cmd, "%s: %d completed, %d skipped, %d failed of %d in %s\n",
					stats.Title, stats.Completed, stats.Skipped, stats.Failed, stats.Total, stats.Elapsed.Round(time.Millisecond))
			} else if err == nil {
				printf(cmd, "No scenes to process\n")
			}
			if err != nil {
				return err
			}
			if stats.Failed > 0 {
				return fmt.Errorf("%d of %d scenes failed", stats.Failed, stats.Total)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&scenes, "scenes", nil, "Scene numbers to process, e.g. 1,3,5-7")
	cmd.Flags().BoolVar(&noSkip, "no-skip", false, "Reprocess scenes whose output already exists")
	cmd.Flags().StringVar(&execCmd, "exec", "", "Shell command run per scene")
	cmd.Flags().StringVar(&out, "out", "", "Output root (overrides --workspace)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Continue after failures without asking")
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "Ask whether to continue after a failed scene")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write run statistics as JSON")
	return cmd
}

// processorEnv passes provider keys and the render target to --exec commands.
func processorEnv(cfg config.AppConfig) []string {
	secrets := config.Secrets()
	keys := make([]string, 0, len(secrets))
	for k := range secrets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys)+3)
	for _, k := range keys {
		env = append(env, k+"="+secrets[k])
	}
	env = append(env,
		config.EnvImageWidth+"="+strconv.Itoa(cfg.Media.ImageWidth),
		config.EnvImageHeight+"="+strconv.Itoa(cfg.Media.ImageHeight),
		"STY_DEFAULT_SCENE_DURATION="+strconv.FormatFloat(cfg.Media.SceneDuration, 'f', -1, 64),
	)
	return env
}

func confirmPrompt(in io.Reader, out io.Writer) func(script.Scene, error) bool {
	r := bufio.NewReader(in)
	return func(sc script.Scene, err error) bool {
		fmt.Fprintf(out, "Scene %d failed: %v\nContinue with the remaining scenes? [y/N] ", sc.Number, err)
		line, _ := r.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	}
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var (
		explainer string
		fields    []string
		from, to  int
		limit     int
		offset    int
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over indexed scripts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := storage.NewSearchQuery(strings.Join(args, " "))
			q.Explainer = explainer
			q.Fields = fields
			if cmd.Flags().Changed("from") {
				q.SceneFrom = from
			}
			if cmd.Flags().Changed("to") {
				q.SceneTo = to
			}
			q.Limit = limit
			q.Offset = offset
			res, err := storage.Search(cmd.Context(), ctx.outputRoot(), q)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, res)
			}
			if len(res) == 0 {
				printf(cmd, "No matches\n")
				return nil
			}
			rows := make([][]string, 0, len(res))
			for _, r := range res {
				rows = append(rows, []string{r.Explainer, strconv.Itoa(r.SceneNumber), r.Title, r.Field, r.Snippet})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Explainer", "Scene", "Title", "Field", "Snippet"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
	cmd.Flags().StringVar(&explainer, "explainer", "", "Only this explainer")
	cmd.Flags().StringSliceVar(&fields, "field", nil, "Only these fields (title, prompt, initial_prompt, final_prompt, narration)")
	cmd.Flags().IntVar(&from, "from", 0, "First scene number")
	cmd.Flags().IntVar(&to, "to", 0, "Last scene number")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Results to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write JSON")
	return cmd
}

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var (
		explainer string
		limit     int
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded workflow runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := storage.ListRuns(cmd.Context(), ctx.outputRoot(), explainer, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, runs)
			}
			if len(runs) == 0 {
				printf(cmd, "No runs recorded\n")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					r.ID, r.Explainer, r.StartedAt.Local().Format(time.DateTime), r.Status,
					fmt.Sprintf("%d/%d/%d of %d", r.Completed, r.Skipped, r.Failed, r.Total),
					r.Duration().Round(time.Millisecond).String(),
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"Run", "Explainer", "Started", "Status", "Done/Skip/Fail", "Elapsed"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&explainer, "explainer", "", "Only runs of this explainer")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write JSON")
	return cmd
}

func newReindexCommand(ctx *commandContext) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Check the search index and rebuild it from the manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := ctx.workspace()
			if err != nil {
				return err
			}
			if force {
				if err := storage.RebuildIndex(cmd.Context(), ws.Root, ws.Manifest()); err != nil {
					return err
				}
				printf(cmd, "Index rebuilt\n")
				return nil
			}
			rebuilt, err := storage.DetectAndRebuildIndex(cmd.Context(), ws.Root, ws.Manifest())
			if err != nil {
				return err
			}
			if rebuilt {
				printf(cmd, "Index was stale or corrupt and has been rebuilt\n")
			} else {
				printf(cmd, "Index is healthy\n")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Rebuild even when the index looks healthy")
	return cmd
}
