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

	"storyteller/internal/secscan"
)

func newCheckCommand() *cobra.Command {
	var (
		workers int
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "check [dir]",
		Short: "Scan a directory for hard-coded secrets before publishing",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			findings, err := secscan.Scan(cmd.Context(), root, secscan.Options{Workers: workers})
			if err != nil {
				return err
			}
			if asJSON {
				if err := writeJSON(cmd, findings); err != nil {
					return err
				}
			} else if len(findings) > 0 {
				rows := make([][]string, 0, len(findings))
				for _, f := range findings {
					rows = append(rows, []string{f.Path, strconv.Itoa(f.Line), f.Rule, truncate(f.Text, 60)})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"File", "Line", "Rule", "Text"}, rows, []columnAlignment{alignLeft, alignRight}))
			}
			if len(findings) > 0 {
				return fmt.Errorf("%d potential secrets found", len(findings))
			}
			if !asJSON {
				printf(cmd, "No secrets found in %s\n", root)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "Parallel file scanners (default: CPU count)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write findings as JSON")
	return cmd
}
