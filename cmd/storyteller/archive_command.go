/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"time"

	"github.com/spf13/cobra"

	"storyteller/internal/archive"
	"storyteller/internal/workflow"
)

func newArchiveCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Pack or restore an explainer's output directory",
	}

	var dest string
	pack := &cobra.Command{
		Use:   "pack <explainer>",
		Short: "Zip the output of an explainer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := ctx.outputRoot()
			target := dest
			if target == "" {
				target = archive.DefaultPath(root, args[0], time.Now())
			}
			n, err := archive.Pack(root, args[0], target, workflow.LockFileName)
			if err != nil {
				return err
			}
			printf(cmd, "Archived %d files to %s\n", n, target)
			return nil
		},
	}
	pack.Flags().StringVar(&dest, "dest", "", "Zip file to write (defaults to <workspace>/archive/<explainer>-<time>.zip)")

	restore := &cobra.Command{
		Use:   "restore <zip>",
		Short: "Extract an archive into the workspace, keeping existing files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := archive.Restore(ctx.outputRoot(), args[0])
			if err != nil {
				return err
			}
			printf(cmd, "Restored %d files into %s\n", n, ctx.outputRoot())
			return nil
		},
	}

	cmd.AddCommand(pack, restore)
	return cmd
}
