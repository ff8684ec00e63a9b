/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"storyteller/internal/backend"
	applog "storyteller/internal/log"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var (
		addr  string
		dbURL string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if dbURL == "" {
				dbURL = cfg.Server.DatabaseURL
			}
			l := applog.WithComponent("serve")
			opts := backend.Options{
				Token:           cfg.Server.APIToken,
				Recommendations: cfg.Layout.Recommendations,
				Tracker:         ctx.trackerValue(),
			}
			if dbURL != "" {
				store, err := backend.OpenPG(cmd.Context(), dbURL)
				if err != nil {
					return err
				}
				defer store.Close()
				opts.Store = store
				opts.Index = store.DB
			} else {
				l.Warn("no database configured; sequence storage and search are disabled")
			}
			if opts.Token == "" {
				l.Warn("no API token configured; /api is unauthenticated")
			}
			l.Info("starting", slog.String("addr", addr), slog.Bool("database", dbURL != ""))
			return backend.NewServer(opts).ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to server.addr)")
	cmd.Flags().StringVar(&dbURL, "db", "", "Postgres URL (defaults to server.database_url)")
	return cmd
}
