/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"storyteller/internal/layout"
	applog "storyteller/internal/log"
	"storyteller/internal/telemetry"
)

// Options configures a Server. Nil Store and Index disable the endpoints that need them.
type Options struct {
	// Token, when set, is required as a bearer token on /api routes.
	Token           string
	Store           SequenceStore
	Index           *sql.DB
	Recommendations layout.Recommendations
	Logger          *slog.Logger
	Tracker         telemetry.Tracker
}

// Server is the HTTP API.
type Server struct {
	router chi.Router
	opts   Options
	log    *slog.Logger
}

// NewServer builds the router.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.WithComponent("backend")
	}
	if opts.Tracker == nil {
		opts.Tracker = telemetry.Nop{}
	}
	s := &Server{opts: opts, log: opts.Logger}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/version", s.handleVersion)

	r.Route("/api", func(r chi.Router) {
		r.Use(AuthMiddleware(s.opts.Token))

		r.Get("/patterns", s.handleListPatterns)
		r.Get("/patterns/{id}", s.handleGetPattern)
		r.Get("/recommendations", s.handleRecommendations)

		r.Post("/parse", s.handleParse)
		r.Post("/narration", s.handleNarration)

		r.Post("/suggest", s.handleSuggest)
		r.Post("/sequences", s.handleGenerateSequence)
		r.Get("/sequences", s.handleListSequences)
		r.Get("/sequences/{id}", s.handleGetSequence)

		r.Post("/scripts/{explainer}", s.handleIndexScript)
		r.Get("/search", s.handleSearch)
	})

	s.router = r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", slog.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(sctx)
	}
}
