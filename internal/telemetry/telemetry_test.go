/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	events  [][]byte
	crashes [][]byte
}

func (r *recorder) server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.events = append(r.events, b)
		r.mu.Unlock()
	})
	mux.HandleFunc("/crash", func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.crashes = append(r.crashes, b)
		r.mu.Unlock()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientEventAndCrash(t *testing.T) {
	var rec recorder
	srv := rec.server(t)
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash", Timeout: 2 * time.Second})
	defer c.Close()

	c.Event(EventWorkflowComplete, map[string]any{
		"scenes":  12,
		"elapsed": 1500 * time.Millisecond,
		"prompt":  strings.Repeat("x", 200),
		"nested":  map[string]any{"a": 1},
	})
	c.UploadCrash([]byte("STACKTRACE"))
	c.Flush(context.Background())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.events) != 1 || len(rec.crashes) != 1 {
		t.Fatalf("events=%d crashes=%d", len(rec.events), len(rec.crashes))
	}
	var m map[string]any
	if err := json.Unmarshal(rec.events[0], &m); err != nil {
		t.Fatalf("bad event json: %v", err)
	}
	if m["name"] != EventWorkflowComplete {
		t.Fatalf("event name mismatch: %v", m["name"])
	}
	if m["elapsed"].(float64) != 1500 {
		t.Fatalf("duration not converted to ms: %v", m["elapsed"])
	}
	if len(m["prompt"].(string)) != maxPropString {
		t.Fatalf("long string not truncated")
	}
	if _, ok := m["nested"]; ok {
		t.Fatalf("non-scalar prop leaked")
	}
	if string(rec.crashes[0]) != "STACKTRACE" {
		t.Fatalf("crash body: %q", rec.crashes[0])
	}
}

func TestClientDisabled(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c := New(Config{OptIn: false, EventsURL: srv.URL, CrashURL: srv.URL})
	defer c.Close()
	if c.Enabled() {
		t.Fatalf("opted-out client reports enabled")
	}
	c.Event("x", nil)
	c.UploadCrash([]byte("y"))

	on := New(Config{OptIn: true, EventsURL: srv.URL})
	defer on.Close()
	on.Event("", nil)
	on.Flush(context.Background())
	c.Flush(context.Background())
	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Fatalf("expected no requests, got %d", n)
	}
	var nilClient *Client
	nilClient.Event("x", nil)
	nilClient.UploadCrash(nil)
}

func TestSendErrorsAreDropped(t *testing.T) {
	c := New(Config{OptIn: true, EventsURL: "http://127.0.0.1:1/events", CrashURL: "http://127.0.0.1:1/crash", Timeout: 50 * time.Millisecond, DebugLogging: true})
	defer c.Close()
	c.Event("err", map[string]any{"a": 1})
	c.UploadCrash([]byte("oops"))
	c.Flush(context.Background())
}

func TestFromEnvAndDefault(t *testing.T) {
	t.Setenv("STY_TELEMETRY_OPT_IN", "yes")
	t.Setenv("STY_TELEMETRY_URL", "http://127.0.0.1:0")
	t.Setenv("STY_CRASH_UPLOAD_URL", "")
	t.Setenv("STY_TELEMETRY_TIMEOUT_MS", "100")
	cfg := FromEnv()
	if !cfg.OptIn || cfg.EventsURL == "" || cfg.Timeout != 100*time.Millisecond {
		t.Fatalf("FromEnv did not parse correctly: %+v", cfg)
	}
	c := New(cfg)
	defer c.Close()
	prev := SetDefault(c)
	defer SetDefault(prev)
	if !Default().Enabled() {
		t.Fatalf("default client should be enabled")
	}
	var _ Tracker = Nop{}
	var _ Tracker = c
}
