/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storyteller/internal/layout"
)

// Client calls a storyteller server.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a client. A trailing slash on baseURL is ignored.
func NewClient(baseURL string, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
		if e.Error != "" {
			return fmt.Errorf("server %s %s: %s: %s", method, path, resp.Status, e.Error)
		}
		return fmt.Errorf("server %s %s: %s", method, path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// Patterns lists the catalog.
func (c *Client) Patterns(ctx context.Context) ([]layout.Pattern, error) {
	var list []layout.Pattern
	if err := c.doJSON(ctx, http.MethodGet, "/api/patterns", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GenerateSequence asks the server for a sequence. When req.Save is set the returned id
// identifies the stored copy.
func (c *Client) GenerateSequence(ctx context.Context, req SequenceRequest) (string, []layout.SequenceEntry, error) {
	var resp SequenceResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/sequences", req, &resp); err != nil {
		return "", nil, err
	}
	return resp.ID, resp.Sequence, nil
}

// GetSequence fetches a stored sequence.
func (c *Client) GetSequence(ctx context.Context, id string) (SavedSequence, error) {
	var seq SavedSequence
	if err := c.doJSON(ctx, http.MethodGet, "/api/sequences/"+id, nil, &seq); err != nil {
		return SavedSequence{}, err
	}
	return seq, nil
}
