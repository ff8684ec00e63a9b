/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layout

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed sequence.schema.json
var sequenceSchema []byte

// ErrInvalidSequence is returned when a stored sequence does not match the record format.
var ErrInvalidSequence = errors.New("layout: invalid sequence document")

// EncodeSequence writes entries as an indented JSON array.
func EncodeSequence(w io.Writer, entries []SequenceEntry) error {
	if entries == nil {
		entries = []SequenceEntry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

// DecodeSequence validates data against the sequence schema and decodes it.
func DecodeSequence(data []byte) ([]SequenceEntry, error) {
	res, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(sequenceSchema), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSequence, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidSequence, strings.Join(msgs, "; "))
	}
	var out []SequenceEntry
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSequence, err)
	}
	if out == nil {
		out = []SequenceEntry{}
	}
	return out, nil
}

// SaveSequence writes entries to path via a temp file and rename.
func SaveSequence(path string, entries []SequenceEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create sequence dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".sequence-*.json")
	if err != nil {
		return fmt.Errorf("create temp sequence: %w", err)
	}
	tmpName := tmp.Name()
	if err := EncodeSequence(tmp, entries); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("encode sequence: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp sequence: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename sequence: %w", err)
	}
	return nil
}

// LoadSequence reads and validates a sequence written by SaveSequence.
func LoadSequence(path string) ([]SequenceEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sequence: %w", err)
	}
	return DecodeSequence(data)
}
