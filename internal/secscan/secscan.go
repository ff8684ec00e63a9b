/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package secscan checks a source tree for hardcoded credentials before it is published.
package secscan

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Rule is a named line pattern.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

func rule(name, expr string) Rule { return Rule{Name: name, Pattern: regexp.MustCompile(expr)} }

// DefaultRules flag assignments of quoted literals to credential-like names.
var DefaultRules = []Rule{
	rule("Hardcoded API key", `(?i)API_KEY\s*(?::=|=|:)\s*["'][^"']+["']`),
	rule("Hardcoded FAL key", `(?i)FAL_KEY\s*(?::=|=|:)\s*["'][^"']+["']`),
	rule("Hardcoded ElevenLabs key", `(?i)ELEVENLABS_API_KEY\s*(?::=|=|:)\s*["'][^"']+["']`),
	rule("Hardcoded secret", `(?i)secret\s*(?::=|=|:)\s*["'][^"']+["']`),
	rule("Hardcoded password", `(?i)password\s*(?::=|=|:)\s*["'][^"']+["']`),
	rule("Hardcoded token", `(?i)token\s*(?::=|=|:)\s*["'][^"']+["']`),
	rule("Private key block", `-----BEGIN [A-Z ]*PRIVATE KEY-----`),
}

var (
	DefaultExtensions  = []string{".go", ".py", ".md", ".txt", ".yaml", ".yml", ".json", ".toml", ".env"}
	DefaultExcludeDirs = []string{".git", ".hg", ".svn", "output", "archive", "vendor", "node_modules",
		".venv", "venv", "__pycache__", ".sty", "scripts_to_process", "secscan"}
)

// maxFileSize skips generated blobs and data dumps.
const maxFileSize = 4 << 20

// Finding is one rule match.
type Finding struct {
	Rule string `json:"rule"`
	Path string `json:"path"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

func (f Finding) String() string { return fmt.Sprintf("%s:%d: %s", f.Path, f.Line, f.Rule) }

// Options tunes Scan. Nil slices use the defaults.
type Options struct {
	Rules       []Rule
	Extensions  []string
	ExcludeDirs []string
	Workers     int
}

func (o Options) withDefaults() Options {
	if o.Rules == nil {
		o.Rules = DefaultRules
	}
	if o.Extensions == nil {
		o.Extensions = DefaultExtensions
	}
	if o.ExcludeDirs == nil {
		o.ExcludeDirs = DefaultExcludeDirs
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	return o
}

// Scan walks root and returns findings ordered by path and line. Paths are relative to root.
func Scan(ctx context.Context, root string, opts Options) ([]Finding, error) {
	opts = opts.withDefaults()
	files, err := collect(root, opts)
	if err != nil {
		return nil, err
	}

	var (
		mu  sync.Mutex
		out []Finding
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for _, rel := range files {
		rel := rel
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			found, err := scanFile(filepath.Join(root, rel), rel, opts.Rules)
			if err != nil {
				return err
			}
			if len(found) > 0 {
				mu.Lock()
				out = append(out, found...)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Rule < out[j].Rule
	})
	return out, nil
}

func collect(root string, opts Options) ([]string, error) {
	exts := make(map[string]bool, len(opts.Extensions))
	for _, e := range opts.Extensions {
		exts[strings.ToLower(e)] = true
	}
	skip := make(map[string]bool, len(opts.ExcludeDirs))
	for _, d := range opts.ExcludeDirs {
		skip[d] = true
	}
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && skip[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		name := d.Name()
		if !exts[strings.ToLower(filepath.Ext(name))] && !(exts[".env"] && strings.HasPrefix(name, ".env")) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}

func scanFile(path, rel string, rules []Rule) ([]Finding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", rel, err)
	}
	defer f.Close()
	if st, err := f.Stat(); err == nil && st.Size() > maxFileSize {
		return nil, nil
	}
	var out []Finding
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxFileSize)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		for _, r := range rules {
			if r.Pattern.MatchString(text) {
				out = append(out, Finding{Rule: r.Name, Path: rel, Line: line, Text: strings.TrimSpace(text)})
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	return out, nil
}
