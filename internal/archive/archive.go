/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package archive packs an explainer's output directory into a zip for hand-off and
// restores such archives into a workspace.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	applog "storyteller/internal/log"
)

const (
	// DirName is the workspace subdirectory archives are written to by default.
	DirName      = "archive"
	ManifestName = "archive.manifest.txt"
)

// ErrUnsafePath is returned for archive entries that would land outside the target.
var ErrUnsafePath = errors.New("archive entry escapes target directory")

// DefaultPath is <root>/archive/<explainer>-<yyyymmdd-hhmmss>.zip.
func DefaultPath(root, explainer string, now time.Time) string {
	return filepath.Join(root, DirName, fmt.Sprintf("%s-%s.zip", explainer, now.UTC().Format("20060102-150405")))
}

// Pack zips <root>/<explainer> into destZip with entries under "<explainer>/" and a text
// manifest at the root. Files whose base name is in skip are left out. It returns the
// number of files added.
func Pack(root, explainer, destZip string, skip ...string) (int, error) {
	l := applog.WithOperation(applog.WithComponent("archive"), "pack").With(slog.String("explainer", explainer))
	if strings.TrimSpace(root) == "" || strings.TrimSpace(explainer) == "" {
		return 0, errors.New("root and explainer are required")
	}
	if strings.TrimSpace(destZip) == "" {
		return 0, errors.New("destination is required")
	}
	src := filepath.Join(root, explainer)
	if st, err := os.Stat(src); err != nil || !st.IsDir() {
		return 0, fmt.Errorf("no output for explainer %q in %s", explainer, root)
	}
	if err := os.MkdirAll(filepath.Dir(destZip), 0o755); err != nil {
		return 0, fmt.Errorf("ensure archive dir: %w", err)
	}
	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[s] = true
	}

	tmp := destZip + ".tmp"
	zf, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create zip: %w", err)
	}
	zw := zip.NewWriter(zf)
	added := 0
	werr := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || skipped[d.Name()] {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if err := addFile(zw, filepath.ToSlash(rel), p); err != nil {
			return err
		}
		added++
		return nil
	})
	if werr == nil {
		manifest := fmt.Sprintf("Storyteller explainer archive\nExplainer: %s\nCreated: %s\nFiles: %d\n",
			explainer, time.Now().UTC().Format(time.RFC3339), added)
		var w io.Writer
		if w, werr = zw.Create(ManifestName); werr == nil {
			_, werr = io.WriteString(w, manifest)
		}
	}
	if cerr := zw.Close(); werr == nil {
		werr = cerr
	}
	if cerr := zf.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(tmp)
		l.Error("zip build failed", slog.Any("err", werr))
		return 0, fmt.Errorf("build zip: %w", werr)
	}
	if err := os.Rename(tmp, destZip); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("finalize zip: %w", err)
	}
	l.Info("explainer archived", slog.Int("files", added), slog.String("zip", destZip))
	return added, nil
}

func addFile(zw *zip.Writer, name, p string) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(st)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

// Restore extracts zipPath into root. Existing files are kept and not counted.
// It returns the number of files written.
func Restore(root, zipPath string) (int, error) {
	l := applog.WithOperation(applog.WithComponent("archive"), "restore").With(slog.String("zip", zipPath))
	if strings.TrimSpace(root) == "" {
		return 0, errors.New("root is required")
	}
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return 0, fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = r.Close() }()

	restored := 0
	for _, f := range r.File {
		if f.Name == ManifestName {
			continue
		}
		name := path.Clean(f.Name)
		if !filepath.IsLocal(filepath.FromSlash(name)) {
			return restored, fmt.Errorf("%w: %s", ErrUnsafePath, f.Name)
		}
		target := filepath.Join(root, filepath.FromSlash(name))
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return restored, err
			}
			continue
		}
		if _, err := os.Stat(target); err == nil {
			l.Warn("skip existing file", slog.String("path", target))
			continue
		}
		if err := extract(f, target); err != nil {
			return restored, fmt.Errorf("extract %s: %w", f.Name, err)
		}
		restored++
	}
	l.Info("archive restored", slog.Int("files", restored), slog.String("root", root))
	return restored, nil
}

func extract(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
