// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package loader recursively discovers Markdown documents under a corpus's
// doc subdirectories, sanitizes residual HTML left behind by Word/Confluence
// exports, and derives each document's stable identity and metadata.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/docbridge/mcp-docs/pkg/docmodel"
)

// Config points a Loader at one product's corpus on disk.
type Config struct {
	BaseDir    string   // e.g. raw_data/spreadjs
	DocSubdirs []string // e.g. ["apis", "docs", "demos"]
	Product    string
	Language   string
}

// Loader discovers and loads the Markdown documents for one product corpus.
type Loader struct {
	cfg Config
}

// New constructs a Loader for cfg.
func New(cfg Config) *Loader {
	return &Loader{cfg: cfg}
}

// Load walks every configured subdirectory beneath BaseDir and returns the
// sanitized Document for each non-empty Markdown file found. Files that
// cannot be read as UTF-8, or are empty after trimming, are silently
// skipped rather than failing the whole load.
func (l *Loader) Load(ctx context.Context) ([]docmodel.Document, error) {
	var docs []docmodel.Document

	for _, subdir := range l.cfg.DocSubdirs {
		root := filepath.Join(l.cfg.BaseDir, subdir)

		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if d.IsDir() {
				return nil
			}
			if strings.ToLower(filepath.Ext(path)) != ".md" {
				return nil
			}

			doc, ok, loadErr := l.loadFile(path)
			if loadErr != nil {
				return fmt.Errorf("load %s: %w", path, loadErr)
			}
			if ok {
				docs = append(docs, doc)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}

	return docs, nil
}

func (l *Loader) loadFile(path string) (docmodel.Document, bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return docmodel.Document{}, false, err
	}
	if !utf8.Valid(raw) {
		return docmodel.Document{}, false, nil
	}

	text := string(raw)
	if strings.TrimSpace(text) == "" {
		return docmodel.Document{}, false, nil
	}

	sanitized := SanitizeHTML(text)

	relPath, err := filepath.Rel(l.cfg.BaseDir, path)
	if err != nil {
		return docmodel.Document{}, false, err
	}
	relPath = filepath.ToSlash(relPath)

	info, err := os.Stat(path)
	if err != nil {
		return docmodel.Document{}, false, err
	}

	doc := docmodel.Document{
		ID:            docmodel.DocumentID(relPath),
		Product:       l.cfg.Product,
		Language:      l.cfg.Language,
		Category:      docmodel.CategoryForPath(relPath),
		RelativePath:  relPath,
		PathHierarchy: strings.Split(relPath, "/"),
		Title:         titleFromPath(relPath),
		Content:       sanitized,
		ContentHash:   docmodel.ContentHash(sanitized),
		LastModified:  info.ModTime().Unix(),
		Size:          info.Size(),
	}

	return doc, true, nil
}

// titleFromPath derives a document's display title from its file name,
// extension stripped.
func titleFromPath(relPath string) string {
	base := filepath.Base(relPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
