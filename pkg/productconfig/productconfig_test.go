package productconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docbridge/mcp-docs/pkg/docerrors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestResolveMergesDefaultsAndDerivesFields(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "spreadjs", "product.yaml"), `
id: spreadjs
name: SpreadJS
company: GrapeCity
chunker_type: typedoc
doc_subdirs: ["apis", "docs", "demos"]
`)
	writeFile(t, filepath.Join(dir, "spreadjs", "en.yaml"), `
lang: en
doc_language: en
raw_data: spreadjs
description: SpreadJS English docs
`)

	r := NewResolver(dir)
	resolved, err := r.Resolve("spreadjs", "en")
	require.NoError(t, err)

	require.Equal(t, "GR", resolved.CompanyShort)
	require.Equal(t, "spreadjs_en", resolved.Collection)
	require.Equal(t, 20, resolved.Product.Search.PrefetchLimit)
	require.Equal(t, 10, resolved.Product.Search.RerankTopK)
	require.Equal(t, 5, resolved.Product.Search.DefaultLimit)
	require.Equal(t, 0.3, resolved.Product.Search.DenseScoreThreshold)
}

func TestResolveIsCached(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "acme", "product.yaml"), `
id: acme
company: Acme
chunker_type: markdown
doc_subdirs: ["docs"]
`)
	writeFile(t, filepath.Join(dir, "acme", "en.yaml"), `
lang: en
doc_language: en
raw_data: acme
`)

	r := NewResolver(dir)
	first, err := r.Resolve("acme", "en")
	require.NoError(t, err)

	// Mutate the file on disk; a cached resolve must not pick it up.
	writeFile(t, filepath.Join(dir, "acme", "product.yaml"), `
id: acme
company: Acme2
chunker_type: markdown
doc_subdirs: ["docs"]
`)
	second, err := r.Resolve("acme", "en")
	require.NoError(t, err)
	require.Same(t, first, second)
}

func TestResolveFailsClosedOnInvalidChunkerType(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad", "product.yaml"), `
id: bad
company: Bad
chunker_type: xml
doc_subdirs: ["docs"]
`)
	writeFile(t, filepath.Join(dir, "bad", "en.yaml"), `
lang: en
doc_language: en
raw_data: bad
`)

	r := NewResolver(dir)
	_, err := r.Resolve("bad", "en")
	require.Error(t, err)
}

func TestResolveMissingFileIsConfigError(t *testing.T) {
	dir := t.TempDir()
	r := NewResolver(dir)
	_, err := r.Resolve("nope", "en")
	require.Error(t, err)
	var cfgErr *docerrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}
