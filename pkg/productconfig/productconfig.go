// Package productconfig resolves the per-product, per-language-variant
// configuration that drives indexing and search: the product descriptor,
// one language variant, search-parameter defaults, and the derived fields
// (company_short, collection name). Resolved configs are cached write-once
// keyed by (product, lang); the cache is a read-side optimization only,
// never time-invalidated.
package productconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/docbridge/mcp-docs/pkg/docerrors"
)

// SearchDefaults is merged under every product's search sub-object.
var SearchDefaults = SearchParams{
	PrefetchLimit:       20,
	RerankTopK:          10,
	DefaultLimit:        5,
	DenseScoreThreshold: 0.3,
}

// SearchParams tunes the searcher for one product.
type SearchParams struct {
	PrefetchLimit       int     `yaml:"prefetch_limit,omitempty"`
	RerankTopK          int     `yaml:"rerank_top_k,omitempty"`
	DefaultLimit        int     `yaml:"default_limit,omitempty"`
	DenseScoreThreshold float64 `yaml:"dense_score_threshold,omitempty"`
	// SparseScoreThreshold is carried through for forward compatibility
	// only; the vector store's hybrid query does not expose it and this
	// implementation does not attempt to enforce it.
	SparseScoreThreshold float64 `yaml:"sparse_score_threshold,omitempty"`
}

func (s SearchParams) mergeDefaults() SearchParams {
	if s.PrefetchLimit == 0 {
		s.PrefetchLimit = SearchDefaults.PrefetchLimit
	}
	if s.RerankTopK == 0 {
		s.RerankTopK = SearchDefaults.RerankTopK
	}
	if s.DefaultLimit == 0 {
		s.DefaultLimit = SearchDefaults.DefaultLimit
	}
	if s.DenseScoreThreshold == 0 {
		s.DenseScoreThreshold = SearchDefaults.DenseScoreThreshold
	}
	return s
}

// ResourceDescriptor is returned verbatim by the get_code_guidelines tool.
type ResourceDescriptor struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	MimeType    string `yaml:"mime_type"`
	Content     string `yaml:"content"`
}

// ProductDescriptor is products/{id}/product.yaml.
type ProductDescriptor struct {
	ID           string       `yaml:"id"`
	Name         string       `yaml:"name"`
	Company      string       `yaml:"company"`
	ChunkerType  string       `yaml:"chunker_type"` // markdown | typedoc | javadoc
	DocSubdirs   []string     `yaml:"doc_subdirs"`
	Search       SearchParams `yaml:"search"`
	Instructions string       `yaml:"instructions,omitempty"`
}

// LanguageVariant is products/{id}/{lang}.yaml.
type LanguageVariant struct {
	Lang        string                        `yaml:"lang"`
	DocLanguage string                        `yaml:"doc_language"`
	Collection  string                        `yaml:"collection,omitempty"`
	RawData     string                        `yaml:"raw_data"`
	Description string                        `yaml:"description"`
	Resources   map[string]ResourceDescriptor `yaml:"resources,omitempty"`
}

// Resolved is the fully merged, validated configuration for one (product, lang) pair.
type Resolved struct {
	Product      ProductDescriptor
	Variant      LanguageVariant
	CompanyShort string
	Collection   string
}

const validNameChars = "abcdefghijklmnopqrstuvwxyz0123456789_"

func isValidName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune(validNameChars, r) {
			return false
		}
	}
	return true
}

// Resolver loads, validates, merges, and caches product configurations.
type Resolver struct {
	baseDir string

	mu    sync.RWMutex
	cache map[string]*Resolved
}

// NewResolver constructs a Resolver rooted at baseDir (typically "products").
func NewResolver(baseDir string) *Resolver {
	return &Resolver{baseDir: baseDir, cache: make(map[string]*Resolved)}
}

func cacheKey(product, lang string) string {
	return product + "/" + lang
}

// Resolve loads and validates the (product, lang) configuration, returning a
// cached result on repeat calls for the same key.
func (r *Resolver) Resolve(product, lang string) (*Resolved, error) {
	key := cacheKey(product, lang)

	r.mu.RLock()
	if cached, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	productPath := filepath.Join(r.baseDir, product, "product.yaml")
	variantPath := filepath.Join(r.baseDir, product, lang+".yaml")

	var pd ProductDescriptor
	if err := loadYAML(productPath, &pd); err != nil {
		return nil, docerrors.NewConfigError(product, "product.yaml", "failed to load product descriptor", err)
	}
	if pd.ID == "" {
		pd.ID = product
	}

	var lv LanguageVariant
	if err := loadYAML(variantPath, &lv); err != nil {
		return nil, docerrors.NewConfigError(product, lang+".yaml", "failed to load language variant", err)
	}
	if lv.Lang == "" {
		lv.Lang = lang
	}

	resolved, err := merge(pd, lv)
	if err != nil {
		return nil, docerrors.NewConfigError(product, "", err.Error(), err)
	}

	if errs := validate(resolved); len(errs) > 0 {
		return nil, docerrors.NewConfigError(product, "validation", "configuration errors:\n  - "+strings.Join(errs, "\n  - "), nil)
	}

	r.mu.Lock()
	r.cache[key] = resolved
	r.mu.Unlock()

	return resolved, nil
}

func merge(pd ProductDescriptor, lv LanguageVariant) (*Resolved, error) {
	resolved := &Resolved{
		Product: pd,
		Variant: lv,
	}
	resolved.Product.Search = pd.Search.mergeDefaults()

	companyShort := pd.Company
	if len(companyShort) >= 2 {
		companyShort = strings.ToUpper(companyShort[:2])
	} else {
		companyShort = strings.ToUpper(companyShort)
	}
	resolved.CompanyShort = companyShort

	collection := lv.Collection
	if collection == "" {
		collection = fmt.Sprintf("%s_%s", pd.ID, lv.Lang)
	}
	resolved.Collection = collection

	return resolved, nil
}

func validate(r *Resolved) []string {
	var errs []string

	if !isValidName(r.Product.ID) {
		errs = append(errs, fmt.Sprintf("product id %q must be lowercase [a-z0-9_]", r.Product.ID))
	}
	if !isValidName(r.Variant.Lang) {
		errs = append(errs, fmt.Sprintf("language %q must be lowercase [a-z0-9_]", r.Variant.Lang))
	}
	if !isValidName(r.Collection) {
		errs = append(errs, fmt.Sprintf("collection %q must be lowercase [a-z0-9_]", r.Collection))
	}
	switch r.Product.ChunkerType {
	case "markdown", "typedoc", "javadoc":
	default:
		errs = append(errs, fmt.Sprintf("chunker_type %q must be one of markdown|typedoc|javadoc", r.Product.ChunkerType))
	}
	if len(r.Product.DocSubdirs) == 0 {
		errs = append(errs, "doc_subdirs must not be empty")
	}
	if r.Variant.DocLanguage == "" {
		errs = append(errs, "doc_language is required")
	}
	if r.Variant.RawData == "" {
		errs = append(errs, "raw_data is required")
	}

	return errs
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}
