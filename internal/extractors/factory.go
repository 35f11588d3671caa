package extractors

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/core/ports/driven"
	"github.com/custodia-labs/llmsync/internal/extractors/api"
	"github.com/custodia-labs/llmsync/internal/extractors/delegated"
	"github.com/custodia-labs/llmsync/internal/extractors/fetch"
	"github.com/custodia-labs/llmsync/internal/extractors/filesystem"
	"github.com/custodia-labs/llmsync/internal/extractors/sitemap"
	"github.com/custodia-labs/llmsync/internal/normalisers"
	"github.com/custodia-labs/llmsync/internal/normalisers/html"
	"github.com/custodia-labs/llmsync/internal/normalisers/markdown"
	"github.com/custodia-labs/llmsync/internal/normalisers/plaintext"
)

// Ensure Factory implements the interface.
var _ driven.ExtractorFactory = (*Factory)(nil)

// Options carries the dependencies builders may need.
type Options struct {
	// Provider backs the delegated extractor. When nil, delegated reads
	// delegated.items_file instead.
	Provider driven.ItemProvider

	// Normalisers converts files for the filesystem extractor.
	// Defaults to DefaultNormalisers().
	Normalisers driven.NormaliserRegistry

	// HTTPClient overrides the transport of HTTP extractors.
	HTTPClient *http.Client
}

// Factory selects an extractor variant by name.
type Factory struct {
	mu       sync.RWMutex
	builders map[string]driven.ExtractorBuilder
	opts     Options
}

// NewFactory creates a factory with the built-in extractors registered.
func NewFactory(opts Options) *Factory {
	if opts.Normalisers == nil {
		opts.Normalisers = DefaultNormalisers()
	}
	f := &Factory{
		builders: make(map[string]driven.ExtractorBuilder),
		opts:     opts,
	}
	f.Register(sitemap.Type, f.buildSitemap)
	f.Register(api.Type, f.buildAPI)
	f.Register(filesystem.Type, f.buildFilesystem)
	f.Register(delegated.Type, f.buildDelegated)
	return f
}

// DefaultNormalisers returns a registry with every built-in normaliser.
func DefaultNormalisers() *normalisers.Registry {
	return normalisers.NewRegistry(markdown.New(), html.New(), plaintext.New())
}

// Create returns the extractor named by cfg.Extractor, wrapped in the
// shared item policy.
func (f *Factory) Create(cfg *domain.Config) (driven.Extractor, error) {
	f.mu.RLock()
	builder, ok := f.builders[cfg.Extractor]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: extractor %q", domain.ErrUnsupportedType, cfg.Extractor)
	}

	extractor, err := builder(cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s extractor: %w", cfg.Extractor, err)
	}
	return WithPolicy(extractor, cfg.ExpectNonEmpty), nil
}

// Register adds a builder for the given type, replacing any existing one.
func (f *Factory) Register(extractorType string, builder driven.ExtractorBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[extractorType] = builder
}

// SupportedTypes returns all registered extractor types, sorted.
func (f *Factory) SupportedTypes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	types := make([]string, 0, len(f.builders))
	for t := range f.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func (f *Factory) client(opts fetch.Options) *fetch.Client {
	if f.opts.HTTPClient != nil {
		opts.HTTPClient = f.opts.HTTPClient
	}
	return fetch.NewClient(opts)
}

func (f *Factory) buildSitemap(cfg *domain.Config) (driven.Extractor, error) {
	client := f.client(fetch.OptionsFromConfig(cfg.Performance))
	return sitemap.New(sitemap.OptionsFromConfig(cfg), client), nil
}

func (f *Factory) buildAPI(cfg *domain.Config) (driven.Extractor, error) {
	client := f.client(api.ClientOptions(cfg))
	return api.New(api.OptionsFromConfig(cfg), client), nil
}

func (f *Factory) buildFilesystem(cfg *domain.Config) (driven.Extractor, error) {
	return filesystem.New(filesystem.OptionsFromConfig(cfg), f.opts.Normalisers)
}

func (f *Factory) buildDelegated(cfg *domain.Config) (driven.Extractor, error) {
	if f.opts.Provider != nil {
		return delegated.New(cfg.SourceID(), f.opts.Provider), nil
	}
	return delegated.NewFromFile(cfg.SourceID(), cfg.Delegated.ItemsFile), nil
}
