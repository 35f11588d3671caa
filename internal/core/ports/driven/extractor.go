package driven

import (
	"context"

	"github.com/custodia-labs/llmsync/internal/core/domain"
)

// Extractor produces the normalised item set of one source.
// Each variant (sitemap, api, filesystem, delegated) implements this interface.
type Extractor interface {
	// Type returns the extractor type identifier.
	Type() string

	// SourceID returns the configured source ID.
	SourceID() string

	// Validate checks the extractor is configured well enough to run.
	// For HTTP sources this is a configuration check only; no request is made.
	// For filesystem, this checks the content root exists.
	Validate(ctx context.Context) error

	// Extract returns the current item set, already passed through
	// domain.NormaliseItems. Per-item failures are logged and skipped.
	// Returns an error wrapping domain.ErrExtraction when the source as a
	// whole cannot be read, or when nothing survived and the source is
	// expected to be non-empty.
	Extract(ctx context.Context) ([]domain.ContentItem, error)
}

// ItemProvider is implemented by host applications that hand their own
// content to the delegated extractor. It must not block on I/O that the
// host cannot bound by ctx.
type ItemProvider interface {
	Items(ctx context.Context) ([]domain.ContentItem, error)
}

// ItemProviderFunc adapts a function to ItemProvider.
type ItemProviderFunc func(ctx context.Context) ([]domain.ContentItem, error)

// Items calls f.
func (f ItemProviderFunc) Items(ctx context.Context) ([]domain.ContentItem, error) {
	return f(ctx)
}

// ExtractorBuilder creates an Extractor from configuration.
type ExtractorBuilder func(cfg *domain.Config) (Extractor, error)

// ExtractorFactory selects an extractor variant by name.
type ExtractorFactory interface {
	// Create returns the Extractor named by cfg.Extractor.
	// Returns ErrUnsupportedType if the name is unknown.
	Create(cfg *domain.Config) (Extractor, error)

	// Register adds a builder for the given type.
	Register(extractorType string, builder ExtractorBuilder)

	// SupportedTypes returns all registered extractor types.
	SupportedTypes() []string
}
