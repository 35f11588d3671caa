package extractors

import (
	"context"
	"fmt"

	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/core/ports/driven"
	"github.com/custodia-labs/llmsync/internal/logger"
)

// policyExtractor applies domain.NormaliseItems to every extraction and
// fails empty results when the source is expected to have content.
type policyExtractor struct {
	driven.Extractor
	expectNonEmpty bool
}

// WithPolicy wraps an extractor in the shared item policy.
func WithPolicy(extractor driven.Extractor, expectNonEmpty bool) driven.Extractor {
	if p, ok := extractor.(*policyExtractor); ok {
		extractor = p.Extractor
	}
	return &policyExtractor{Extractor: extractor, expectNonEmpty: expectNonEmpty}
}

// Unwrap returns the wrapped extractor.
func (p *policyExtractor) Unwrap() driven.Extractor {
	return p.Extractor
}

// Extract runs the wrapped extractor and normalises its items.
func (p *policyExtractor) Extract(ctx context.Context) ([]domain.ContentItem, error) {
	raw, err := p.Extractor.Extract(ctx)
	if err != nil {
		return nil, err
	}

	items, rejected := domain.NormaliseItems(raw)
	if rejected > 0 {
		logger.Warn("%s: dropped %d items without a URL", p.Type(), rejected)
	}
	if dupes := len(raw) - rejected - len(items); dupes > 0 {
		logger.Debug("%s: merged %d duplicate URLs", p.Type(), dupes)
	}

	if len(items) == 0 && p.expectNonEmpty {
		return nil, fmt.Errorf("%w: %s source %q returned no items", domain.ErrExtraction, p.Type(), p.SourceID())
	}
	return items, nil
}
