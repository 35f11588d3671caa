// Package delegated hands extraction to the host application, either
// through an in-process ItemProvider or a JSON feed the host exports.
package delegated

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/core/ports/driven"
)

// Type is the extractor type identifier.
const Type = domain.ExtractorDelegated

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor returns whatever the host provides.
type Extractor struct {
	sourceID  string
	provider  driven.ItemProvider
	itemsFile string
}

// New creates an extractor backed by an in-process provider.
func New(sourceID string, provider driven.ItemProvider) *Extractor {
	return &Extractor{sourceID: sourceID, provider: provider}
}

// NewFromFile creates an extractor that reads a JSON array of items.
func NewFromFile(sourceID, itemsFile string) *Extractor {
	return &Extractor{sourceID: sourceID, itemsFile: itemsFile}
}

// Type returns the extractor type identifier.
func (e *Extractor) Type() string {
	return Type
}

// SourceID returns the configured source ID.
func (e *Extractor) SourceID() string {
	return e.sourceID
}

// Validate checks that a provider or a readable items file is configured.
func (e *Extractor) Validate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.provider != nil {
		return nil
	}
	if e.itemsFile == "" {
		return fmt.Errorf("%w: delegated extractor needs an item provider or delegated.items_file", domain.ErrInvalidInput)
	}
	info, err := os.Stat(e.itemsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: items file does not exist: %s", domain.ErrInvalidInput, e.itemsFile)
		}
		return fmt.Errorf("stat items file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: items file is a directory: %s", domain.ErrInvalidInput, e.itemsFile)
	}
	return nil
}

// Extract asks the provider for items, or reads the items file.
func (e *Extractor) Extract(ctx context.Context) ([]domain.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.provider != nil {
		return e.fromProvider(ctx)
	}
	return e.fromFile()
}

func (e *Extractor) fromProvider(ctx context.Context) (items []domain.ContentItem, err error) {
	defer func() {
		if r := recover(); r != nil {
			items = nil
			err = fmt.Errorf("%w: item provider panicked: %v", domain.ErrExtraction, r)
		}
	}()

	items, err = e.provider.Items(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: item provider: %v", domain.ErrExtraction, err)
	}
	return items, nil
}

func (e *Extractor) fromFile() ([]domain.ContentItem, error) {
	data, err := os.ReadFile(e.itemsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: read items file: %v", domain.ErrExtraction, err)
	}
	var items []domain.ContentItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: decode items file %s: %v", domain.ErrExtraction, e.itemsFile, err)
	}
	return items, nil
}
