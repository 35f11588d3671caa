package driven

import (
	"context"

	"github.com/custodia-labs/llmsync/internal/core/domain"
)

// Normaliser turns a raw document body into plain text.
// Each normaliser handles specific MIME types (e.g., Markdown, HTML).
type Normaliser interface {
	// SupportedMIMETypes returns the MIME types this normaliser handles.
	SupportedMIMETypes() []string

	// Priority returns the selection priority (higher = preferred).
	// Format-specific normalisers should return 50-89.
	// Fallback normalisers should return 1-9.
	Priority() int

	// Normalise extracts the title and readable text of a raw document.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)
}

// NormaliseResult contains the output of normalisation.
type NormaliseResult struct {
	// Title is the document's own title, empty when it declares none.
	Title string

	// Text is the readable body with markup removed.
	Text string

	// Metadata carries format-specific hints, such as "format" and "language".
	Metadata map[string]any
}
