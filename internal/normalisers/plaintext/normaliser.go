package plaintext

import (
	"context"
	"strings"

	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text documents.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"text/plain",
		"text/markdown",
		"text/html",
	}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 5 // Fallback normaliser
}

// Normalise returns the content unchanged. A metadata "title" is used
// when present; plain text carries no title of its own.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	var title string
	if raw.Metadata != nil {
		if t, ok := raw.Metadata["title"].(string); ok {
			title = strings.TrimSpace(t)
		}
	}

	return &driven.NormaliseResult{
		Title:    title,
		Text:     strings.TrimSpace(strings.ReplaceAll(string(raw.Content), "\r\n", "\n")),
		Metadata: map[string]any{"format": "text"},
	}, nil
}
