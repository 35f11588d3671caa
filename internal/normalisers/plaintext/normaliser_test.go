package plaintext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/llmsync/internal/core/domain"
)

func TestPriority(t *testing.T) {
	assert.Equal(t, 5, New().Priority())
}

func TestSupportedMIMETypes(t *testing.T) {
	assert.Contains(t, New().SupportedMIMETypes(), "text/plain")
}

func TestNormalise_Success(t *testing.T) {
	raw := &domain.RawDocument{
		URI:     "notes.txt",
		Content: []byte("  line one\r\nline two  "),
	}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Empty(t, result.Title)
	assert.Equal(t, "line one\nline two", result.Text)
}

func TestNormalise_TitleFromMetadata(t *testing.T) {
	raw := &domain.RawDocument{
		Content:  []byte("body"),
		Metadata: map[string]any{"title": "From Metadata"},
	}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "From Metadata", result.Title)
}

func TestNormalise_NilDocument(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
