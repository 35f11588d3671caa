package domain

import "time"

// RawDocument represents opaque bytes read by an extractor.
// It is the extractor's input to normalisation.
type RawDocument struct {
	// SourceID links to the source that produced this document.
	SourceID string

	// URI is the original location (file path, URL, etc).
	URI string

	// MIMEType is the content type (e.g., "text/markdown").
	MIMEType string

	// Content is the raw bytes, with any front matter already removed.
	Content []byte

	// ModTime is the last modification time reported by the source.
	ModTime time.Time

	// Metadata contains extractor-specific key-value pairs,
	// such as parsed front matter.
	Metadata map[string]any
}
