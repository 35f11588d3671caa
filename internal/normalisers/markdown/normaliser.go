package markdown

import (
	"context"
	"regexp"
	"strings"

	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles Markdown documents.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Format normaliser, higher than plaintext
}

// Normalise extracts the first H1 as title and strips Markdown syntax
// from the body. The title line is removed from the text.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	content := strings.ReplaceAll(string(raw.Content), "\r\n", "\n")
	title, body := splitTitle(content)

	return &driven.NormaliseResult{
		Title:    title,
		Text:     Strip(body),
		Metadata: map[string]any{"format": "markdown"},
	}, nil
}

// Pre-compiled regular expressions for Markdown stripping.
var (
	atxH1        = regexp.MustCompile(`^#\s+(.+?)\s*#*\s*$`)
	codeBlock    = regexp.MustCompile("(?s)```.*?```")
	inlineCode   = regexp.MustCompile("`([^`]+)`")
	images       = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	links        = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	refLinks     = regexp.MustCompile(`(?m)^\s*\[[^\]]+\]:\s+\S+.*$`)
	headings     = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	emphasis     = regexp.MustCompile(`(\*\*|__|\*|_|~~)([^*_~\n]+)(\*\*|__|\*|_|~~)`)
	blockquote   = regexp.MustCompile(`(?m)^>\s?`)
	hr           = regexp.MustCompile(`(?m)^\s*[-*_]{3,}\s*$`)
	listMarkers  = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	numberedList = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
	htmlTags     = regexp.MustCompile(`<[^>]+>`)
	newlines     = regexp.MustCompile(`\n{3,}`)
)

// splitTitle finds the first "# Title" line outside a code fence.
func splitTitle(content string) (title, body string) {
	lines := strings.Split(content, "\n")
	inFence := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if m := atxH1.FindStringSubmatch(trimmed); m != nil {
			rest := append(append([]string{}, lines[:i]...), lines[i+1:]...)
			return Strip(m[1]), strings.Join(rest, "\n")
		}
	}
	return "", content
}

// Strip removes common Markdown formatting, leaving readable text.
func Strip(content string) string {
	content = codeBlock.ReplaceAllString(content, "")
	content = images.ReplaceAllString(content, "")
	content = links.ReplaceAllString(content, "$1")
	content = refLinks.ReplaceAllString(content, "")
	content = inlineCode.ReplaceAllString(content, "$1")
	content = headings.ReplaceAllString(content, "")
	content = emphasis.ReplaceAllString(content, "$2")
	content = blockquote.ReplaceAllString(content, "")
	content = hr.ReplaceAllString(content, "")
	content = listMarkers.ReplaceAllString(content, "")
	content = numberedList.ReplaceAllString(content, "")
	content = htmlTags.ReplaceAllString(content, "")
	content = newlines.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
