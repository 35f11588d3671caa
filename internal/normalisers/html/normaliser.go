package html

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Format normaliser, higher than plaintext
}

// Normalise extracts the title and body text of an HTML document.
// The title comes from <title>, then the first <h1>.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(raw.Content)))
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", raw.URI, err)
	}

	title := Title(doc)
	metadata := map[string]any{"format": "html"}
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok && strings.TrimSpace(desc) != "" {
		metadata["description"] = strings.TrimSpace(desc)
	}
	if lang, ok := doc.Find("html").Attr("lang"); ok && lang != "" {
		metadata["language"] = lang
	}

	return &driven.NormaliseResult{
		Title:    title,
		Text:     bodyText(doc),
		Metadata: metadata,
	}, nil
}

// Title returns the document title, falling back to the first <h1>.
func Title(doc *goquery.Document) string {
	if title := collapse(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return collapse(doc.Find("h1").First().Text())
}

// Text returns the readable text of an HTML fragment, such as the
// rendered content field of a REST API response.
func Text(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.TrimSpace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return bodyText(doc)
}

// removed lists elements that never carry readable content.
const removed = "head, script, style, noscript, svg, template, iframe, nav, form"

// blocks lists elements that end a line of text.
const blocks = "p, div, br, hr, h1, h2, h3, h4, h5, h6, li, tr, blockquote, pre, table, section, article, header, footer"

func bodyText(doc *goquery.Document) string {
	doc.Find(removed).Remove()
	doc.Find(blocks).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
		s.PrependHtml("\n")
	})

	text := doc.Find("body").Text()
	if text == "" {
		text = doc.Text()
	}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = collapse(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
