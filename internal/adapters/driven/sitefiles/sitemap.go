package sitefiles

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/custodia-labs/llmsync/internal/core/domain"
)

// SitemapNamespace is the namespace of a sitemaps.org urlset.
const SitemapNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// ErrSitemapIndex is returned when asked to add a page to a sitemap index.
var ErrSitemapIndex = errors.New("refusing to add a page to a sitemap index")

// EnsureSitemapEntry registers manifestURL in the urlset at sitemapPath.
// A missing file is created. The edit is textual, so comments and
// formatting of the existing file survive.
func (w *Writer) EnsureSitemapEntry(sitemapPath, manifestURL string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	content, err := os.ReadFile(sitemapPath)
	if errors.Is(err, os.ErrNotExist) {
		if err := w.replace(sitemapPath, []byte(w.newSitemap(manifestURL)), 0o644); err != nil {
			return false, fmt.Errorf("%w: create %s: %v", domain.ErrWrite, sitemapPath, err)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: read %s: %v", domain.ErrWrite, sitemapPath, err)
	}

	present, err := hasLoc(content, manifestURL)
	if err != nil {
		return false, fmt.Errorf("%s: %w", sitemapPath, err)
	}
	if present {
		return false, nil
	}

	updated, err := w.insertURL(content, manifestURL)
	if err != nil {
		return false, fmt.Errorf("%s: %w", sitemapPath, err)
	}
	if ok, err := hasLoc(updated, manifestURL); err != nil || !ok {
		return false, fmt.Errorf("%s: edited sitemap does not contain %s", sitemapPath, manifestURL)
	}

	if err := w.replace(sitemapPath, updated, 0o644); err != nil {
		return false, fmt.Errorf("%w: %s: %v", domain.ErrWrite, sitemapPath, err)
	}
	return true, nil
}

// hasLoc parses a sitemap and reports whether a <url><loc> equals target.
func hasLoc(content []byte, target string) (bool, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(content))
	if err != nil {
		return false, fmt.Errorf("parse sitemap: %w", err)
	}
	if xmlquery.FindOne(doc, "/sitemapindex") != nil {
		return false, ErrSitemapIndex
	}
	urlset := xmlquery.FindOne(doc, "/urlset")
	if urlset == nil {
		return false, errors.New("not a urlset sitemap")
	}
	for _, loc := range xmlquery.Find(urlset, "url/loc") {
		if strings.TrimSpace(loc.InnerText()) == target {
			return true, nil
		}
	}
	return false, nil
}

// urlBlock renders a <url> element at the given indentation.
func (w *Writer) urlBlock(manifestURL, indent, unit string) string {
	var loc strings.Builder
	_ = xml.EscapeText(&loc, []byte(manifestURL))

	var b strings.Builder
	b.WriteString(indent + "<url>\n")
	b.WriteString(indent + unit + "<loc>" + loc.String() + "</loc>\n")
	b.WriteString(indent + unit + "<lastmod>" + w.now().Format("2006-01-02") + "</lastmod>\n")
	b.WriteString(indent + unit + "<changefreq>daily</changefreq>\n")
	b.WriteString(indent + unit + "<priority>0.8</priority>\n")
	b.WriteString(indent + "</url>\n")
	return b.String()
}

func (w *Writer) newSitemap(manifestURL string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
		`<urlset xmlns="` + SitemapNamespace + `">` + "\n" +
		w.urlBlock(manifestURL, "  ", "  ") +
		"</urlset>\n"
}

// insertURL adds a <url> element just before the closing </urlset>,
// indented like the existing entries.
func (w *Writer) insertURL(content []byte, manifestURL string) ([]byte, error) {
	text := string(content)
	end := closingTagIndex(text)
	if end < 0 {
		return nil, errors.New("no closing </urlset> tag")
	}

	indent, unit := detectIndent(text)
	lineStart := strings.LastIndexByte(text[:end], '\n') + 1
	block := w.urlBlock(manifestURL, indent, unit)

	var out string
	if strings.TrimSpace(text[lineStart:end]) == "" {
		// </urlset> sits on its own line.
		out = text[:lineStart] + block + text[lineStart:]
	} else {
		out = text[:end] + "\n" + block + text[end:]
	}
	return []byte(out), nil
}

// closingTagIndex finds the last closing urlset tag, with or without a
// namespace prefix.
func closingTagIndex(text string) int {
	idx := strings.LastIndex(text, "</urlset>")
	if idx >= 0 {
		return idx
	}
	idx = strings.LastIndex(text, ":urlset>")
	if idx < 0 {
		return -1
	}
	return strings.LastIndex(text[:idx], "</")
}

// detectIndent returns the indentation of existing <url> lines and the
// extra indentation of their children.
func detectIndent(text string) (indent, unit string) {
	indent, unit = "  ", "  "
	urlIndent, childIndent := "", ""
	foundURL := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimLeft(line, " \t")
		lead := line[:len(line)-len(trimmed)]
		switch {
		case !foundURL && (trimmed == "<url>" || strings.HasPrefix(trimmed, "<url>")):
			urlIndent = lead
			foundURL = true
			if trimmed != "<url>" {
				// <url><loc>...</loc></url> on one line; no child indent to learn.
				return urlIndent, guessUnit(urlIndent)
			}
		case foundURL && strings.HasPrefix(trimmed, "<loc>"):
			childIndent = lead
			if strings.HasPrefix(childIndent, urlIndent) && len(childIndent) > len(urlIndent) {
				return urlIndent, childIndent[len(urlIndent):]
			}
			return urlIndent, guessUnit(urlIndent)
		}
	}
	if foundURL {
		return urlIndent, guessUnit(urlIndent)
	}
	return indent, unit
}

func guessUnit(indent string) string {
	if strings.Contains(indent, "\t") {
		return "\t"
	}
	return "  "
}
