package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/core/ports/driven"
	"github.com/custodia-labs/llmsync/internal/normalisers"
	"github.com/custodia-labs/llmsync/internal/normalisers/html"
	"github.com/custodia-labs/llmsync/internal/normalisers/markdown"
	"github.com/custodia-labs/llmsync/internal/normalisers/plaintext"
)

func testRegistry() *normalisers.Registry {
	return normalisers.NewRegistry(markdown.New(), html.New(), plaintext.New())
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	return full
}

func newExtractor(t *testing.T, root string, mutate func(*Options)) *Extractor {
	t.Helper()
	opts := Options{
		SourceID:      "docs",
		Root:          root,
		SiteURL:       "https://example.com/",
		Include:       []string{"**.md", "**.html"},
		Exclude:       []string{"admin/**", "private/**", "draft/**"},
		FrontMatter:   true,
		ExcerptLength: 200,
	}
	if mutate != nil {
		mutate(&opts)
	}
	e, err := New(opts, testRegistry())
	require.NoError(t, err)
	return e
}

func byURL(items []domain.ContentItem) map[string]domain.ContentItem {
	out := make(map[string]domain.ContentItem, len(items))
	for _, item := range items {
		out[item.URL] = item
	}
	return out
}

func TestNew(t *testing.T) {
	e := newExtractor(t, "/tmp/site", nil)
	assert.Equal(t, "filesystem", e.Type())
	assert.Equal(t, "docs", e.SourceID())
	var _ driven.Extractor = e

	_, err := New(Options{Include: []string{"[unclosed"}}, testRegistry())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestExtractor_Validate(t *testing.T) {
	root := t.TempDir()

	assert.NoError(t, newExtractor(t, root, nil).Validate(context.Background()))

	err := newExtractor(t, filepath.Join(root, "missing"), nil).Validate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	file := writeFile(t, root, "file.md", "x")
	err = newExtractor(t, file, nil).Validate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, context.Canceled, newExtractor(t, root, nil).Validate(ctx))
}

func TestExtractor_Extract(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "guide/getting-started.md", `---
title: Getting Started
date: 2024-02-03
author: Ada
tags: [intro, setup]
type: docs
---
# Ignored Heading

Install the tool. Then run it against your site to produce a manifest.
`)
	writeFile(t, root, "about.html", `<html><head><title>About Us</title></head><body><p>We write software.</p></body></html>`)
	writeFile(t, root, "notes.md", "Plain body without heading.")
	writeFile(t, root, "admin/secret.md", "# Secret")
	writeFile(t, root, ".hidden/page.md", "# Hidden")
	writeFile(t, root, "image.png", "not text")

	items, err := newExtractor(t, root, nil).Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)

	got := byURL(items)

	guide, ok := got["https://example.com/guide/getting-started.html"]
	require.True(t, ok)
	assert.Equal(t, "Getting Started", guide.Title)
	assert.Equal(t, "Install the tool.", guide.Excerpt)
	assert.Equal(t, time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), guide.LastModified)
	assert.Equal(t, "Ada", guide.Author)
	assert.Equal(t, "docs", guide.Category)
	assert.Equal(t, []string{"intro", "setup"}, guide.Tags)
	assert.Equal(t, 13, guide.WordCount)
	assert.Equal(t, "en", guide.Language)

	about, ok := got["https://example.com/about.html"]
	require.True(t, ok)
	assert.Equal(t, "About Us", about.Title)
	assert.Equal(t, "article", about.Category)
	assert.Equal(t, 3, about.WordCount)

	notes, ok := got["https://example.com/notes.html"]
	require.True(t, ok)
	assert.Equal(t, "Notes", notes.Title)
	assert.False(t, notes.LastModified.IsZero(), "mtime is used when no date is declared")
}

func TestExtractor_Extract_Drafts(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "post.md", "---\ndraft: true\n---\nbody")
	writeFile(t, root, "live.md", "body")

	items, err := newExtractor(t, root, nil).Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "https://example.com/live.html", items[0].URL)

	items, err = newExtractor(t, root, func(o *Options) { o.IncludeDrafts = true }).Extract(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestExtractor_Extract_FrontMatterDisabled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "page.md", "---\ntitle: From Meta\n---\n# From Heading\n\ntext")

	items, err := newExtractor(t, root, func(o *Options) { o.FrontMatter = false }).Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "From Heading", items[0].Title)
}

func TestExtractor_Extract_BadFrontMatterKeepsFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "page.md", "---\ntitle: [broken\n---\n# Heading\n")

	items, err := newExtractor(t, root, nil).Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestExtractor_Extract_MissingRoot(t *testing.T) {
	_, err := newExtractor(t, "/non/existent/path", nil).Extract(context.Background())
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestExtractor_Extract_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newExtractor(t, root, nil).Extract(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractor_pageURL(t *testing.T) {
	tests := []struct {
		style string
		rel   string
		want  string
	}{
		{domain.URLStyleHTML, "blog/post.md", "https://example.com/blog/post.html"},
		{domain.URLStyleHTML, "index.html", "https://example.com/index.html"},
		{domain.URLStyleHTML, "docs/My Page.md", "https://example.com/docs/My%20Page.html"},
		{domain.URLStylePretty, "blog/post.md", "https://example.com/blog/post"},
		{domain.URLStylePretty, "blog/index.md", "https://example.com/blog/"},
		{domain.URLStylePretty, "index.md", "https://example.com/"},
	}
	for _, tt := range tests {
		t.Run(tt.style+" "+tt.rel, func(t *testing.T) {
			e := newExtractor(t, "/srv", func(o *Options) { o.URLStyle = tt.style })
			assert.Equal(t, tt.want, e.pageURL(tt.rel))
		})
	}
}

func TestExtractor_selected(t *testing.T) {
	e := newExtractor(t, "/srv", func(o *Options) {
		o.Include = []string{"*.md", "docs/**.html"}
		o.Exclude = []string{"**/_*"}
	})

	assert.True(t, e.selected("a.md"))
	assert.True(t, e.selected("deep/nested/b.md"))
	assert.True(t, e.selected("docs/x/y.html"))
	assert.False(t, e.selected("other/y.html"))
	assert.False(t, e.selected("deep/_partial.md"))
}

func TestIsHidden(t *testing.T) {
	assert.True(t, isHidden(".git/config"))
	assert.True(t, isHidden("a/.b/c.md"))
	assert.False(t, isHidden("a/b/c.md"))
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := domain.DefaultConfig()
	cfg.Extractor = domain.ExtractorFilesystem
	cfg.SiteURL = "https://example.com"
	opts := OptionsFromConfig(&cfg)
	assert.Equal(t, "filesystem", opts.SourceID)
	assert.Equal(t, "./content", opts.Root)
	assert.Equal(t, 4, opts.Workers)
	assert.Equal(t, domain.URLStyleHTML, opts.URLStyle)
}
