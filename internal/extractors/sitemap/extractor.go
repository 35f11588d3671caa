// Package sitemap extracts content items from an XML sitemap,
// following sitemap indexes to a bounded depth.
package sitemap

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"

	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/core/ports/driven"
	"github.com/custodia-labs/llmsync/internal/extractors/fetch"
	"github.com/custodia-labs/llmsync/internal/logger"
	"github.com/custodia-labs/llmsync/internal/normalisers"
)

// Type is the extractor type identifier.
const Type = domain.ExtractorSitemap

const (
	// DefaultMaxDepth bounds sitemap index recursion.
	DefaultMaxDepth = 3

	// DefaultMaxURLs bounds the number of page URLs collected.
	DefaultMaxURLs = 10000

	// DefaultTimeout bounds each sitemap fetch.
	DefaultTimeout = 30 * time.Second
)

// blogIndicators mark a URL path as an article rather than a page.
var blogIndicators = []string{"/blog/", "/post/", "/article/", "/news/", "/press/"}

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Options configures an Extractor.
type Options struct {
	SourceID      string
	SiteURL       string
	URL           string
	MaxURLs       int
	MaxDepth      int
	Timeout       time.Duration
	SkipPatterns  []string
	FetchTitles   bool
	ExcerptLength int
	Workers       int
}

// OptionsFromConfig maps configuration onto extractor options.
func OptionsFromConfig(cfg *domain.Config) Options {
	return Options{
		SourceID:      cfg.SourceID(),
		SiteURL:       cfg.SiteURL,
		URL:           cfg.Sitemap.URL,
		MaxURLs:       cfg.Sitemap.MaxURLs,
		MaxDepth:      cfg.Sitemap.MaxDepth,
		Timeout:       time.Duration(cfg.Sitemap.Timeout) * time.Second,
		SkipPatterns:  cfg.Sitemap.SkipPatterns,
		FetchTitles:   cfg.Sitemap.FetchTitles,
		ExcerptLength: cfg.Output.ExcerptLength,
		Workers:       cfg.Performance.MaxWorkers,
	}
}

// entry is one <url> of a urlset.
type entry struct {
	loc     string
	lastmod time.Time
}

// Extractor reads a sitemap or sitemap index.
type Extractor struct {
	opts   Options
	client *fetch.Client
}

// New creates a sitemap extractor.
func New(opts Options, client *fetch.Client) *Extractor {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.MaxURLs <= 0 {
		opts.MaxURLs = DefaultMaxURLs
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.SkipPatterns == nil {
		opts.SkipPatterns = domain.DefaultSkipPatterns
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Extractor{opts: opts, client: client}
}

// Type returns the extractor type identifier.
func (e *Extractor) Type() string {
	return Type
}

// SourceID returns the configured source ID.
func (e *Extractor) SourceID() string {
	return e.opts.SourceID
}

// SitemapURL returns the root sitemap address, resolving "auto" to
// /sitemap.xml under the site URL.
func (e *Extractor) SitemapURL() string {
	u := strings.TrimSpace(e.opts.URL)
	if u == "" || u == "auto" {
		return strings.TrimRight(e.opts.SiteURL, "/") + "/sitemap.xml"
	}
	return u
}

// Validate checks the sitemap URL is absolute. No request is made.
func (e *Extractor) Validate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u, err := url.Parse(e.SitemapURL())
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: sitemap url %q is not an absolute URL", domain.ErrInvalidInput, e.SitemapURL())
	}
	return nil
}

// Extract reads the sitemap tree and synthesises one item per page URL.
// A failure of the root sitemap is fatal; sub-sitemap failures are logged.
func (e *Extractor) Extract(ctx context.Context) ([]domain.ContentItem, error) {
	if err := e.Validate(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}

	c := &collector{seen: make(map[string]struct{}), visited: make(map[string]struct{})}
	if err := e.walk(ctx, e.SitemapURL(), 1, c); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}
	logger.Debug("sitemap: %d urls from %d sitemaps (%d skipped)", len(c.entries), len(c.visited), c.skipped)

	items := make([]domain.ContentItem, 0, len(c.entries))
	for _, en := range c.entries {
		items = append(items, domain.ContentItem{
			URL:          en.loc,
			Title:        domain.TitleFromURL(en.loc),
			LastModified: en.lastmod,
			Category:     categorise(en.loc),
		})
	}

	if e.opts.FetchTitles {
		if err := e.enrich(ctx, items); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// collector accumulates entries across the sitemap tree.
type collector struct {
	entries []entry
	seen    map[string]struct{}
	visited map[string]struct{}
	skipped int
}

func (c *collector) full(limit int) bool {
	return len(c.entries) >= limit
}

// walk fetches one sitemap document and recurses into index children.
func (e *Extractor) walk(ctx context.Context, sitemapURL string, depth int, c *collector) error {
	if _, ok := c.visited[sitemapURL]; ok {
		return nil
	}
	c.visited[sitemapURL] = struct{}{}

	doc, err := e.load(ctx, sitemapURL)
	if err != nil {
		return err
	}

	if index := xmlquery.FindOne(doc, "/sitemapindex"); index != nil {
		if depth >= e.opts.MaxDepth {
			logger.Warn("sitemap: %s is nested deeper than %d, not followed", sitemapURL, e.opts.MaxDepth)
			return nil
		}
		for _, loc := range xmlquery.Find(index, "sitemap/loc") {
			if c.full(e.opts.MaxURLs) {
				return nil
			}
			child := fetch.ResolveReference(sitemapURL, strings.TrimSpace(loc.InnerText()))
			if err := e.walk(ctx, child, depth+1, c); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Warn("sitemap: skipping %s: %v", child, err)
			}
		}
		return nil
	}

	urlset := xmlquery.FindOne(doc, "/urlset")
	if urlset == nil {
		return fmt.Errorf("%s is neither a urlset nor a sitemapindex", sitemapURL)
	}
	for _, node := range xmlquery.Find(urlset, "url") {
		if c.full(e.opts.MaxURLs) {
			logger.Warn("sitemap: max_urls %d reached", e.opts.MaxURLs)
			return nil
		}
		locNode := node.SelectElement("loc")
		if locNode == nil {
			continue
		}
		loc := fetch.ResolveReference(sitemapURL, strings.TrimSpace(locNode.InnerText()))
		if loc == "" || e.skip(loc) {
			c.skipped++
			continue
		}
		if _, dup := c.seen[loc]; dup {
			continue
		}
		c.seen[loc] = struct{}{}

		var lastmod time.Time
		if lm := node.SelectElement("lastmod"); lm != nil {
			lastmod, _ = normalisers.ParseDate(lm.InnerText())
		}
		c.entries = append(c.entries, entry{loc: loc, lastmod: lastmod})
	}
	return nil
}

// load fetches and parses one sitemap document within the per-fetch timeout.
func (e *Extractor) load(ctx context.Context, sitemapURL string) (*xmlquery.Node, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	resp, err := e.client.Get(fetchCtx, sitemapURL)
	if err != nil {
		return nil, err
	}
	doc, err := xmlquery.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", sitemapURL, err)
	}
	return doc, nil
}

// skip reports whether a URL matches a non-content pattern.
func (e *Extractor) skip(loc string) bool {
	lower := strings.ToLower(loc)
	if u, err := url.Parse(lower); err == nil && u.Host != "" {
		lower = u.Path
		if u.RawQuery != "" {
			lower += "?" + u.RawQuery
		}
	}
	for _, pattern := range e.opts.SkipPatterns {
		if pattern != "" && strings.Contains(lower, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// categorise returns "article" for blog-like paths and "page" otherwise.
func categorise(loc string) string {
	lower := strings.ToLower(loc)
	for _, indicator := range blogIndicators {
		if strings.Contains(lower, indicator) {
			return "article"
		}
	}
	return "page"
}
