// Package api extracts content items from a paginated REST API.
// The default response shape is the WordPress REST API (wp/v2).
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/core/ports/driven"
	"github.com/custodia-labs/llmsync/internal/extractors/fetch"
	"github.com/custodia-labs/llmsync/internal/logger"
	"github.com/custodia-labs/llmsync/internal/normalisers"
	"github.com/custodia-labs/llmsync/internal/normalisers/html"
)

// Type is the extractor type identifier.
const Type = domain.ExtractorAPI

const (
	// MaxPerPage is the largest page size WordPress accepts.
	MaxPerPage = 100

	// MaxPages stops runaway pagination on servers that never signal the end.
	MaxPages = 1000

	// CodeInvalidPage is returned by WordPress for a page past the end.
	CodeInvalidPage = "rest_post_invalid_page_number"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Options configures an Extractor.
type Options struct {
	SourceID          string
	SiteURL           string
	Endpoint          string
	PostTypes         []string
	PerPage           int
	IncludeCategories []string
	ExcludeCategories []string
	ExcerptLength     int
	Workers           int
}

// OptionsFromConfig maps configuration onto extractor options.
func OptionsFromConfig(cfg *domain.Config) Options {
	return Options{
		SourceID:          cfg.SourceID(),
		SiteURL:           cfg.SiteURL,
		Endpoint:          cfg.API.Endpoint,
		PostTypes:         cfg.API.PostTypes,
		PerPage:           cfg.API.PerPage,
		IncludeCategories: cfg.API.IncludeCategories,
		ExcludeCategories: cfg.API.ExcludeCategories,
		ExcerptLength:     cfg.Output.ExcerptLength,
		Workers:           cfg.Performance.MaxWorkers,
	}
}

// ClientOptions returns fetch options carrying the API credentials.
func ClientOptions(cfg *domain.Config) fetch.Options {
	opts := fetch.OptionsFromConfig(cfg.Performance)
	opts.Token = cfg.API.Token
	opts.Username = cfg.API.Username
	opts.Password = cfg.API.Password
	return opts
}

// Extractor pages through a REST collection per post type.
type Extractor struct {
	opts    Options
	client  *fetch.Client
	include map[string]struct{}
	exclude map[string]struct{}
}

// New creates an API extractor.
func New(opts Options, client *fetch.Client) *Extractor {
	if opts.PerPage <= 0 || opts.PerPage > MaxPerPage {
		opts.PerPage = MaxPerPage
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Extractor{
		opts:    opts,
		client:  client,
		include: lowerSet(opts.IncludeCategories),
		exclude: lowerSet(opts.ExcludeCategories),
	}
}

// Type returns the extractor type identifier.
func (e *Extractor) Type() string {
	return Type
}

// SourceID returns the configured source ID.
func (e *Extractor) SourceID() string {
	return e.opts.SourceID
}

// Endpoint returns the collection root, resolving "auto" to the
// WordPress REST base under the site URL.
func (e *Extractor) Endpoint() string {
	endpoint := strings.TrimSpace(e.opts.Endpoint)
	if endpoint == "" || endpoint == "auto" {
		return strings.TrimRight(e.opts.SiteURL, "/") + "/wp-json/wp/v2"
	}
	return strings.TrimRight(endpoint, "/")
}

// Validate checks the endpoint is an absolute URL. No request is made.
func (e *Extractor) Validate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u, err := url.Parse(e.Endpoint())
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: api endpoint %q is not an absolute URL", domain.ErrInvalidInput, e.Endpoint())
	}
	if len(e.opts.PostTypes) == 0 {
		return fmt.Errorf("%w: no post types configured", domain.ErrInvalidInput)
	}
	return nil
}

// Extract fetches every configured post type. A post type the server
// does not expose (404) is skipped; any other failure fails the run.
func (e *Extractor) Extract(ctx context.Context) ([]domain.ContentItem, error) {
	if err := e.Validate(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}

	var items []domain.ContentItem
	for _, postType := range e.opts.PostTypes {
		records, err := e.fetchType(ctx, postType)
		if fetch.IsNotFound(err) {
			logger.Warn("api: post type %q not found at %s, skipping", postType, e.Endpoint())
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrExtraction, postType, err)
		}

		kept := 0
		for i := range records {
			item, ok := e.toItem(&records[i], postType)
			if !ok {
				continue
			}
			items = append(items, item)
			kept++
		}
		logger.Debug("api: %s: %d records, %d kept", postType, len(records), kept)
	}
	return items, nil
}

// fetchType collects every page of one post type.
func (e *Extractor) fetchType(ctx context.Context, postType string) ([]record, error) {
	first, resp, err := e.fetchPage(ctx, e.pageURL(postType, 1))
	if err != nil {
		if fetch.HasCode(err, CodeInvalidPage) {
			return nil, nil
		}
		return nil, err
	}

	total := fetch.TotalPages(resp.Header)
	switch {
	case total > 1:
		rest, err := e.fetchPages(ctx, postType, min(total, MaxPages))
		if err != nil {
			return nil, err
		}
		return append(first, rest...), nil
	case total == 1:
		return first, nil
	default:
		return e.followPages(ctx, postType, first, resp)
	}
}

// fetchPages fetches pages 2..total with a bounded pool and merges them
// by page index.
func (e *Extractor) fetchPages(ctx context.Context, postType string, total int) ([]record, error) {
	pages := make([][]record, total+1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for page := 2; page <= total; page++ {
		g.Go(func() error {
			records, _, err := e.fetchPage(gctx, e.pageURL(postType, page))
			if fetch.HasCode(err, CodeInvalidPage) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("page %d: %w", page, err)
			}
			pages[page] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []record
	for _, records := range pages {
		out = append(out, records...)
	}
	return out, nil
}

// followPages walks pages sequentially when the total is unknown,
// following Link rel="next" when the server sends one.
func (e *Extractor) followPages(ctx context.Context, postType string, records []record, resp *fetch.Response) ([]record, error) {
	last := records
	for page := 2; page <= MaxPages; page++ {
		next := fetch.ParseNextLink(resp.Header.Get("Link"))
		if next == "" {
			if resp.Header.Get("Link") != "" || len(last) < e.opts.PerPage {
				return records, nil
			}
			next = e.pageURL(postType, page)
		}

		var err error
		last, resp, err = e.fetchPage(ctx, next)
		if fetch.HasCode(err, CodeInvalidPage) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		if len(last) == 0 {
			return records, nil
		}
		records = append(records, last...)
	}
	logger.Warn("api: %s: stopped after %d pages", postType, MaxPages)
	return records, nil
}

// fetchPage fetches and decodes one page. Records that fail to decode
// are logged and skipped.
func (e *Extractor) fetchPage(ctx context.Context, pageURL string) ([]record, *fetch.Response, error) {
	var raw []json.RawMessage
	resp, err := e.client.GetJSON(ctx, pageURL, &raw)
	if err != nil {
		return nil, nil, err
	}

	records := make([]record, 0, len(raw))
	for i, msg := range raw {
		var r record
		if err := json.Unmarshal(msg, &r); err != nil {
			logger.Warn("api: skipping record %d of %s: %v", i, pageURL, err)
			continue
		}
		records = append(records, r)
	}
	return records, resp, nil
}

func (e *Extractor) pageURL(postType string, page int) string {
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(e.opts.PerPage))
	q.Set("page", strconv.Itoa(page))
	q.Set("status", "publish")
	q.Set("_embed", "1")
	q.Set("orderby", "modified")
	return e.Endpoint() + "/" + url.PathEscape(postType) + "?" + q.Encode()
}

// toItem maps a record onto a content item, applying category filters.
func (e *Extractor) toItem(r *record, postType string) (domain.ContentItem, bool) {
	categories := r.terms("category")
	names := make([]string, 0, len(categories)+1)
	for _, c := range categories {
		names = append(names, c.Name, c.Slug)
	}
	if r.Category != "" {
		names = append(names, r.Category)
	}
	if !e.allowed(names) {
		return domain.ContentItem{}, false
	}

	body := html.Text(string(r.Content))

	excerpt := html.Text(string(r.Excerpt))
	if excerpt == "" {
		excerpt = html.Text(string(r.Description))
	}
	excerpt = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(excerpt), "[…]"))
	if excerpt == "" {
		excerpt = body
	}

	var modified string
	for _, candidate := range []string{r.ModifiedGMT, r.Modified, r.Date} {
		if candidate != "" {
			modified = candidate
			break
		}
	}
	lastModified, _ := normalisers.ParseDate(modified)

	category := r.Category
	if category == "" {
		category = "page"
		if postType == "posts" {
			category = "article"
		}
	}

	language := r.Language
	if language == "" {
		language = normalisers.DetectLanguage(body)
	}

	link := r.Link
	if link == "" {
		link = r.URL
	}

	return domain.ContentItem{
		URL:          link,
		Title:        html.Text(string(r.Title)),
		Excerpt:      normalisers.Excerpt(excerpt, e.opts.ExcerptLength),
		LastModified: lastModified,
		Category:     category,
		WordCount:    normalisers.WordCount(body),
		Author:       r.authorName(),
		Language:     language,
		Tags:         r.tagNames(),
	}, true
}

// allowed applies include and exclude filters to an item's category names.
func (e *Extractor) allowed(names []string) bool {
	for _, n := range names {
		if _, ok := e.exclude[strings.ToLower(n)]; ok {
			return false
		}
	}
	if len(e.include) == 0 {
		return true
	}
	for _, n := range names {
		if _, ok := e.include[strings.ToLower(n)]; ok {
			return true
		}
	}
	return false
}

func lowerSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[strings.ToLower(v)] = struct{}{}
		}
	}
	return set
}
