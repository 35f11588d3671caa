package sitemap

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/logger"
	"github.com/custodia-labs/llmsync/internal/normalisers"
	"github.com/custodia-labs/llmsync/internal/normalisers/html"
)

// enrich fetches each page and replaces the synthesised title with the
// article's own, adding excerpt, word count and language. A page that
// cannot be fetched or parsed keeps its synthesised fields.
func (e *Extractor) enrich(ctx context.Context, items []domain.ContentItem) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)

	for i := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := e.enrichOne(gctx, &items[i]); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Debug("sitemap: enrich %s: %v", items[i].URL, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (e *Extractor) enrichOne(ctx context.Context, item *domain.ContentItem) error {
	pageURL, err := url.Parse(item.URL)
	if err != nil {
		return err
	}

	resp, err := e.client.Get(ctx, item.URL)
	if err != nil {
		return err
	}

	article, err := readability.FromReader(bytes.NewReader(resp.Body), pageURL)
	if err != nil {
		return fmt.Errorf("readability: %w", err)
	}

	text := html.Text(article.Content)
	if article.Title != "" {
		item.Title = article.Title
	}
	excerpt := article.Excerpt
	if excerpt == "" {
		excerpt = text
	}
	item.Excerpt = normalisers.Excerpt(excerpt, e.opts.ExcerptLength)
	item.WordCount = normalisers.WordCount(text)
	item.Language = normalisers.DetectLanguage(text)
	return nil
}
