// Package filesystem extracts content items from a directory of Markdown
// and HTML files, the way a static site generator would publish them.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/core/ports/driven"
	"github.com/custodia-labs/llmsync/internal/logger"
	"github.com/custodia-labs/llmsync/internal/normalisers"
	"github.com/custodia-labs/llmsync/internal/normalisers/frontmatter"
)

// Type is the extractor type identifier.
const Type = domain.ExtractorFilesystem

// DefaultWorkers bounds concurrent file reads when none is configured.
const DefaultWorkers = 4

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Options configures an Extractor.
type Options struct {
	SourceID      string
	Root          string
	SiteURL       string
	Include       []string
	Exclude       []string
	FrontMatter   bool
	ExcerptLength int
	URLStyle      string
	IncludeDrafts bool
	Workers       int
}

// OptionsFromConfig maps configuration onto extractor options.
func OptionsFromConfig(cfg *domain.Config) Options {
	return Options{
		SourceID:      cfg.SourceID(),
		Root:          cfg.Filesystem.ContentDirectory,
		SiteURL:       cfg.SiteURL,
		Include:       cfg.Filesystem.IncludePatterns,
		Exclude:       cfg.Filesystem.ExcludePatterns,
		FrontMatter:   cfg.Filesystem.FrontMatter,
		ExcerptLength: cfg.Filesystem.ExcerptLength,
		URLStyle:      cfg.Filesystem.URLStyle,
		IncludeDrafts: cfg.IncludeDrafts,
		Workers:       cfg.Performance.MaxWorkers,
	}
}

// Extractor scans a content root.
type Extractor struct {
	opts     Options
	include  []matcher
	exclude  []matcher
	registry driven.NormaliserRegistry
}

// matcher is a compiled pattern. Patterns without a slash also match
// the file's base name, so "*.md" selects Markdown at any depth.
type matcher struct {
	glob     glob.Glob
	baseOnly bool
}

func (m matcher) match(rel string) bool {
	if m.glob.Match(rel) {
		return true
	}
	return m.baseOnly && m.glob.Match(path.Base(rel))
}

// New creates a filesystem extractor. Pattern syntax errors are
// reported as ErrInvalidInput.
func New(opts Options, registry driven.NormaliserRegistry) (*Extractor, error) {
	include, err := compile(opts.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compile(opts.Exclude)
	if err != nil {
		return nil, err
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.URLStyle == "" {
		opts.URLStyle = domain.URLStyleHTML
	}
	return &Extractor{
		opts:     opts,
		include:  include,
		exclude:  exclude,
		registry: registry,
	}, nil
}

func compile(patterns []string) ([]matcher, error) {
	out := make([]matcher, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimPrefix(filepath.ToSlash(strings.TrimSpace(p)), "./")
		if p == "" {
			continue
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("%w: pattern %q: %v", domain.ErrInvalidInput, p, err)
		}
		out = append(out, matcher{glob: g, baseOnly: !strings.Contains(p, "/")})
	}
	return out, nil
}

// Type returns the extractor type identifier.
func (e *Extractor) Type() string {
	return Type
}

// SourceID returns the configured source ID.
func (e *Extractor) SourceID() string {
	return e.opts.SourceID
}

// Validate checks the content root exists and is a directory.
func (e *Extractor) Validate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := os.Stat(e.opts.Root)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: content directory %s does not exist", domain.ErrInvalidInput, e.opts.Root)
	}
	if err != nil {
		return fmt.Errorf("stat content directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, e.opts.Root)
	}
	return nil
}

// Extract walks the content root and builds one item per selected file.
// Unreadable files are logged and skipped.
func (e *Extractor) Extract(ctx context.Context) ([]domain.ContentItem, error) {
	if err := e.Validate(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}

	files, err := e.listFiles(ctx)
	if err != nil {
		return nil, err
	}
	logger.Debug("filesystem: %d files selected under %s", len(files), e.opts.Root)

	results := make([]*domain.ContentItem, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, rel := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			item, err := e.readItem(gctx, rel)
			if err != nil {
				logger.Warn("filesystem: skipping %s: %v", rel, err)
				return nil
			}
			results[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := make([]domain.ContentItem, 0, len(results))
	for _, item := range results {
		if item != nil {
			items = append(items, *item)
		}
	}
	return items, nil
}

// listFiles returns slash-separated paths relative to the root,
// in walk order. Hidden files and directories are skipped.
func (e *Extractor) listFiles(ctx context.Context) ([]string, error) {
	var files []string
	err := filepath.WalkDir(e.opts.Root, func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if p == e.opts.Root {
				return err
			}
			logger.Warn("filesystem: cannot read %s: %v", p, err)
			return nil
		}

		rel, relErr := filepath.Rel(e.opts.Root, p)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if isHidden(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if e.excluded(rel + "/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if e.selected(rel) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: walk %s: %v", domain.ErrExtraction, e.opts.Root, err)
	}
	return files, nil
}

func (e *Extractor) selected(rel string) bool {
	if e.excluded(rel) {
		return false
	}
	if len(e.include) == 0 {
		return true
	}
	for _, m := range e.include {
		if m.match(rel) {
			return true
		}
	}
	return false
}

func (e *Extractor) excluded(rel string) bool {
	for _, m := range e.exclude {
		if m.match(rel) {
			return true
		}
	}
	return false
}

// isHidden reports whether any segment of a relative path starts with a dot.
func isHidden(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") && seg != "." && seg != ".." {
			return true
		}
	}
	return false
}

// readItem reads and normalises one file. A nil item with a nil error
// means the file was deliberately skipped (a draft).
func (e *Extractor) readItem(ctx context.Context, rel string) (*domain.ContentItem, error) {
	full := filepath.Join(e.opts.Root, filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(full)
	if err != nil {
		return nil, err
	}

	var meta frontmatter.Meta
	if e.opts.FrontMatter {
		m, body, _, fmErr := frontmatter.Split(content)
		if fmErr != nil {
			logger.Warn("filesystem: front matter in %s ignored: %v", rel, fmErr)
		} else {
			meta, content = m, body
		}
	}

	if draft, ok := meta.Bool("draft"); ok && draft && !e.opts.IncludeDrafts {
		logger.Debug("filesystem: %s is a draft", rel)
		return nil, nil
	}

	raw := &domain.RawDocument{
		SourceID: e.opts.SourceID,
		URI:      rel,
		MIMEType: normalisers.MIMETypeForPath(rel),
		Content:  content,
		ModTime:  info.ModTime(),
		Metadata: meta,
	}
	result, err := e.registry.Normalise(ctx, raw)
	if err != nil {
		return nil, err
	}

	item := e.buildItem(rel, raw, result, meta)
	return &item, nil
}

func (e *Extractor) buildItem(rel string, raw *domain.RawDocument, result *driven.NormaliseResult, meta frontmatter.Meta) domain.ContentItem {
	pageURL := e.pageURL(rel)

	title := meta.String("title")
	if title == "" {
		title = result.Title
	}
	if title == "" {
		title = normalisers.TitleFromFilename(rel)
		if strings.EqualFold(title, "index") {
			title = domain.TitleFromURL(pageURL)
		}
	}

	excerpt := meta.String("excerpt", "description", "summary")
	if excerpt == "" {
		if desc, ok := result.Metadata["description"].(string); ok {
			excerpt = desc
		}
	}
	if excerpt == "" {
		excerpt = normalisers.Excerpt(result.Text, e.opts.ExcerptLength)
	}

	modified, ok := meta.Time("lastmod", "last_modified", "updated", "modified", "date")
	if !ok {
		modified = raw.ModTime.UTC()
	}

	category := meta.String("type", "category")
	if category == "" {
		if cats := meta.Strings("categories"); len(cats) > 0 {
			category = cats[0]
		}
	}
	if category == "" {
		category = "article"
	}

	language := meta.String("language", "lang")
	if language == "" {
		if lang, ok := result.Metadata["language"].(string); ok {
			language = lang
		}
	}
	if language == "" {
		language = normalisers.DetectLanguage(result.Text)
	}

	return domain.ContentItem{
		URL:          pageURL,
		Title:        title,
		Excerpt:      excerpt,
		LastModified: modified,
		Category:     category,
		WordCount:    normalisers.WordCount(result.Text),
		Author:       meta.String("author"),
		Language:     language,
		Tags:         meta.Strings("tags", "keywords"),
	}
}

// pageURL maps a relative file path onto its published URL.
func (e *Extractor) pageURL(rel string) string {
	ext := path.Ext(rel)
	stem := strings.TrimSuffix(rel, ext)

	var p string
	switch e.opts.URLStyle {
	case domain.URLStylePretty:
		switch {
		case stem == "index":
			p = ""
		case path.Base(stem) == "index":
			p = path.Dir(stem) + "/"
		default:
			p = stem
		}
	default:
		switch strings.ToLower(ext) {
		case ".md", ".markdown", ".mdx":
			p = stem + ".html"
		default:
			p = rel
		}
	}

	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.TrimRight(e.opts.SiteURL, "/") + "/" + strings.Join(segments, "/")
}
