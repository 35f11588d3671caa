package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/llmsync/internal/core/domain"
)

// maxRenderedTags bounds the Tags line of an entry.
const maxRenderedTags = 10

// RenderConfig carries everything the renderer needs besides the items.
// GeneratedAt is explicit so identical inputs render identical bytes.
type RenderConfig struct {
	SiteName         string
	SiteURL          string
	Description      string
	ContactEmail     string
	MinWordCount     int
	SortBy           string
	MaxItems         int
	GroupByCategory  bool
	IncludeStats     bool
	IncludeDrafts    bool
	ExcerptLength    int
	GeneratedAt      time.Time
	GeneratorVersion string
}

// NewRenderConfig derives the render settings from cfg.
func NewRenderConfig(cfg *domain.Config, generatedAt time.Time, version string) RenderConfig {
	return RenderConfig{
		SiteName:         cfg.SiteName,
		SiteURL:          cfg.SiteURL,
		Description:      cfg.Description,
		ContactEmail:     cfg.ContactEmail,
		MinWordCount:     cfg.MinWordCount,
		SortBy:           cfg.Output.SortBy,
		MaxItems:         cfg.MaxItems,
		GroupByCategory:  cfg.Output.GroupByCategory,
		IncludeStats:     cfg.Output.IncludeStats,
		IncludeDrafts:    cfg.IncludeDrafts,
		ExcerptLength:    cfg.Output.ExcerptLength,
		GeneratedAt:      generatedAt,
		GeneratorVersion: version,
	}
}

// Renderer turns an item set into manifest text. It is stateless.
type Renderer struct{}

// NewRenderer creates a renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Select applies the filtering, ordering and truncation rules and returns
// the items that will appear in the manifest, in manifest order.
// The input slice is not modified.
func (r *Renderer) Select(items []domain.ContentItem, cfg RenderConfig) []domain.ContentItem {
	selected := make([]domain.ContentItem, 0, len(items))
	for _, item := range items {
		if !cfg.IncludeDrafts && item.IsDraft() {
			continue
		}
		// A zero count is unknown and never filtered.
		if item.WordCount > 0 && item.WordCount < cfg.MinWordCount {
			continue
		}
		selected = append(selected, item)
	}

	sort.SliceStable(selected, lessFunc(selected, cfg.SortBy))

	if cfg.MaxItems > 0 && len(selected) > cfg.MaxItems {
		selected = selected[:cfg.MaxItems]
	}
	return selected
}

// lessFunc orders by the configured key with a URL tie-break, which makes
// the order total for a deduplicated item set.
func lessFunc(items []domain.ContentItem, sortBy string) func(i, j int) bool {
	switch sortBy {
	case domain.SortByTitle:
		return func(i, j int) bool {
			a, b := strings.ToLower(items[i].Title), strings.ToLower(items[j].Title)
			if a != b {
				return a < b
			}
			return items[i].URL < items[j].URL
		}
	case domain.SortByDateAsc:
		return func(i, j int) bool {
			a, b := items[i].LastModified, items[j].LastModified
			if !a.Equal(b) {
				return a.Before(b)
			}
			return items[i].URL < items[j].URL
		}
	default:
		return func(i, j int) bool {
			a, b := items[i].LastModified, items[j].LastModified
			if !a.Equal(b) {
				return a.After(b)
			}
			return items[i].URL < items[j].URL
		}
	}
}

// Render selects items and renders the complete manifest.
func (r *Renderer) Render(items []domain.ContentItem, cfg RenderConfig) string {
	return r.RenderSelected(r.Select(items, cfg), cfg)
}

// RenderSelected renders items that have already been through Select.
func (r *Renderer) RenderSelected(selected []domain.ContentItem, cfg RenderConfig) string {
	var b strings.Builder
	writeHeader(&b, cfg, len(selected))

	if cfg.IncludeStats {
		writeStats(&b, selected)
	}

	if cfg.GroupByCategory {
		for _, group := range groupByCategory(selected) {
			fmt.Fprintf(&b, "# ========== %s (%d items) ==========\n\n", strings.ToUpper(group.name), len(group.items))
			for _, item := range group.items {
				writeEntry(&b, item, cfg.ExcerptLength)
			}
		}
	} else {
		for _, item := range selected {
			writeEntry(&b, item, cfg.ExcerptLength)
		}
	}

	writeFooter(&b, cfg, len(selected))
	return b.String()
}

func writeHeader(b *strings.Builder, cfg RenderConfig, count int) {
	fmt.Fprintf(b, "%s%s\n", headerPrefix, oneLine(cfg.SiteName))
	b.WriteString("#\n")
	fmt.Fprintf(b, "# Generated on: %s\n", formatTime(cfg.GeneratedAt))
	fmt.Fprintf(b, "# Generator: llmsync %s\n", cfg.GeneratorVersion)
	fmt.Fprintf(b, "# Contact: %s\n", orNA(cfg.ContactEmail))
	fmt.Fprintf(b, "# Website: %s\n", cfg.SiteURL)
	fmt.Fprintf(b, "# Description: %s\n", oneLine(cfg.Description))
	fmt.Fprintf(b, "# Items: %d\n", count)
	b.WriteString("#\n")
	b.WriteString("# This file describes the content of this website for large language\n")
	b.WriteString("# models and AI systems. Learn more: https://llmstxt.org/\n")
	b.WriteString("#\n")
	b.WriteString(ruleLine + "\n\n")
}

func writeStats(b *strings.Builder, items []domain.ContentItem) {
	totalWords := 0
	types := map[string]int{}
	languages := map[string]int{}
	for _, item := range items {
		totalWords += item.WordCount
		types[orDefault(item.Category, "uncategorized")]++
		languages[orDefault(item.Language, "unknown")]++
	}
	avg := 0
	if len(items) > 0 {
		avg = totalWords / len(items)
	}

	b.WriteString("# Statistics\n")
	fmt.Fprintf(b, "# Total items: %d\n", len(items))
	fmt.Fprintf(b, "# Total words: %s\n", groupThousands(totalWords))
	fmt.Fprintf(b, "# Average words per item: %d\n", avg)
	fmt.Fprintf(b, "# Content types: %s\n", countList(types))
	fmt.Fprintf(b, "# Languages: %s\n", countList(languages))
	b.WriteString("\n")
}

func writeEntry(b *strings.Builder, item domain.ContentItem, excerptLength int) {
	fmt.Fprintf(b, "URL: %s\n", item.URL)
	fmt.Fprintf(b, "Title: %s\n", oneLine(item.Title))
	if excerpt := domain.Truncate(oneLine(item.Excerpt), excerptLength); excerpt != "" {
		fmt.Fprintf(b, "Excerpt: %s\n", excerpt)
	}
	if item.Category != "" {
		fmt.Fprintf(b, "Type: %s\n", oneLine(item.Category))
	}
	if !item.LastModified.IsZero() {
		fmt.Fprintf(b, "Last Modified: %s\n", formatTime(item.LastModified))
	}
	if item.Author != "" {
		fmt.Fprintf(b, "Author: %s\n", oneLine(item.Author))
	}
	if item.Language != "" {
		fmt.Fprintf(b, "Language: %s\n", item.Language)
	}
	if len(item.Tags) > 0 {
		tags := item.Tags
		if len(tags) > maxRenderedTags {
			tags = tags[:maxRenderedTags]
		}
		fmt.Fprintf(b, "Tags: %s\n", oneLine(strings.Join(tags, ", ")))
	}
	if item.WordCount > 0 {
		fmt.Fprintf(b, "Word Count: %d\n", item.WordCount)
		fmt.Fprintf(b, "Reading Time: %d minutes\n", item.ReadingTime())
	}
	b.WriteString("\n")
}

func writeFooter(b *strings.Builder, cfg RenderConfig, count int) {
	b.WriteString(ruleLine + "\n")
	b.WriteString("# End of LLMs.txt\n")
	fmt.Fprintf(b, "# Total content items: %d\n", count)
	fmt.Fprintf(b, "# Generated on: %s\n", formatTime(cfg.GeneratedAt))
	b.WriteString(ruleLine + "\n")
}

type categoryGroup struct {
	name  string
	items []domain.ContentItem
}

// groupByCategory keeps the first-seen order of categories so grouping
// never reorders entries within a group.
func groupByCategory(items []domain.ContentItem) []categoryGroup {
	index := map[string]int{}
	var groups []categoryGroup
	for _, item := range items {
		name := orDefault(item.Category, "uncategorized")
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, categoryGroup{name: name})
		}
		groups[i].items = append(groups[i].items, item)
	}
	return groups
}

const (
	headerPrefix = "# LLMs.txt for "
	ruleLine     = "# =========================================="
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func orNA(s string) string {
	return orDefault(s, "N/A")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func countList(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s(%d)", k, counts[k]))
	}
	return strings.Join(parts, ", ")
}

func groupThousands(n int) string {
	s := strconv.Itoa(n)
	if n < 0 {
		return s
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}
