package domain

import (
	"net/url"
	"path"
	"sort"
	"strings"
	"time"
	"unicode"
)

// DefaultExcerptLength bounds excerpts, in runes, when no length is configured.
const DefaultExcerptLength = 300

// ContentItem is one discoverable page or unit of content.
// Items are built fresh on every extraction and never mutated afterwards.
type ContentItem struct {
	// URL is the absolute address of the item. Unique within a run.
	URL string `json:"url"`

	// Title is never empty after normalisation; it may equal the URL
	// when the source carries no title.
	Title string `json:"title"`

	// Excerpt is a short plain-text summary.
	Excerpt string `json:"excerpt,omitempty"`

	// LastModified is zero when the source does not report a date.
	LastModified time.Time `json:"last_modified,omitempty"`

	// Category is a free-form grouping tag (article, page, docs, ...).
	Category string `json:"category,omitempty"`

	// WordCount is the number of words in the body text.
	WordCount int `json:"word_count,omitempty"`

	// Author is the display name of the author, if known.
	Author string `json:"author,omitempty"`

	// Language is a BCP 47 tag such as "en", if known.
	Language string `json:"language,omitempty"`

	// Tags are free-form keywords.
	Tags []string `json:"tags,omitempty"`
}

// ReadingTime estimates minutes to read at 250 words per minute.
// Returns 0 when the word count is unknown.
func (c ContentItem) ReadingTime() int {
	if c.WordCount <= 0 {
		return 0
	}
	minutes := (c.WordCount + 125) / 250
	if minutes < 1 {
		return 1
	}
	return minutes
}

// IsDraft reports whether the item is marked as a draft by tag or title.
func (c ContentItem) IsDraft() bool {
	for _, tag := range c.Tags {
		if strings.EqualFold(tag, "draft") {
			return true
		}
	}
	return strings.Contains(strings.ToLower(c.Title), "draft")
}

// NormaliseItems applies the shared item policy of every extractor.
//
// Items without a URL are rejected. Empty titles are synthesised from the
// URL. Duplicate URLs keep the most recently modified item. The survivors
// are returned sorted by URL, so the result does not depend on the order
// in which items were fetched.
func NormaliseItems(items []ContentItem) (kept []ContentItem, rejected int) {
	byURL := make(map[string]ContentItem, len(items))
	for _, item := range items {
		item.URL = strings.TrimSpace(item.URL)
		if item.URL == "" {
			rejected++
			continue
		}
		item.Title = strings.TrimSpace(item.Title)
		if item.Title == "" {
			item.Title = TitleFromURL(item.URL)
		}
		if item.WordCount < 0 {
			item.WordCount = 0
		}

		existing, ok := byURL[item.URL]
		if !ok || newer(item, existing) {
			byURL[item.URL] = item
		}
	}

	kept = make([]ContentItem, 0, len(byURL))
	for _, item := range byURL {
		kept = append(kept, item)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].URL < kept[j].URL })
	return kept, rejected
}

// newer reports whether a should replace b for the same URL.
// Ties fall through to word count and title so the choice is order independent.
func newer(a, b ContentItem) bool {
	if !a.LastModified.Equal(b.LastModified) {
		return a.LastModified.After(b.LastModified)
	}
	if a.WordCount != b.WordCount {
		return a.WordCount > b.WordCount
	}
	if a.Title != b.Title {
		return a.Title < b.Title
	}
	return a.Excerpt < b.Excerpt
}

// TitleFromURL synthesises a title from the last path segment of a URL.
// "/blog/hello-world" becomes "Hello World"; the root becomes "Home Page".
// Unparseable input is returned unchanged.
func TitleFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	p := strings.Trim(u.Path, "/")
	if p == "" {
		return "Home Page"
	}
	last := path.Base(p)
	if ext := path.Ext(last); ext != "" {
		last = strings.TrimSuffix(last, ext)
	}

	words := strings.FieldsFunc(last, func(r rune) bool {
		return r == '-' || r == '_' || r == '+' || r == ' '
	})
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	title := strings.Join(words, " ")
	switch strings.ToLower(title) {
	case "", "index", "home", "default":
		return "Home Page"
	}
	return title
}

// Truncate shortens s to at most limit runes, appending "..." when cut.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit])) + "..."
}
