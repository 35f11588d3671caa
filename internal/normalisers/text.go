package normalisers

import (
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/custodia-labs/llmsync/internal/core/domain"
)

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// CollapseSpace joins all whitespace runs into single spaces.
func CollapseSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Excerpt returns the first sentence of text when it fits in limit runes,
// otherwise the text cut at the last word boundary before limit.
func Excerpt(text string, limit int) string {
	text = CollapseSpace(text)
	if text == "" {
		return ""
	}
	if limit <= 0 {
		limit = domain.DefaultExcerptLength
	}

	if end := sentenceEnd(text); end > 0 && len([]rune(text[:end])) <= limit {
		return text[:end]
	}

	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	cut := string(runes[:limit])
	if i := strings.LastIndexFunc(cut, unicode.IsSpace); i > limit/2 {
		cut = cut[:i]
	}
	return strings.TrimRightFunc(cut, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}) + "..."
}

// sentenceEnd returns the byte offset just past the first sentence
// terminator that is followed by a space, or 0.
func sentenceEnd(text string) int {
	for i := 0; i < len(text)-1; i++ {
		switch text[i] {
		case '.', '!', '?':
			if text[i+1] == ' ' {
				return i + 1
			}
		}
	}
	return 0
}

// commonEnglish holds frequent English function words.
var commonEnglish = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "had": {}, "her": {}, "was": {},
	"one": {}, "our": {}, "out": {}, "day": {}, "get": {}, "has": {},
	"him": {}, "his": {}, "how": {}, "its": {}, "may": {}, "new": {},
	"now": {}, "old": {}, "see": {}, "two": {}, "who": {}, "did": {},
	"a": {}, "an": {}, "of": {}, "to": {}, "in": {}, "is": {}, "it": {},
	"this": {}, "that": {}, "with": {}, "from": {}, "have": {}, "be": {},
	"on": {}, "or": {}, "by": {}, "as": {}, "at": {}, "we": {}, "your": {},
}

// DetectLanguage guesses "en" when more than a tenth of the first hundred
// words are common English words. Returns "" when unsure.
func DetectLanguage(text string) string {
	words := strings.Fields(strings.ToLower(text))
	if len(words) > 100 {
		words = words[:100]
	}
	if len(words) == 0 {
		return ""
	}

	hits := 0
	for _, w := range words {
		w = strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) })
		if _, ok := commonEnglish[w]; ok {
			hits++
		}
	}
	if hits*10 > len(words) {
		return "en"
	}
	return ""
}

// TitleFromFilename turns "getting-started.md" into "Getting Started".
func TitleFromFilename(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	words := strings.FieldsFunc(base, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// dateLayouts are tried in order for string dates.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"02 Jan 2006",
	time.RFC1123Z,
	time.RFC1123,
}

// ParseDate parses the date formats commonly found in front matter, feeds and APIs.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
