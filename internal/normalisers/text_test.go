package normalisers

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWordCount(t *testing.T) {
	assert.Equal(t, 0, WordCount("  \n "))
	assert.Equal(t, 4, WordCount("one two\nthree\tfour"))
}

func TestExcerpt(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  string
	}{
		{"empty", "", 10, ""},
		{"first sentence", "Short intro. Then much more text follows here.", 200, "Short intro."},
		{"whole text fits", "No terminator here", 200, "No terminator here"},
		{"cut at word", "alpha beta gamma delta epsilon", 14, "alpha beta..."},
		{"whitespace collapsed", "a\n\n  b", 200, "a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Excerpt(tt.text, tt.limit))
		})
	}
}

func TestExcerpt_LongFirstSentence(t *testing.T) {
	text := strings.Repeat("word ", 100) + ". Next."
	got := Excerpt(text, 50)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, len([]rune(got)), 53)
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "en", DetectLanguage("This is the start of a post about the new release and its features."))
	assert.Empty(t, DetectLanguage("Dies ist ein deutscher Satz über Katzen und Hunde."))
	assert.Empty(t, DetectLanguage(""))
}

func TestTitleFromFilename(t *testing.T) {
	assert.Equal(t, "Getting Started", TitleFromFilename("docs/getting-started.md"))
	assert.Equal(t, "Api Reference", TitleFromFilename("api_reference.html"))
	assert.Empty(t, TitleFromFilename(".md"))
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2024-01-02", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"2024-01-02T03:04:05+02:00", time.Date(2024, 1, 2, 1, 4, 5, 0, time.UTC)},
		{"2024-01-02 03:04", time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC)},
		{"January 2, 2024", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"2024-01-02T03:04:05", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseDate(tt.input)
			require.True(t, ok)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	_, ok := ParseDate("not a date")
	assert.False(t, ok)
}
