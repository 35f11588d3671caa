package services

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/custodia-labs/llmsync/internal/core/domain"
)

// headerWindow is how many leading lines may precede the title line.
const headerWindow = 10

// ParseManifest reads a manifest produced by the renderer.
// Returns an error wrapping ErrInvalidInput when the header is missing.
func ParseManifest(text string) (domain.ManifestSummary, error) {
	var summary domain.ManifestSummary
	var current *domain.ManifestEntry
	category := ""
	headerSeen := false

	flush := func() {
		if current != nil {
			summary.Entries = append(summary.Entries, *current)
			current = nil
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		lineNo++

		if strings.HasPrefix(line, "#") {
			flush()
			switch {
			case !headerSeen && lineNo <= headerWindow && strings.HasPrefix(line, headerPrefix):
				headerSeen = true
				summary.SiteName = strings.TrimPrefix(line, headerPrefix)
			case summary.GeneratedAt == "" && strings.HasPrefix(line, "# Generated on: "):
				summary.GeneratedAt = strings.TrimPrefix(line, "# Generated on: ")
			case strings.HasPrefix(line, "# ========== ") && strings.HasSuffix(line, " =========="):
				category = groupName(line)
			}
			continue
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}

		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		if key == "URL" {
			flush()
			current = &domain.ManifestEntry{URL: value, Category: category}
			continue
		}
		if current == nil {
			current = &domain.ManifestEntry{Category: category}
		}
		switch key {
		case "Title":
			current.Title = value
		case "Excerpt":
			current.Excerpt = value
		case "Type":
			current.Category = value
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("%w: read manifest: %w", domain.ErrInvalidInput, err)
	}
	if !headerSeen {
		return summary, fmt.Errorf("%w: missing %q header", domain.ErrInvalidInput, strings.TrimSpace(headerPrefix))
	}
	return summary, nil
}

// ValidateManifest reports every structural problem in text.
// An empty result means the manifest is valid.
func ValidateManifest(text string) []string {
	summary, err := ParseManifest(text)
	var issues []string
	if err != nil {
		issues = append(issues, err.Error())
	}
	if len(summary.Entries) == 0 {
		issues = append(issues, "no content entries found")
	}
	seen := map[string]int{}
	for i, entry := range summary.Entries {
		n := i + 1
		if entry.URL == "" {
			issues = append(issues, fmt.Sprintf("entry %d has no URL", n))
		}
		if entry.Title == "" {
			issues = append(issues, fmt.Sprintf("entry %d (%s) has no title", n, entry.URL))
		}
		if entry.URL != "" {
			if first, dup := seen[entry.URL]; dup {
				issues = append(issues, fmt.Sprintf("entry %d duplicates entry %d (%s)", n, first, entry.URL))
			} else {
				seen[entry.URL] = n
			}
		}
	}
	return issues
}

// groupName extracts "ARTICLE" from "# ========== ARTICLE (3 items) ==========".
func groupName(line string) string {
	inner := strings.TrimSuffix(strings.TrimPrefix(line, "# ========== "), " ==========")
	if i := strings.LastIndex(inner, " ("); i >= 0 {
		inner = inner[:i]
	}
	return strings.ToLower(inner)
}
