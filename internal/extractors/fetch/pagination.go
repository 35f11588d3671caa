package fetch

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

// Pagination headers sent by WordPress-style REST APIs.
const (
	HeaderTotalPages = "X-WP-TotalPages"
	HeaderTotal      = "X-WP-Total"
)

// linkRegex matches Link header entries: <url>; rel="type".
var linkRegex = regexp.MustCompile(`<([^>]+)>;\s*rel="([^"]+)"`)

// ParseNextLink extracts the "next" URL from a Link header.
// Returns empty string if no next link is found.
func ParseNextLink(linkHeader string) string {
	if linkHeader == "" {
		return ""
	}

	for _, part := range strings.Split(linkHeader, ",") {
		matches := linkRegex.FindStringSubmatch(strings.TrimSpace(part))
		if len(matches) == 3 && matches[2] == "next" {
			return matches[1]
		}
	}

	return ""
}

// TotalPages reads the total page count header. Returns 0 when absent.
func TotalPages(header http.Header) int {
	n, err := strconv.Atoi(strings.TrimSpace(header.Get(HeaderTotalPages)))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
