package sitefiles

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/temoto/robotstxt"

	"github.com/custodia-labs/llmsync/internal/core/domain"
)

// ErrManifestBlocked reports that the robots policy still disallows the
// manifest for generic crawlers after the edit.
var ErrManifestBlocked = errors.New("robots policy still blocks the manifest")

const robotsComment = "# llms.txt for AI and language models\n# Learn more: https://llmstxt.org/\n"

// EnsureRobotsRule allows manifestPath in the robots policy at robotsPath.
// A missing file is created with a single wildcard group. The result is
// checked with a robots parser; a manifest that is still blocked is
// reported as ErrManifestBlocked.
func (w *Writer) EnsureRobotsRule(robotsPath, manifestPath string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	content, err := os.ReadFile(robotsPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("%w: read %s: %v", domain.ErrWrite, robotsPath, err)
	}
	text := string(content)

	changed := false
	if !hasAllow(text, manifestPath) {
		text = appendAllow(text, manifestPath)
		if err := w.replace(robotsPath, []byte(text), 0o644); err != nil {
			return false, fmt.Errorf("%w: %s: %v", domain.ErrWrite, robotsPath, err)
		}
		changed = true
	}

	return changed, verifyAllowed(text, manifestPath)
}

// hasAllow reports whether an Allow directive for path already exists.
func hasAllow(text, path string) bool {
	for _, line := range strings.Split(text, "\n") {
		key, value, ok := directive(line)
		if ok && key == "allow" && value == path {
			return true
		}
	}
	return false
}

// appendAllow adds an Allow line. It joins the trailing group when that
// group applies to every agent and starts a wildcard group otherwise.
func appendAllow(text, path string) string {
	var b strings.Builder
	b.WriteString(text)
	if text != "" && !strings.HasSuffix(text, "\n") {
		b.WriteString("\n")
	}
	if text != "" {
		b.WriteString("\n")
	}
	b.WriteString(robotsComment)
	if !lastGroupIsWildcard(text) {
		b.WriteString("User-agent: *\n")
	}
	b.WriteString("Allow: " + path + "\n")
	return b.String()
}

// lastGroupIsWildcard reports whether the final group's user agents
// include "*".
func lastGroupIsWildcard(text string) bool {
	var agents []string
	inAgents := false
	for _, line := range strings.Split(text, "\n") {
		key, value, ok := directive(line)
		if !ok {
			continue
		}
		switch key {
		case "user-agent":
			if !inAgents {
				agents = agents[:0]
				inAgents = true
			}
			agents = append(agents, value)
		case "allow", "disallow", "crawl-delay":
			inAgents = false
		}
	}
	for _, a := range agents {
		if a == "*" {
			return true
		}
	}
	return false
}

// directive splits "Key: value # comment" into a lower-cased key and value.
func directive(line string) (key, value string, ok bool) {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	key, value, ok = strings.Cut(line, ":")
	if !ok {
		return "", "", false
	}
	return strings.ToLower(strings.TrimSpace(key)), strings.TrimSpace(value), true
}

func verifyAllowed(text, path string) error {
	data, err := robotstxt.FromString(text)
	if err != nil {
		return fmt.Errorf("parse robots policy: %w", err)
	}
	if !data.TestAgent(path, "*") {
		return fmt.Errorf("%w: %s", ErrManifestBlocked, path)
	}
	return nil
}
