// Package frontmatter splits a metadata header from a content file.
//
// Two delimiters are recognised at the very start of a file:
//
//	---            YAML, closed by a line of "---" (or "...")
//	+++            TOML, closed by a line of "+++"
//
// Keys are matched case-insensitively by the accessors on Meta.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v2"

	"github.com/custodia-labs/llmsync/internal/normalisers"
)

// Format names the syntax of a front matter block.
type Format string

// Front matter formats.
const (
	FormatNone Format = ""
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ErrUnterminated indicates an opening delimiter without a closing one.
var ErrUnterminated = errors.New("frontmatter: unterminated block")

// Meta holds parsed front matter keyed by lower-cased name.
type Meta map[string]any

// Split separates front matter from body. Content without a front matter
// block returns a nil Meta, FormatNone and the content unchanged.
func Split(content []byte) (Meta, []byte, Format, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))

	var (
		format Format
		closer []string
	)
	switch {
	case hasDelimiter(content, "---"):
		format, closer = FormatYAML, []string{"---", "..."}
	case hasDelimiter(content, "+++"):
		format, closer = FormatTOML, []string{"+++"}
	default:
		return nil, content, FormatNone, nil
	}

	header, body, ok := cut(content, closer)
	if !ok {
		return nil, content, format, ErrUnterminated
	}

	raw := make(map[string]any)
	var err error
	if format == FormatYAML {
		err = yaml.Unmarshal(header, &raw)
	} else {
		err = toml.Unmarshal(header, &raw)
	}
	if err != nil {
		return nil, content, format, fmt.Errorf("frontmatter: parse %s: %w", format, err)
	}

	meta := make(Meta, len(raw))
	for k, v := range raw {
		meta[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return meta, body, format, nil
}

// hasDelimiter reports whether content opens with a delimiter line.
func hasDelimiter(content []byte, delim string) bool {
	line, _, _ := bytes.Cut(content, []byte("\n"))
	return string(bytes.TrimRight(line, " \t\r")) == delim
}

// cut returns the block between the opening line and the first closing
// line, and everything after the closing line.
func cut(content []byte, closers []string) (header, body []byte, ok bool) {
	_, rest, found := bytes.Cut(content, []byte("\n"))
	if !found {
		return nil, nil, false
	}

	offset := 0
	for offset <= len(rest) {
		end := bytes.IndexByte(rest[offset:], '\n')
		lineEnd := len(rest)
		next := len(rest)
		if end >= 0 {
			lineEnd = offset + end
			next = lineEnd + 1
		}
		line := strings.TrimRight(string(rest[offset:lineEnd]), " \t\r")
		for _, closer := range closers {
			if line == closer {
				return rest[:offset], rest[next:], true
			}
		}
		if end < 0 {
			break
		}
		offset = next
	}
	return nil, nil, false
}

// String returns the value of the first key present as a string.
func (m Meta) String(keys ...string) string {
	for _, key := range keys {
		switch v := m[key].(type) {
		case nil:
			continue
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case time.Time:
			return v.Format(time.RFC3339)
		case fmt.Stringer:
			return v.String()
		default:
			return fmt.Sprint(v)
		}
	}
	return ""
}

// Strings returns a list value, accepting a sequence or a comma-separated string.
func (m Meta) Strings(keys ...string) []string {
	for _, key := range keys {
		switch v := m[key].(type) {
		case nil:
			continue
		case string:
			var out []string
			for _, part := range strings.Split(v, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
			if len(out) > 0 {
				return out
			}
		case []any:
			var out []string
			for _, item := range v {
				if s := strings.TrimSpace(fmt.Sprint(item)); s != "" && item != nil {
					out = append(out, s)
				}
			}
			if len(out) > 0 {
				return out
			}
		case []string:
			if len(v) > 0 {
				return v
			}
		}
	}
	return nil
}

// Bool returns a boolean value, accepting true/false, yes/no and 1/0 strings.
func (m Meta) Bool(key string) (value, ok bool) {
	switch v := m[key].(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "yes", "on":
			return true, true
		case "no", "off":
			return false, true
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return b, err == nil
	case int:
		return v != 0, true
	case int64:
		return v != 0, true
	}
	return false, false
}

// Int returns an integer value.
func (m Meta) Int(key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	}
	return 0, false
}

// Time returns the value of the first key present as a time.
// Dates without a zone are read as UTC.
func (m Meta) Time(keys ...string) (time.Time, bool) {
	for _, key := range keys {
		switch v := m[key].(type) {
		case time.Time:
			return v.UTC(), true
		case toml.LocalDateTime:
			return v.AsTime(time.UTC), true
		case toml.LocalDate:
			return v.AsTime(time.UTC), true
		case string:
			if t, ok := normalisers.ParseDate(v); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
