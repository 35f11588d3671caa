package api

import (
	"bytes"
	"encoding/json"
)

// textField accepts either a plain string or a WordPress
// {"rendered": "..."} object.
type textField string

func (t *textField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = textField(s)
		return nil
	}
	var obj struct {
		Rendered string `json:"rendered"`
		Raw      string `json:"raw"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj.Rendered != "" {
		*t = textField(obj.Rendered)
	} else {
		*t = textField(obj.Raw)
	}
	return nil
}

// term is a taxonomy term embedded in a post.
type term struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Taxonomy string `json:"taxonomy"`
}

// record is one post or page as returned by a WordPress-style REST API.
// Generic APIs may use the flat url/title/description/category fields.
type record struct {
	Link        string    `json:"link"`
	URL         string    `json:"url"`
	Title       textField `json:"title"`
	Excerpt     textField `json:"excerpt"`
	Description textField `json:"description"`
	Content     textField `json:"content"`
	ModifiedGMT string    `json:"modified_gmt"`
	Modified    string    `json:"modified"`
	Date        string    `json:"date"`
	Category    string    `json:"category"`
	Author      any       `json:"author"`
	Language    string    `json:"language"`
	Tags        any       `json:"tags"`
	Embedded    struct {
		Author []struct {
			Name string `json:"name"`
		} `json:"author"`
		Terms [][]term `json:"wp:term"`
	} `json:"_embedded"`
}

// terms returns the embedded terms of one taxonomy.
func (r *record) terms(taxonomy string) []term {
	var out []term
	for _, group := range r.Embedded.Terms {
		for _, t := range group {
			if t.Taxonomy == taxonomy {
				out = append(out, t)
			}
		}
	}
	return out
}

// authorName prefers the embedded author, then a string author field.
func (r *record) authorName() string {
	if len(r.Embedded.Author) > 0 && r.Embedded.Author[0].Name != "" {
		return r.Embedded.Author[0].Name
	}
	if s, ok := r.Author.(string); ok {
		return s
	}
	return ""
}

// tagNames returns embedded post_tag names, or a string list tags field.
func (r *record) tagNames() []string {
	var out []string
	for _, t := range r.terms("post_tag") {
		out = append(out, t.Name)
	}
	if len(out) > 0 {
		return out
	}
	if list, ok := r.Tags.([]any); ok {
		for _, v := range list {
			if s, ok := v.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
