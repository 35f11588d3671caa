package domain

// ManifestDocument is a rendered manifest plus the sidecar edits that
// accompany it. The manifest write is all-or-nothing; sidecar edits are
// best-effort and idempotent.
type ManifestDocument struct {
	// Text is the rendered manifest.
	Text string

	// Path is the file the manifest is written to.
	Path string

	// URL is the public address of the manifest.
	URL string

	// URLPath is the path component of URL, used for robots rules.
	URLPath string

	// SitemapPath is the sitemap to register URL in. Empty skips the edit.
	SitemapPath string

	// RobotsPath is the robots policy to allow URLPath in. Empty skips the edit.
	RobotsPath string

	// ItemCount is the number of entries in Text.
	ItemCount int
}

// ManifestEntry is one parsed entry of a manifest.
type ManifestEntry struct {
	URL      string
	Title    string
	Excerpt  string
	Category string
}

// ManifestSummary is the parsed shape of an existing manifest.
type ManifestSummary struct {
	SiteName    string
	GeneratedAt string
	Entries     []ManifestEntry
}
