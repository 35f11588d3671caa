package driven

// SiteWriter applies a rendered manifest and its sidecar edits to disk.
// Each operation is independently retryable and idempotent.
type SiteWriter interface {
	// WriteManifest atomically replaces path with text. A reader never
	// observes a partially written file. Returns an error wrapping
	// domain.ErrWrite on failure.
	WriteManifest(path, text string) error

	// EnsureSitemapEntry registers manifestURL in the sitemap at
	// sitemapPath. Reports whether the file changed.
	EnsureSitemapEntry(sitemapPath, manifestURL string) (bool, error)

	// EnsureRobotsRule allows manifestPath in the robots policy at
	// robotsPath. Reports whether the file changed.
	EnsureRobotsRule(robotsPath, manifestPath string) (bool, error)
}
