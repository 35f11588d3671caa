package domain

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Extractor names accepted by Config.Extractor.
const (
	ExtractorSitemap    = "sitemap"
	ExtractorAPI        = "api"
	ExtractorFilesystem = "filesystem"
	ExtractorDelegated  = "delegated"
)

// PlaceholderSecret is the webhook secret shipped in generated configs.
// A webhook configured with it refuses to start.
const PlaceholderSecret = "change-this-secret"

// Sort keys accepted by OutputConfig.SortBy.
const (
	SortByLastModified = "last_modified"
	SortByTitle        = "title"
	SortByDateAsc      = "date_asc"
)

// URL styles accepted by FilesystemConfig.URLStyle.
const (
	URLStyleHTML   = "html"
	URLStylePretty = "pretty"
)

// Config is the complete, immutable configuration for one source.
// It is loaded once at process start; see the config/file adapter.
type Config struct {
	SourceIDOverride string `toml:"source_id" yaml:"source_id"`
	SiteURL          string `toml:"site_url" yaml:"site_url" env:"SITE_URL"`
	SiteName         string `toml:"site_name" yaml:"site_name" env:"SITE_NAME"`
	Description      string `toml:"description" yaml:"description"`
	ContactEmail     string `toml:"contact_email" yaml:"contact_email"`
	Extractor        string `toml:"extractor" yaml:"extractor" env:"EXTRACTOR"`

	OutputPath          string `toml:"output_path" yaml:"output_path" env:"OUTPUT_PATH"`
	ManifestURLOverride string `toml:"manifest_url" yaml:"manifest_url"`
	BackupFiles         bool   `toml:"backup_files" yaml:"backup_files"`
	BackupKeep          int    `toml:"backup_keep" yaml:"backup_keep"`

	MaxItems      int  `toml:"max_items" yaml:"max_items"`
	MinWordCount  int  `toml:"min_word_count" yaml:"min_word_count"`
	IncludeDrafts bool `toml:"include_drafts" yaml:"include_drafts"`

	CacheFile      string `toml:"cache_file" yaml:"cache_file" env:"CACHE_FILE"`
	CacheDuration  int    `toml:"cache_duration" yaml:"cache_duration"`
	RunTimeout     int    `toml:"run_timeout" yaml:"run_timeout"`
	ExpectNonEmpty bool   `toml:"expect_nonempty" yaml:"expect_nonempty"`

	Output      OutputConfig      `toml:"output" yaml:"output"`
	Sidecars    SidecarConfig     `toml:"sidecars" yaml:"sidecars"`
	API         APIConfig         `toml:"api" yaml:"api" envPrefix:"API_"`
	Filesystem  FilesystemConfig  `toml:"filesystem" yaml:"filesystem"`
	Sitemap     SitemapConfig     `toml:"sitemap" yaml:"sitemap"`
	Delegated   DelegatedConfig   `toml:"delegated" yaml:"delegated"`
	Webhook     WebhookConfig     `toml:"webhook" yaml:"webhook" envPrefix:"WEBHOOK_"`
	Schedule    ScheduleConfig    `toml:"schedule" yaml:"schedule"`
	Watch       WatchConfig       `toml:"watch" yaml:"watch"`
	Performance PerformanceConfig `toml:"performance" yaml:"performance"`
	Logging     LoggingConfig     `toml:"logging" yaml:"logging" envPrefix:"LOG_"`
}

// OutputConfig controls manifest layout.
type OutputConfig struct {
	SortBy          string `toml:"sort_by" yaml:"sort_by"`
	GroupByCategory bool   `toml:"group_by_category" yaml:"group_by_category"`
	IncludeStats    bool   `toml:"include_stats" yaml:"include_stats"`
	ExcerptLength   int    `toml:"excerpt_length" yaml:"excerpt_length"`
}

// SidecarConfig controls the sitemap and robots edits.
type SidecarConfig struct {
	AutoUpdateSitemap bool   `toml:"auto_update_sitemap" yaml:"auto_update_sitemap"`
	SitemapPath       string `toml:"sitemap_path" yaml:"sitemap_path"`
	ExternalSitemap   bool   `toml:"external_sitemap" yaml:"external_sitemap"`
	AutoUpdateRobots  bool   `toml:"auto_update_robots" yaml:"auto_update_robots"`
	RobotsPath        string `toml:"robots_path" yaml:"robots_path"`
}

// APIConfig configures the REST extractor.
type APIConfig struct {
	Endpoint          string   `toml:"endpoint" yaml:"endpoint"`
	PostTypes         []string `toml:"post_types" yaml:"post_types"`
	PerPage           int      `toml:"per_page" yaml:"per_page"`
	IncludeCategories []string `toml:"include_categories" yaml:"include_categories"`
	ExcludeCategories []string `toml:"exclude_categories" yaml:"exclude_categories"`
	Token             string   `toml:"token" yaml:"token" env:"TOKEN"`
	Username          string   `toml:"username" yaml:"username" env:"USERNAME"`
	Password          string   `toml:"password" yaml:"password" env:"PASSWORD"`
}

// FilesystemConfig configures the content-root scanner.
type FilesystemConfig struct {
	ContentDirectory string   `toml:"content_directory" yaml:"content_directory"`
	IncludePatterns  []string `toml:"include_patterns" yaml:"include_patterns"`
	ExcludePatterns  []string `toml:"exclude_patterns" yaml:"exclude_patterns"`
	FrontMatter      bool     `toml:"front_matter" yaml:"front_matter"`
	ExcerptLength    int      `toml:"excerpt_length" yaml:"excerpt_length"`
	URLStyle         string   `toml:"url_style" yaml:"url_style"`
}

// SitemapConfig configures the sitemap extractor.
type SitemapConfig struct {
	URL          string   `toml:"url" yaml:"url"`
	MaxURLs      int      `toml:"max_urls" yaml:"max_urls"`
	MaxDepth     int      `toml:"max_depth" yaml:"max_depth"`
	Timeout      int      `toml:"timeout" yaml:"timeout"`
	SkipPatterns []string `toml:"skip_patterns" yaml:"skip_patterns"`
	FetchTitles  bool     `toml:"fetch_titles" yaml:"fetch_titles"`
}

// DelegatedConfig configures the host-provided extractor.
type DelegatedConfig struct {
	ItemsFile string `toml:"items_file" yaml:"items_file"`
}

// WebhookConfig configures the push endpoint.
type WebhookConfig struct {
	Enabled    bool     `toml:"enabled" yaml:"enabled"`
	Host       string   `toml:"host" yaml:"host" env:"HOST"`
	Port       int      `toml:"port" yaml:"port" env:"PORT"`
	Secret     string   `toml:"secret" yaml:"secret" env:"SECRET"`
	AllowedIPs []string `toml:"allowed_ips" yaml:"allowed_ips"`
}

// Addr returns the listen address.
func (w WebhookConfig) Addr() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}

// ScheduleConfig configures the timer trigger.
type ScheduleConfig struct {
	Enabled  bool   `toml:"enabled" yaml:"enabled"`
	Interval string `toml:"interval" yaml:"interval"`
	Time     string `toml:"time" yaml:"time"`
	Weekday  string `toml:"weekday" yaml:"weekday"`
}

// WatchConfig configures the filesystem watcher.
type WatchConfig struct {
	Enabled    bool     `toml:"enabled" yaml:"enabled"`
	Directory  string   `toml:"directory" yaml:"directory"`
	Debounce   float64  `toml:"debounce" yaml:"debounce"`
	Extensions []string `toml:"extensions" yaml:"extensions"`
}

// PerformanceConfig bounds outbound work.
type PerformanceConfig struct {
	MaxWorkers     int     `toml:"max_workers" yaml:"max_workers"`
	RequestDelay   float64 `toml:"request_delay" yaml:"request_delay"`
	RetryAttempts  int     `toml:"retry_attempts" yaml:"retry_attempts"`
	RetryDelay     float64 `toml:"retry_delay" yaml:"retry_delay"`
	RetryBackoff   string  `toml:"retry_backoff" yaml:"retry_backoff"`
	RequestTimeout int     `toml:"request_timeout" yaml:"request_timeout"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level   string `toml:"level" yaml:"level" env:"LEVEL"`
	File    string `toml:"file" yaml:"file" env:"FILE"`
	Format  string `toml:"format" yaml:"format"`
	Journal bool   `toml:"journal" yaml:"journal"`
}

// DefaultSkipPatterns lists URL fragments that never denote content pages.
var DefaultSkipPatterns = []string{
	"/admin", "/api", "/wp-admin", "/wp-content", "/wp-includes",
	".xml", ".js", ".css", ".png", ".jpg", ".jpeg", ".gif", ".svg",
	"/feed", "/rss", "/sitemap", "/robots.txt",
}

// DefaultConfig returns the configuration used for any key a file omits.
func DefaultConfig() Config {
	return Config{
		Description:    "A website with great content for AI and language models",
		Extractor:      ExtractorSitemap,
		OutputPath:     "./llms.txt",
		BackupFiles:    true,
		BackupKeep:     5,
		MaxItems:       1000,
		MinWordCount:   50,
		CacheFile:      ".llms_cache.json",
		CacheDuration:  3600,
		RunTimeout:     300,
		ExpectNonEmpty: true,
		Output: OutputConfig{
			SortBy:        SortByLastModified,
			IncludeStats:  true,
			ExcerptLength: DefaultExcerptLength,
		},
		Sidecars: SidecarConfig{
			AutoUpdateSitemap: true,
			AutoUpdateRobots:  true,
			RobotsPath:        "robots.txt",
		},
		API: APIConfig{
			Endpoint:          "auto",
			PostTypes:         []string{"posts", "pages"},
			PerPage:           100,
			ExcludeCategories: []string{"uncategorized"},
		},
		Filesystem: FilesystemConfig{
			ContentDirectory: "./content",
			IncludePatterns:  []string{"**.md", "**.html"},
			ExcludePatterns:  []string{"admin/**", "private/**", "draft/**"},
			FrontMatter:      true,
			ExcerptLength:    200,
			URLStyle:         URLStyleHTML,
		},
		Sitemap: SitemapConfig{
			URL:          "auto",
			MaxURLs:      10000,
			MaxDepth:     3,
			Timeout:      30,
			SkipPatterns: append([]string(nil), DefaultSkipPatterns...),
		},
		Webhook: WebhookConfig{
			Host:       "0.0.0.0",
			Port:       8080,
			Secret:     PlaceholderSecret,
			AllowedIPs: []string{"127.0.0.1"},
		},
		Schedule: ScheduleConfig{
			Interval: string(IntervalDaily),
			Time:     DefaultScheduleTime,
			Weekday:  "sunday",
		},
		Watch: WatchConfig{
			Debounce:   5,
			Extensions: []string{".md", ".html", ".txt", ".markdown", ".mdx"},
		},
		Performance: PerformanceConfig{
			MaxWorkers:     4,
			RequestDelay:   0.1,
			RetryAttempts:  3,
			RetryDelay:     1,
			RetryBackoff:   "exponential",
			RequestTimeout: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// SourceID returns the cache and coordinator key for this source.
func (c *Config) SourceID() string {
	if c.SourceIDOverride != "" {
		return c.SourceIDOverride
	}
	return c.Extractor
}

// ManifestURL returns the public URL of the manifest.
func (c *Config) ManifestURL() string {
	if c.ManifestURLOverride != "" {
		return c.ManifestURLOverride
	}
	return strings.TrimRight(c.SiteURL, "/") + "/" + filepath.Base(c.OutputPath)
}

// ManifestPath returns the URL path of the manifest, as used in robots rules.
func (c *Config) ManifestPath() string {
	u, err := url.Parse(c.ManifestURL())
	if err != nil || u.Path == "" {
		return "/" + filepath.Base(c.OutputPath)
	}
	return path.Clean(u.Path)
}

// CacheTTL returns cache_duration as a duration. Zero disables age expiry.
func (c *Config) CacheTTL() time.Duration {
	return seconds(float64(c.CacheDuration))
}

// RunTimeoutDuration returns the per-run budget. Zero means unbounded.
func (c *Config) RunTimeoutDuration() time.Duration {
	return seconds(float64(c.RunTimeout))
}

// WatchDirectory returns the directory to watch, defaulting to the
// filesystem extractor's content root.
func (c *Config) WatchDirectory() string {
	if c.Watch.Directory != "" {
		return c.Watch.Directory
	}
	return c.Filesystem.ContentDirectory
}

// WatchDebounce returns the quiet window before a watch trigger fires.
func (c *Config) WatchDebounce() time.Duration {
	return seconds(c.Watch.Debounce)
}

// RequestDelayDuration returns the minimum spacing between outbound requests.
func (p PerformanceConfig) RequestDelayDuration() time.Duration {
	return seconds(p.RequestDelay)
}

// RetryDelayDuration returns the base delay between retries.
func (p PerformanceConfig) RetryDelayDuration() time.Duration {
	return seconds(p.RetryDelay)
}

// RequestTimeoutDuration returns the per-request timeout.
func (p PerformanceConfig) RequestTimeoutDuration() time.Duration {
	return seconds(float64(p.RequestTimeout))
}

// ScheduleSpec builds the timer schedule.
func (c *Config) ScheduleSpec() (Schedule, error) {
	return NewSchedule(c.Schedule.Interval, c.Schedule.Time, c.Schedule.Weekday)
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidInput}, args...)...))
	}

	if c.SiteURL == "" {
		add("site_url is required")
	} else if u, err := url.Parse(c.SiteURL); err != nil || u.Scheme == "" || u.Host == "" {
		add("site_url %q is not an absolute URL", c.SiteURL)
	}
	if c.SiteName == "" {
		add("site_name is required")
	}
	if c.OutputPath == "" {
		add("output_path is required")
	}
	if c.MaxItems < 0 {
		add("max_items must not be negative")
	}
	if c.MinWordCount < 0 {
		add("min_word_count must not be negative")
	}

	switch c.Output.SortBy {
	case "", SortByLastModified, SortByTitle, SortByDateAsc:
	default:
		add("output.sort_by %q is not one of last_modified, title, date_asc", c.Output.SortBy)
	}

	switch c.Extractor {
	case ExtractorSitemap:
		if c.Sitemap.MaxURLs <= 0 {
			add("sitemap.max_urls must be positive")
		}
	case ExtractorAPI:
		if len(c.API.PostTypes) == 0 {
			add("api.post_types must not be empty")
		}
		if c.API.Token != "" && c.API.Username != "" {
			add("api.token and api.username are mutually exclusive")
		}
	case ExtractorFilesystem:
		if c.Filesystem.ContentDirectory == "" {
			add("filesystem.content_directory is required")
		}
		switch c.Filesystem.URLStyle {
		case "", URLStyleHTML, URLStylePretty:
		default:
			add("filesystem.url_style %q is not one of html, pretty", c.Filesystem.URLStyle)
		}
	case ExtractorDelegated:
	default:
		add("unknown extractor %q", c.Extractor)
	}

	if c.Webhook.Enabled {
		if c.Webhook.Secret == "" || c.Webhook.Secret == PlaceholderSecret {
			add("webhook.secret must be set to a real secret")
		}
		if c.Webhook.Port <= 0 || c.Webhook.Port > 65535 {
			add("webhook.port %d is out of range", c.Webhook.Port)
		}
	}
	for _, entry := range c.Webhook.AllowedIPs {
		if _, err := ParseAllowedIP(entry); err != nil {
			errs = append(errs, err)
		}
	}

	if _, err := c.ScheduleSpec(); err != nil {
		errs = append(errs, err)
	}

	if c.Watch.Enabled && c.WatchDirectory() == "" {
		add("watch.directory is required when watch is enabled")
	}
	if c.Watch.Debounce < 0 {
		add("watch.debounce must not be negative")
	}

	switch c.Performance.RetryBackoff {
	case "", "fixed", "exponential":
	default:
		add("performance.retry_backoff %q is not one of fixed, exponential", c.Performance.RetryBackoff)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		add("logging.format %q is not one of text, json", c.Logging.Format)
	}

	return errors.Join(errs...)
}

// ParseAllowedIP parses an allow-list entry as a prefix. A bare address
// becomes a single-host prefix.
func ParseAllowedIP(entry string) (netip.Prefix, error) {
	entry = strings.TrimSpace(entry)
	if strings.Contains(entry, "/") {
		p, err := netip.ParsePrefix(entry)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("%w: allowed_ips entry %q: %v", ErrInvalidInput, entry, err)
		}
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("%w: allowed_ips entry %q: %v", ErrInvalidInput, entry, err)
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func seconds(v float64) time.Duration {
	if v <= 0 {
		return 0
	}
	return time.Duration(v * float64(time.Second))
}
