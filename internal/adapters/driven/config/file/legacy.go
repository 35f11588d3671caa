package file

import (
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/custodia-labs/llmsync/internal/core/domain"
)

// legacyConfig is the key layout of llms_config.yaml. Pointers tell an
// absent key from a zero value.
type legacyConfig struct {
	Extractor         string   `yaml:"extractor"`
	AutoUpdateSitemap *bool    `yaml:"auto_update_sitemap"`
	AutoUpdateRobots  *bool    `yaml:"auto_update_robots"`
	IncludePatterns   []string `yaml:"include_patterns"`
	ExcludePatterns   []string `yaml:"exclude_patterns"`

	WordPress *struct {
		APIURL            string   `yaml:"api_url"`
		PerPage           int      `yaml:"per_page"`
		PostTypes         []string `yaml:"post_types"`
		IncludeCategories []string `yaml:"include_categories"`
		ExcludeCategories []string `yaml:"exclude_categories"`
	} `yaml:"wordpress"`

	Static *struct {
		ContentDirectory string   `yaml:"content_directory"`
		FilePatterns     []string `yaml:"file_patterns"`
		FrontMatter      *bool    `yaml:"front_matter"`
		ExcerptLength    int      `yaml:"excerpt_length"`
	} `yaml:"static"`

	Sitemap *struct {
		FollowSitemapIndex *bool `yaml:"follow_sitemap_index"`
	} `yaml:"sitemap"`
}

// applyLegacy maps llms_config.yaml keys onto cfg.
func applyLegacy(data []byte, cfg *domain.Config) error {
	var legacy legacyConfig
	if err := yaml.Unmarshal(data, &legacy); err != nil {
		return err
	}

	switch legacy.Extractor {
	case "wordpress":
		cfg.Extractor = domain.ExtractorAPI
	case "static":
		cfg.Extractor = domain.ExtractorFilesystem
	}

	if legacy.AutoUpdateSitemap != nil {
		cfg.Sidecars.AutoUpdateSitemap = *legacy.AutoUpdateSitemap
	}
	if legacy.AutoUpdateRobots != nil {
		cfg.Sidecars.AutoUpdateRobots = *legacy.AutoUpdateRobots
	}
	if legacy.IncludePatterns != nil {
		cfg.Filesystem.IncludePatterns = legacy.IncludePatterns
	}
	if legacy.ExcludePatterns != nil {
		cfg.Filesystem.ExcludePatterns = legacy.ExcludePatterns
	}

	if wp := legacy.WordPress; wp != nil {
		if wp.APIURL != "" {
			cfg.API.Endpoint = wp.APIURL
		}
		if wp.PerPage > 0 {
			cfg.API.PerPage = wp.PerPage
		}
		if wp.PostTypes != nil {
			cfg.API.PostTypes = wp.PostTypes
		}
		if wp.IncludeCategories != nil {
			cfg.API.IncludeCategories = wp.IncludeCategories
		}
		if wp.ExcludeCategories != nil {
			cfg.API.ExcludeCategories = wp.ExcludeCategories
		}
	}

	if st := legacy.Static; st != nil {
		if st.ContentDirectory != "" {
			cfg.Filesystem.ContentDirectory = st.ContentDirectory
		}
		if st.FilePatterns != nil {
			cfg.Filesystem.IncludePatterns = st.FilePatterns
		}
		if st.FrontMatter != nil {
			cfg.Filesystem.FrontMatter = *st.FrontMatter
		}
		if st.ExcerptLength > 0 {
			cfg.Filesystem.ExcerptLength = st.ExcerptLength
		}
	}

	if sm := legacy.Sitemap; sm != nil && sm.FollowSitemapIndex != nil && !*sm.FollowSitemapIndex {
		cfg.Sitemap.MaxDepth = 1
	}

	// Older files carry upper-case levels and printf-style log formats.
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	switch strings.ToLower(cfg.Logging.Format) {
	case "", "text", "json":
	default:
		cfg.Logging.Format = "text"
	}
	return nil
}
