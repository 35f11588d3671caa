package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v2"

	"github.com/custodia-labs/llmsync/internal/core/domain"
)

// EnvPrefix prefixes every environment override, e.g. LLMSYNC_WEBHOOK_SECRET.
const EnvPrefix = "LLMSYNC_"

// DefaultPath is the config file used when none is given.
const DefaultPath = "llmsync.toml"

// LegacyPath is probed when DefaultPath does not exist.
const LegacyPath = "llms_config.yaml"

// Format identifies a config file syntax.
type Format string

// Supported formats.
const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatOf picks the format from the file extension. Anything that is not
// .yaml or .yml is TOML.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatTOML
}

// ResolvePath returns path, or the first existing default when path is empty.
func ResolvePath(path string) string {
	if path != "" {
		return path
	}
	if _, err := os.Stat(DefaultPath); err != nil {
		if _, err := os.Stat(LegacyPath); err == nil {
			return LegacyPath
		}
	}
	return DefaultPath
}

// Loader reads configuration files.
type Loader struct {
	// Environ supplies environment variables. Nil reads the process
	// environment.
	Environ map[string]string
}

// NewLoader creates a loader that reads the process environment.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads the config at path on top of domain.DefaultConfig, then applies
// .env and environment overrides. The result is not validated; call
// Config.Validate.
func (l *Loader) Load(path string) (*domain.Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: config file %s (create one with 'llmsync init')", domain.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := domain.DefaultConfig()
	switch FormatOf(path) {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrInvalidInput, path, err)
		}
		if err := applyLegacy(data, &cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrInvalidInput, path, err)
		}
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrInvalidInput, path, err)
		}
	}

	environ, err := l.environ(filepath.Join(filepath.Dir(path), ".env"))
	if err != nil {
		return nil, err
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix, Environment: environ}); err != nil {
		return nil, fmt.Errorf("%w: environment overrides: %v", domain.ErrInvalidInput, err)
	}

	return &cfg, nil
}

// environ merges the .env file under the real environment, so variables
// already set win over the file.
func (l *Loader) environ(dotenv string) (map[string]string, error) {
	merged := make(map[string]string)
	fileVars, err := godotenv.Read(dotenv)
	switch {
	case err == nil:
		for k, v := range fileVars {
			merged[k] = v
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read %s: %w", dotenv, err)
	}

	if l.Environ != nil {
		for k, v := range l.Environ {
			merged[k] = v
		}
		return merged, nil
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			merged[k] = v
		}
	}
	return merged, nil
}

// Load reads path with a process-environment loader.
func Load(path string) (*domain.Config, error) {
	return NewLoader().Load(path)
}

// Marshal encodes cfg in the given format.
func Marshal(cfg *domain.Config, format Format) ([]byte, error) {
	if format == FormatYAML {
		return yaml.Marshal(cfg)
	}
	return toml.Marshal(cfg)
}

// WriteDefault writes the default configuration to path. An existing file
// is left alone unless overwrite is set.
func WriteDefault(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s already exists", domain.ErrInvalidInput, path)
		}
	}

	cfg := domain.DefaultConfig()
	cfg.SiteURL = "https://example.com"
	cfg.SiteName = "My Website"
	cfg.ContactEmail = "contact@example.com"

	data, err := Marshal(&cfg, FormatOf(path))
	if err != nil {
		return fmt.Errorf("encode default config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	// The file may hold secrets once edited.
	return os.WriteFile(path, data, 0o600)
}
