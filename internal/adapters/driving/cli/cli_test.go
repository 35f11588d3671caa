package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/logger"
)

// execute runs the root command with args and fresh flag values.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, verbose, logLevel = "", false, ""
	generateForce, testShow, runNow, initForce = false, false, false, false
	statusLimit = 10
	logger.SetOutput(io.Discard)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

type fixture struct {
	dir    string
	config string
	items  string
	output string
}

// newFixture writes a delegated-extractor config and an items file.
func newFixture(t *testing.T, cacheFile string) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:    dir,
		config: filepath.Join(dir, "llmsync.toml"),
		items:  filepath.Join(dir, "items.json"),
		output: filepath.Join(dir, "llms.txt"),
	}
	writeItems(t, f.items, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))

	config := fmt.Sprintf(`
site_url = "https://example.com"
site_name = "Example"
extractor = "delegated"
output_path = %q
cache_file = %q
min_word_count = 0
backup_files = false

[sidecars]
auto_update_sitemap = false
auto_update_robots = false

[delegated]
items_file = %q
`, f.output, filepath.Join(dir, cacheFile), f.items)
	require.NoError(t, os.WriteFile(f.config, []byte(config), 0o600))
	return f
}

func writeItems(t *testing.T, path string, modified time.Time) {
	t.Helper()
	items := []domain.ContentItem{
		{URL: "https://example.com/", Title: "Home", LastModified: modified, WordCount: 120},
		{URL: "https://example.com/blog/first", Title: "First Post", Category: "article", LastModified: modified, WordCount: 800},
		{URL: "https://example.com/about", Title: "About", LastModified: modified, WordCount: 300},
	}
	data, err := json.Marshal(items)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestVersionCmd(t *testing.T) {
	original := version
	SetVersion("1.2.3")
	defer SetVersion(original)

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "llmsync version 1.2.3")
}

func TestInitAndValidateConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "llmsync.toml")

	out, err := execute(t, "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)
	assert.FileExists(t, path)

	_, err = execute(t, "init", "--config", path)
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "init refuses to overwrite")

	out, err = execute(t, "validate-config", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
	assert.Contains(t, out, "https://example.com")
	assert.Contains(t, out, "placeholder")
}

func TestValidateConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "llmsync.toml")
	require.NoError(t, os.WriteFile(path, []byte("extractor = \"ftp\"\n"), 0o600))

	out, err := execute(t, "validate-config", "--config", path)
	require.Error(t, err)
	assert.Contains(t, out, "Configuration is invalid")
	assert.Contains(t, out, "site_url is required")
	assert.Contains(t, out, `unknown extractor "ftp"`)
}

func TestGenerate_MissingConfig(t *testing.T) {
	_, err := execute(t, "generate", "--config", filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGenerate(t *testing.T) {
	f := newFixture(t, "cache.json")

	out, err := execute(t, "generate", "--config", f.config)
	require.NoError(t, err)
	assert.Contains(t, out, "updated")
	assert.Contains(t, out, "3 extracted, 3 rendered")
	require.FileExists(t, f.output)

	out, err = execute(t, "generate", "--config", f.config)
	require.NoError(t, err)
	assert.Contains(t, out, "skipped-unchanged")

	out, err = execute(t, "generate", "--config", f.config, "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Outcome:          updated")

	out, err = execute(t, "validate", f.output)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
	assert.Contains(t, out, "Entries:          3")
}

func TestGenerate_FailedRunExitsNonZero(t *testing.T) {
	f := newFixture(t, "cache.json")
	require.NoError(t, os.Remove(f.items))

	out, err := execute(t, "generate", "--config", f.config)
	require.Error(t, err)
	assert.IsType(t, errRunFailed{}, err)
	assert.Contains(t, out, "failed: extraction")
	assert.NoFileExists(t, f.output)
}

func TestGenerateForce_CorruptCache(t *testing.T) {
	f := newFixture(t, "cache.json")
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "cache.json"), []byte("{not json"), 0o644))

	out, err := execute(t, "generate", "--config", f.config, "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Outcome:          updated")
	assert.FileExists(t, f.output)
}

func TestGenerateForce_FailureKeepsBaseline(t *testing.T) {
	f := newFixture(t, "cache.json")
	cachePath := filepath.Join(f.dir, "cache.json")

	_, err := execute(t, "generate", "--config", f.config)
	require.NoError(t, err)
	before, err := os.ReadFile(cachePath)
	require.NoError(t, err)

	require.NoError(t, os.Remove(f.items))
	_, err = execute(t, "generate", "--config", f.config, "--force")
	require.Error(t, err)

	after, err := os.ReadFile(cachePath)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestTestCmd_WritesNothing(t *testing.T) {
	f := newFixture(t, "cache.json")

	out, err := execute(t, "test", "--config", f.config, "--show")
	require.NoError(t, err)
	assert.Contains(t, out, "Dry run for delegated")
	assert.Contains(t, out, "Items rendered:   3")
	assert.Contains(t, out, "Would update:     yes")
	assert.Contains(t, out, "# LLMs.txt for Example")
	assert.Contains(t, out, "https://example.com/blog/first")

	assert.NoFileExists(t, f.output)
	assert.NoFileExists(t, filepath.Join(f.dir, "cache.json"))
}

func TestValidateCmd_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "llms.txt")
	require.NoError(t, os.WriteFile(path, []byte("just some text\n"), 0o644))

	out, err := execute(t, "validate", path)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, out, "is invalid")
	assert.Contains(t, out, "no content entries found")

	_, err = execute(t, "validate", filepath.Join(t.TempDir(), "absent.txt"))
	assert.Error(t, err)
}

func TestStatusCmd(t *testing.T) {
	f := newFixture(t, "llmsync.db")

	out, err := execute(t, "status", "--config", f.config)
	require.NoError(t, err)
	assert.Contains(t, out, "No fingerprint cached yet")
	assert.Contains(t, out, "No runs recorded.")

	_, err = execute(t, "generate", "--config", f.config)
	require.NoError(t, err)
	writeItems(t, f.items, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	_, err = execute(t, "generate", "--config", f.config)
	require.NoError(t, err)

	out, err = execute(t, "status", "--config", f.config, "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Items:            3")
	assert.Contains(t, out, "Extractor:        delegated")
	assert.Contains(t, out, "Recent runs")
	assert.Contains(t, out, "manual")
	assert.Contains(t, out, "updated")
}

func TestServeCmd_NoTriggers(t *testing.T) {
	f := newFixture(t, "cache.json")

	_, err := execute(t, "serve", "--config", f.config)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestWebhookCmd_PlaceholderSecret(t *testing.T) {
	f := newFixture(t, "cache.json")

	_, err := execute(t, "webhook", "--config", f.config)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTestCmd_DoesNotCreateDatabase(t *testing.T) {
	f := newFixture(t, "llmsync.db")

	_, err := execute(t, "test", "--config", f.config)
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(f.dir, "llmsync.db"))
}
