package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/llmsync/internal/app"
	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/core/services"
)

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Check the configuration file without running anything",
	Args:  cobra.NoArgs,
	RunE:  runValidateConfig,
}

var testShow bool

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Extract and render without writing any file",
	Long: `Runs extraction and rendering as a real run would, then prints a summary.
Nothing is written: not the manifest, the cache, the sitemap or robots.txt.`,
	Args: cobra.NoArgs,
	RunE: runTest,
}

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check the structure of an existing llms.txt",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	testCmd.Flags().BoolVar(&testShow, "show", false, "print the rendered manifest")
	rootCmd.AddCommand(validateConfigCmd, testCmd, validateCmd)
}

func runValidateConfig(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	p := newPainter(cmd.OutOrStdout())
	if err := rt.cfg.Validate(); err != nil {
		cmd.Println(p.failure("Configuration is invalid:"))
		for _, e := range flatten(err) {
			cmd.Printf("  - %v\n", e)
		}
		return err
	}

	cfg := rt.cfg
	cmd.Println(p.success("Configuration is valid"))
	cmd.Printf("  %s%s\n", p.label("Site:"), cfg.SiteURL)
	cmd.Printf("  %s%s\n", p.label("Extractor:"), cfg.Extractor)
	cmd.Printf("  %s%s\n", p.label("Output:"), cfg.OutputPath)
	cmd.Printf("  %s%s\n", p.label("Manifest URL:"), cfg.ManifestURL())
	cmd.Printf("  %s%s\n", p.label("Triggers:"), enabledTriggers(cfg))
	if cfg.Webhook.Secret == domain.PlaceholderSecret {
		cmd.Println(p.warning("  webhook.secret is still the placeholder; set it before enabling the webhook"))
	}
	return nil
}

func runTest(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	// Opening a cache that does not exist yet would create it.
	_, statErr := os.Stat(rt.cfg.CacheFile)
	a, err := rt.open(app.Options{Ephemeral: errors.Is(statErr, os.ErrNotExist)})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext(commandContext(cmd))
	defer stop()

	report, err := a.Generator.DryRun(ctx)
	if err != nil {
		return err
	}

	p := newPainter(cmd.OutOrStdout())
	cmd.Println(p.title("Dry run for " + report.SourceID))
	cmd.Printf("  %s%d\n", p.label("Items extracted:"), report.ItemsExtracted)
	cmd.Printf("  %s%d\n", p.label("Items rendered:"), report.ItemsRendered)
	cmd.Printf("  %s%s\n", p.label("Fingerprint:"), report.Fingerprint)
	if report.Stale {
		cmd.Printf("  %s%s\n", p.label("Would update:"), p.warning("yes"))
	} else {
		cmd.Printf("  %s%s\n", p.label("Would update:"), p.muted("no, content unchanged"))
	}
	if testShow {
		cmd.Println()
		cmd.Print(report.Manifest)
	}
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	p := newPainter(cmd.OutOrStdout())
	issues := services.ValidateManifest(string(data))
	if len(issues) > 0 {
		cmd.Println(p.failure(fmt.Sprintf("%s is invalid:", args[0])))
		for _, issue := range issues {
			cmd.Printf("  - %s\n", issue)
		}
		return fmt.Errorf("%w: %d problem(s) in %s", domain.ErrInvalidInput, len(issues), args[0])
	}

	summary, _ := services.ParseManifest(string(data))
	cmd.Println(p.success(fmt.Sprintf("%s is valid", args[0])))
	cmd.Printf("  %s%s\n", p.label("Site:"), summary.SiteName)
	if summary.GeneratedAt != "" {
		cmd.Printf("  %s%s\n", p.label("Generated:"), summary.GeneratedAt)
	}
	cmd.Printf("  %s%d\n", p.label("Entries:"), len(summary.Entries))
	return nil
}

func enabledTriggers(cfg *domain.Config) string {
	var names []string
	if cfg.Schedule.Enabled {
		names = append(names, "schedule")
	}
	if cfg.Webhook.Enabled {
		names = append(names, "webhook")
	}
	if cfg.Watch.Enabled {
		names = append(names, "watch")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}

// flatten unpacks an errors.Join aggregate.
func flatten(err error) []error {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return joined.Unwrap()
	}
	return []error{err}
}
