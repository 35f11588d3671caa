package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/llmsync/internal/app"
	"github.com/custodia-labs/llmsync/internal/core/domain"
)

var generateForce bool

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate llms.txt once",
	Long: `Extracts the configured source and rewrites llms.txt when the content
has changed since the last run. Use --force to regenerate regardless.`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().BoolVarP(&generateForce, "force", "f", false, "regenerate even if content is unchanged")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	rt, a, err := openRuntime(app.Options{})
	if err != nil {
		return err
	}
	defer rt.Close()
	defer a.Close()

	ctx, stop := signalContext(commandContext(cmd))
	defer stop()

	trigger := a.Coordinator.Trigger
	if generateForce {
		trigger = a.Coordinator.Regenerate
	}
	_, result := trigger(ctx, a.SourceID(), domain.ReasonManual)
	printResult(cmd, result)
	if result.Outcome == domain.OutcomeFailed {
		return errRunFailed{summary: result.Summary()}
	}
	return nil
}

// printResult writes a run summary to the command's output.
func printResult(cmd *cobra.Command, result *domain.RunResult) {
	p := newPainter(cmd.OutOrStdout())

	outcome := string(result.Outcome)
	switch result.Outcome {
	case domain.OutcomeUpdated:
		outcome = p.success(outcome)
	case domain.OutcomeSkippedUnchanged:
		outcome = p.muted(outcome)
	case domain.OutcomeFailed:
		outcome = p.failure(result.Summary())
	}

	cmd.Printf("%s%s\n", p.label("Outcome:"), outcome)
	cmd.Printf("%s%d extracted, %d rendered\n", p.label("Items:"), result.ItemsExtracted, result.ItemsRendered)
	if result.ManifestPath != "" {
		cmd.Printf("%s%s\n", p.label("Manifest:"), result.ManifestPath)
	}
	cmd.Printf("%s%s\n", p.label("Duration:"), result.Duration().Round(time.Millisecond))
	if result.Err != nil {
		cmd.Printf("%s%v\n", p.label("Error:"), result.Err)
	}
	for _, err := range result.SidecarErrors {
		cmd.Println(p.warning(fmt.Sprintf("Warning: %v", err)))
	}
}
