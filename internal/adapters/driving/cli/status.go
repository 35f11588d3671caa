package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/llmsync/internal/app"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the cached fingerprint and recent runs",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 10, "number of runs to show")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	rt, a, err := openRuntime(app.Options{})
	if err != nil {
		return err
	}
	defer rt.Close()
	defer a.Close()

	ctx := commandContext(cmd)
	p := newPainter(cmd.OutOrStdout())

	cmd.Println(p.title("Source " + a.SourceID()))
	record, err := a.Cache.Load(ctx, a.SourceID())
	if err != nil {
		return err
	}
	if record == nil {
		cmd.Println(p.muted("  No fingerprint cached yet; the next run will regenerate."))
	} else {
		cmd.Printf("  %s%s\n", p.label("Last updated:"), record.GeneratedAt.Local().Format(time.RFC1123))
		cmd.Printf("  %s%d\n", p.label("Items:"), record.ItemCount)
		cmd.Printf("  %s%s\n", p.label("Extractor:"), record.ExtractorUsed)
		cmd.Printf("  %s%s\n", p.label("Fingerprint:"), record.Hash)
		if record.GeneratorVersion != "" {
			cmd.Printf("  %s%s\n", p.label("Version:"), record.GeneratorVersion)
		}
	}

	runs, err := a.History.GetRunHistory(ctx, a.SourceID(), statusLimit)
	if err != nil {
		return err
	}
	cmd.Println()
	if len(runs) == 0 {
		cmd.Println(p.muted("No runs recorded."))
		return nil
	}
	cmd.Println(p.title("Recent runs"))
	for _, run := range runs {
		outcome := string(run.Outcome)
		if run.ErrorKind != "" {
			outcome += ": " + string(run.ErrorKind)
		}
		cmd.Printf("  %s  %-9s %-26s %d items\n",
			run.StartedAt.Local().Format("2006-01-02 15:04:05"), run.Reason, outcome, run.ItemsRendered)
	}
	return nil
}
