package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/llmsync/internal/app"
	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/logger"
)

var runNow bool

var watchCmd = newTriggerCmd("watch", "Regenerate when content files change",
	func(*domain.Config) app.Triggers { return app.Triggers{Watch: true} })

var scheduleCmd = newTriggerCmd("schedule", "Regenerate on the configured schedule",
	func(*domain.Config) app.Triggers { return app.Triggers{Schedule: true} })

var webhookCmd = newTriggerCmd("webhook", "Serve the webhook endpoint",
	func(*domain.Config) app.Triggers { return app.Triggers{Webhook: true} })

var serveCmd = newTriggerCmd("serve", "Run every trigger enabled in the configuration",
	func(cfg *domain.Config) app.Triggers {
		return app.Triggers{
			Schedule: cfg.Schedule.Enabled,
			Webhook:  cfg.Webhook.Enabled,
			Watch:    cfg.Watch.Enabled,
		}
	})

func init() {
	for _, cmd := range []*cobra.Command{watchCmd, scheduleCmd, webhookCmd, serveCmd} {
		cmd.Flags().BoolVar(&runNow, "run-now", false, "run once before waiting for triggers")
		rootCmd.AddCommand(cmd)
	}
}

// newTriggerCmd builds a long-running command that serves the triggers
// selected from the configuration until SIGINT or SIGTERM.
func newTriggerCmd(use, short string, selectTriggers func(*domain.Config) app.Triggers) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, a, err := openRuntime(app.Options{})
			if err != nil {
				return err
			}
			defer rt.Close()
			defer a.Close()

			ctx, stop := signalContext(commandContext(cmd))
			defer stop()

			if runNow {
				_, result := a.Coordinator.Trigger(ctx, a.SourceID(), domain.ReasonManual)
				printResult(cmd, result)
			}

			err = a.Serve(ctx, selectTriggers(rt.cfg))
			logger.Info("Shut down")
			return err
		},
	}
}
