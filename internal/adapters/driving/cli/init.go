package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/llmsync/internal/adapters/driven/config/file"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := configPath
		if path == "" {
			path = file.DefaultPath
		}
		if err := file.WriteDefault(path, initForce); err != nil {
			return err
		}

		p := newPainter(cmd.OutOrStdout())
		cmd.Println(p.success("Wrote " + path))
		cmd.Println("Edit site_url, site_name and webhook.secret, then run:")
		cmd.Println("  llmsync validate-config")
		cmd.Println("  llmsync generate")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")
	rootCmd.AddCommand(initCmd)
}
