// Command llmsync generates and maintains a site's llms.txt manifest.
package main

import (
	"fmt"
	"os"

	"github.com/custodia-labs/llmsync/internal/adapters/driving/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetVersion(version)
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
