package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "messaging-cli",
		Short: "Operational tooling for the messaging API",
		Long: `messaging-cli manages configuration and the database schema of the
messaging API.

Examples:
  messaging-cli config schema -o config/schema.json
  messaging-cli config validate -f config/production.yaml
  messaging-cli config show --format json
  messaging-cli migrate up`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newConfigCmd())
	root.AddCommand(newMigrateCmd())
	return root
}
