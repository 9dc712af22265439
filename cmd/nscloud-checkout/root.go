package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/namespacelabs/nscloud-checkout-action/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCommand(masker *logging.Masker) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nscloud-checkout",
		Short: "Check out a repository using the runner's Git mirror",
		Long: `nscloud-checkout checks out a GitHub repository inside a GitHub Actions job.

It keeps a persistent mirror of every repository it checks out under
NSC_GIT_MIRROR and builds each working checkout on top of it, so only objects
the mirror does not have yet are downloaded.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newRunCommand(masker))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nscloud-checkout version %s\n", version)
		},
	}
}
