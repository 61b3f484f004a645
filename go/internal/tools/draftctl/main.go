// Command draftctl administers draftroom drafts over the HTTP API and seeds Postgres directly.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

type globalOpts struct {
	server     string
	token      string
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &globalOpts{}
	cmd := &cobra.Command{
		Use:          "draftctl",
		Short:        "Administer draftroom drafts",
		Long:         "draftctl drives a draftroom server over its HTTP API and manages its Postgres schema and player pools.",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.server, "server", envOr("DRAFTROOM_SERVER", "http://localhost:8080"), "draftroom server base URL")
	cmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("DRAFTROOM_TOKEN"), "bearer token for API calls")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("DRAFTROOM_CONFIG"), "path to draftroom config file")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newTokenCmd(opts))
	cmd.AddCommand(newSeedPoolCmd(opts))
	cmd.AddCommand(newCreateCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newLifecycleCmd(opts, "start", "Start a draft and put the first team on the clock"))
	cmd.AddCommand(newLifecycleCmd(opts, "pause", "Pause a live draft"))
	cmd.AddCommand(newLifecycleCmd(opts, "resume", "Resume a paused draft"))
	cmd.AddCommand(newClockCmd(opts))
	cmd.AddCommand(newPickCmd(opts))
	cmd.AddCommand(newForceCmd(opts))
	cmd.AddCommand(newUndoCmd(opts))
	cmd.AddCommand(newQueueCmd(opts))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "draftctl %s (commit: %s)\n", Version, Commit)
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
