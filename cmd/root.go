// Package cmd defines and implements the CLI commands for the urlbot executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/urlbot/internal/buildinfo"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	confs      []string
	confDir    string
	verbose    bool
	statusAddr string
}

// newRootCmd creates and configures the root command. Without a subcommand it
// runs the bot.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   buildinfo.Name,
		Short: "An IRC bot that announces the titles of posted links.",
		Long: `urlbot watches IRC channels for links, fetches them and replies with the
page title, image dimensions or content type. One configuration file
describes one network; every enabled network runs in parallel.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd, opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringArrayVarP(&opts.confs, "conf", "c", nil, "configuration file (repeatable; created with defaults when missing)")
	flags.StringVar(&opts.confDir, "conf-dir", "", "directory scanned for configuration files")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "development logging")
	flags.StringVar(&opts.statusAddr, "status-addr", "", "listen address for /healthz, /readyz and /metrics (disabled when empty)")

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newGetCmd(opts))
	cmd.AddCommand(newPluginsCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
