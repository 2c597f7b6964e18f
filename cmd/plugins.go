package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/urlbot/internal/plugins"
)

func newPluginsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "Lists the title plugins in priority order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range plugins.Names(plugins.Default()) {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
