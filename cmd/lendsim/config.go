package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "print the effective processor configuration",
	Run: func(cmd *cobra.Command, args []string) {
		settings := cfg.Settings()
		keys := make([]string, 0, len(settings))
		for k := range settings {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		if cfg.File != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", cfg.File)
		}
		for _, k := range keys {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", k, settings[k])
		}
	},
}
