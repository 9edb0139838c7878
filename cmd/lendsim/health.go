package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health <scenario.yaml> [account]...",
	Short: "run a scenario and print the health of its accounts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		report, runner, err := runScenario(cmd, args[0])
		if err != nil {
			return err
		}
		if report.Failed() {
			logger.Warn().Str("scenario", report.Scenario).Msg("scenario has failed steps or checks")
		}

		host := runner.Host()
		names := args[1:]
		if len(names) == 0 {
			names = host.AccountNames()
		}

		w := cmd.OutOrStdout()
		for _, name := range names {
			reports, err := host.Health(name)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, name)
			for _, r := range reports {
				fmt.Fprintf(w, "  %-12s assets %s liabilities %s health %s ratio %s\n",
					r.Requirement, r.Assets, r.Liabilities, r.Health, r.Ratio.StringFixed(4))
			}
		}
		return nil
	},
}
