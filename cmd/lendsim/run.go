package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/DomeLiquid/lendcore/core"
	"github.com/DomeLiquid/lendcore/sim"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml>...",
	Short: "run scenarios and report every step and check",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		showMetrics, _ := cmd.Flags().GetBool("metrics")
		showVaults, _ := cmd.Flags().GetBool("vaults")

		reg := prometheus.NewRegistry()
		metrics := core.NewMetrics(reg)

		failed := 0
		for _, file := range args {
			report, runner, err := runScenario(cmd, file, core.WithMetrics(metrics))
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), runner.Host(), report, showVaults)
			if report.Failed() {
				failed++
			}
		}

		if showMetrics {
			families, err := reg.Gather()
			if err != nil {
				return err
			}
			printMetrics(cmd.OutOrStdout(), families)
		}

		if failed > 0 {
			return errors.Errorf("%d of %d scenarios failed", failed, len(args))
		}
		return nil
	},
}

func init() {
	runCmd.Flags().Bool("metrics", false, "print processor metrics after the run")
	runCmd.Flags().Bool("vaults", false, "print the net vault movements of every scenario")
}

func runScenario(cmd *cobra.Command, file string, opts ...core.ProcessorOption) (*sim.Report, *sim.Runner, error) {
	s, err := sim.LoadScenario(file)
	if err != nil {
		return nil, nil, err
	}
	if s.Name == "" {
		s.Name = file
	}

	runner, err := sim.NewRunner(provideLog(), cfg.Processor, s, opts...)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "scenario %s", file)
	}
	report, err := runner.Run(cmd.Context())
	if err != nil {
		return nil, nil, errors.Wrapf(err, "scenario %s", file)
	}
	return report, runner, nil
}

func printReport(w io.Writer, host *sim.Host, report *sim.Report, vaults bool) {
	fmt.Fprintf(w, "== %s\n", report.Scenario)
	for _, s := range report.Steps {
		status := "ok"
		if !s.Passed {
			status = "FAIL"
		}
		line := fmt.Sprintf("%4s  #%d %s", status, s.Index, s.Name)
		if s.Err != nil {
			line += ": " + s.Err.Error()
		}
		fmt.Fprintln(w, line)
	}
	for _, c := range report.Checks {
		status := "ok"
		if !c.Passed {
			status = "FAIL"
		}
		subject := strings.Trim(c.Check.Account+"/"+c.Check.Bank, "/")
		if c.Err != nil {
			fmt.Fprintf(w, "%4s  %s %s: %v\n", status, subject, c.Check.Field, c.Err)
			continue
		}
		fmt.Fprintf(w, "%4s  %s %s = %s (want %s)\n", status, subject, c.Check.Field, c.Actual, c.Check.Equals)
	}

	if vaults {
		for _, t := range report.Total.Transfers {
			fmt.Fprintf(w, "      %s %s %s\n", host.Name(t.BankId), t.Vault, t.Amount)
		}
	}
}

func printMetrics(w io.Writer, families []*dto.MetricFamily) {
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			sort.Strings(labels)

			switch {
			case m.GetCounter() != nil:
				fmt.Fprintf(w, "%s{%s} %g\n", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				fmt.Fprintf(w, "%s{%s} count=%d sum=%g\n", mf.GetName(), strings.Join(labels, ","), h.GetSampleCount(), h.GetSampleSum())
			}
		}
	}
}
