package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"submission-grader/internal/report"
)

func newReportCmd() *cobra.Command {
	var failedOnly bool

	cmd := &cobra.Command{
		Use:   "report [PATH]",
		Short: "Print a grading report written by a previous grade run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				path = cfg.Report.Path
			}
			if path == "" {
				return fmt.Errorf("no report path: pass one or set report.path in the config")
			}

			rep, err := report.Load(path)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), rep, failedOnly)
			return nil
		},
	}
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only list students that did not complete their tests")
	return cmd
}

func printReport(w io.Writer, rep *report.Report, failedOnly bool) {
	fmt.Fprintf(w, "batch %s started %s\n", rep.BatchID, rep.StartedAt.Format("2006-01-02 15:04:05"))
	for _, s := range rep.Students {
		if failedOnly && s.State == "tests_complete" {
			continue
		}
		line := fmt.Sprintf("%-20s %-15s", s.Name, s.State)
		if s.State == "tests_complete" {
			line += fmt.Sprintf(" %d/%d tests passed", s.Passed, len(s.Tests))
		} else if s.Error != "" {
			line += " " + s.Error
		}
		fmt.Fprintln(w, line)
	}

	summary := rep.Summary()
	states := make([]string, 0, len(summary))
	for state := range summary {
		states = append(states, state)
	}
	sort.Strings(states)
	for _, state := range states {
		fmt.Fprintf(w, "%s: %d\n", state, summary[state])
	}
}
