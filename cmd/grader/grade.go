package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"submission-grader/internal/pipeline"
	"submission-grader/internal/report"
	"submission-grader/internal/testdef"
)

func newGradeCmd() *cobra.Command {
	var students []string

	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Run every submission through extract, build, run and test",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			tests, err := testdef.LoadDir(cfg.Paths.Tests)
			if err != nil {
				return err
			}
			subs, err := pipeline.LoadSubmissions(cfg.Paths.Submissions, cfg.Archive.NameDelimiter)
			if err != nil {
				return err
			}
			subs = filterSubmissions(subs, students)
			if len(subs) == 0 {
				return fmt.Errorf("no submissions to grade in %s", cfg.Paths.Submissions)
			}

			p, err := pipeline.New(cfg, pipeline.Options{})
			if err != nil {
				return err
			}

			started := time.Now()
			outcomes, gradeErr := p.Grade(cmd.Context(), subs, tests)

			printOutcomes(cmd.OutOrStdout(), outcomes, len(tests))

			rep := report.FromOutcomes(p.BatchID, started, outcomes)
			if cfg.Report.Path != "" {
				if err := rep.Write(cfg.Report.Path); err != nil {
					return err
				}
				log.Info().Str("path", cfg.Report.Path).Msg("report written")
			}
			if cfg.Metrics.Textfile != "" {
				if err := p.Metrics().WriteTextfile(cfg.Metrics.Textfile); err != nil {
					return err
				}
			}

			log.Info().
				Str("batch_id", p.BatchID).
				Interface("states", rep.Summary()).
				Dur("elapsed", time.Since(started)).
				Msg("grading complete")
			return gradeErr
		},
	}
	cmd.Flags().StringSliceVar(&students, "student", nil, "Only grade these students (repeatable)")
	return cmd
}

func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "Extract and flatten every submission without building",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			subs, err := pipeline.LoadSubmissions(cfg.Paths.Submissions, cfg.Archive.NameDelimiter)
			if err != nil {
				return err
			}
			p, err := pipeline.New(cfg, pipeline.Options{})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, sub := range subs {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				out := p.Extract(cmd.Context(), sub)
				switch {
				case out.Err != nil:
					fmt.Fprintf(w, "%-20s error: %v\n", sub.Name, out.Err)
				case out.Extraction.Existed:
					fmt.Fprintf(w, "%-20s already extracted at %s\n", sub.Name, out.Dir)
				default:
					fmt.Fprintf(w, "%-20s %d entries -> %s\n", sub.Name, out.Extraction.Entries, out.Dir)
				}
			}
			return nil
		},
	}
}

func filterSubmissions(subs []pipeline.Submission, names []string) []pipeline.Submission {
	if len(names) == 0 {
		return subs
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var kept []pipeline.Submission
	for _, s := range subs {
		if want[s.Name] {
			kept = append(kept, s)
		}
	}
	return kept
}

func printOutcomes(w io.Writer, outcomes []*pipeline.Outcome, total int) {
	for _, out := range outcomes {
		line := fmt.Sprintf("%-20s %-15s", out.Submission.Name, out.State)
		if out.State == pipeline.StateTestsComplete {
			passed := 0
			var failed []string
			for name, res := range out.Tests {
				if res.Success {
					passed++
				} else {
					failed = append(failed, name)
				}
			}
			line += fmt.Sprintf(" %d/%d tests passed", passed, total)
			if len(failed) > 0 {
				sort.Strings(failed)
				line += " (failed: " + strings.Join(failed, ", ") + ")"
			}
		} else if out.Err != nil {
			line += " " + out.Err.Error()
		}
		fmt.Fprintln(w, line)
	}
}
