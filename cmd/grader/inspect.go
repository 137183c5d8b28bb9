package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"submission-grader/internal/buildtool"
	"submission-grader/internal/locate"
	"submission-grader/internal/testdef"
)

func newTestsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tests",
		Short: "List the parsed test commands",
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
			w := cmd.OutOrStdout()
			for _, t := range tests {
				fmt.Fprintf(w, "%-24s %s\n", t.Name(), t)
			}
			if len(tests) == 0 {
				fmt.Fprintf(w, "no tests in %s\n", cfg.Paths.Tests)
			}
			return nil
		},
	}
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect STUDENT",
		Short: "Show the README, build file and program of an extracted submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			dir := cfg.StudentDir(args[0])
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				return fmt.Errorf("%s has not been extracted (expected %s)", args[0], dir)
			}

			tool, err := buildtool.NewRegistry().Get(cfg.Build.Tool)
			if err != nil {
				return err
			}
			buildName := cfg.Build.FileName
			if buildName == "" {
				buildName = tool.BuildFile()
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "directory:  %s\n", dir)

			buildFile, err := locate.FindBuildFile(dir, buildName)
			fmt.Fprintf(w, "build file: %s\n", found(buildFile, err))

			exclude := buildName
			if buildFile != "" {
				exclude = filepath.Base(buildFile)
			}
			program, err := locate.FindProgram(dir, cfg.Run.ProgramName, exclude)
			fmt.Fprintf(w, "program:    %s\n", found(program, err))

			readme, err := locate.FindReadme(dir)
			if errors.Is(err, locate.ErrReadmeNotFound) {
				fmt.Fprintln(w, "readme:     (none)")
				return nil
			}
			if err != nil {
				return err
			}
			text, err := os.ReadFile(filepath.Clean(readme))
			if err != nil {
				return fmt.Errorf("reading readme: %w", err)
			}
			fmt.Fprintf(w, "readme:     %s\n\n%s", readme, text)
			return nil
		},
	}
}

func found(path string, err error) string {
	if err != nil {
		return "(none: " + err.Error() + ")"
	}
	return path
}
