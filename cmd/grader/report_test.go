package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"submission-grader/internal/pipeline"
	"submission-grader/internal/process"
	"submission-grader/internal/report"
)

func TestReportCmd_ReadsWrittenReport(t *testing.T) {
	outcomes := []*pipeline.Outcome{
		{
			Submission: pipeline.Submission{Name: "alice"},
			State:      pipeline.StateTestsComplete,
			Tests: map[string]*process.Result{
				"t1": {Success: true},
				"t2": {Success: false, ExitCode: 1},
			},
		},
		{
			Submission: pipeline.Submission{Name: "bob"},
			State:      pipeline.StateBuildFailed,
			Err:        &pipeline.StepError{Step: "build", Err: pipeline.ErrNonZeroExit},
		},
	}
	path := filepath.Join(t.TempDir(), "grades.yaml")
	if err := report.FromOutcomes("batch-7", time.Now(), outcomes).Write(path); err != nil {
		t.Fatal(err)
	}

	cmd := newReportCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("report error = %v", err)
	}

	got := buf.String()
	for _, want := range []string{
		"batch batch-7",
		"1/2 tests passed",
		"bob",
		"build: process exited with non-zero status",
		"build_failed: 1",
		"tests_complete: 1",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestPrintReport_FailedOnly(t *testing.T) {
	rep := &report.Report{
		BatchID: "b",
		Students: []report.StudentReport{
			{Name: "alice", State: "tests_complete"},
			{Name: "bob", State: "run_failed", Error: "run: program not found"},
		},
	}

	var buf bytes.Buffer
	printReport(&buf, rep, true)
	if strings.Contains(buf.String(), "alice ") {
		t.Errorf("failed-only listing includes alice:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "run: program not found") {
		t.Errorf("failed-only listing misses bob:\n%s", buf.String())
	}
}

func TestReportCmd_MissingFile(t *testing.T) {
	cmd := newReportCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "absent.yaml")})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "reading report") {
		t.Errorf("report error = %v, want reading report failure", err)
	}
}
