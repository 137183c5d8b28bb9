package monitor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordHelpers(t *testing.T) {
	m := NewMetrics()

	m.RecordSubmission("tests_complete")
	m.RecordSubmission("tests_complete")
	m.RecordSubmission("build_failed")
	m.RecordTest(true)
	m.RecordTest(false)
	m.RecordTest(false)
	m.RecordProcess("build", "ok")

	if got := testutil.ToFloat64(m.SubmissionsTotal.WithLabelValues("tests_complete")); got != 2 {
		t.Errorf("submissions{tests_complete} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.TestsTotal.WithLabelValues("failed")); got != 2 {
		t.Errorf("tests{failed} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ProcessRuns.WithLabelValues("build", "ok")); got != 1 {
		t.Errorf("process_runs{build,ok} = %v, want 1", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.RecordSubmission("ran")
	m.RecordStep("build", 0.4)

	path := filepath.Join(t.TempDir(), "grader.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`grader_submissions_total{state="ran"} 1`,
		`grader_step_duration_seconds_count{step="build"} 1`,
		"grader_last_run_timestamp_seconds",
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("textfile missing %q", want)
		}
	}
}
