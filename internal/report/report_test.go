package report

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"submission-grader/internal/pipeline"
	"submission-grader/internal/process"
)

func sampleOutcomes() []*pipeline.Outcome {
	return []*pipeline.Outcome{
		{
			Submission:  pipeline.Submission{Name: "alice", Archive: "submissions/alice_1.tar.gz"},
			State:       pipeline.StateTestsComplete,
			Dir:         "/out/alice",
			BuildFile:   "/out/alice/Makefile",
			Program:     "/out/alice/solver",
			Build:       &process.Result{Success: true, Duration: 1500 * time.Millisecond, Output: "cc -o solver"},
			Run:         &process.Result{Success: false, ExitCode: 1},
			FallbackRun: &process.Result{Success: true},
			Relocated:   []string{"/out/alice/bins/a.bin"},
			Tests: map[string]*process.Result{
				"b-second": {Success: false, ExitCode: 2, Output: "mismatch"},
				"a-first":  {Success: true, Duration: 20 * time.Millisecond},
			},
		},
		{
			Submission: pipeline.Submission{Name: "bob", Archive: "submissions/bob.tar.gz"},
			State:      pipeline.StateBuildFailed,
			Dir:        "/out/bob",
			Err:        &pipeline.StepError{Step: "build", Err: errors.New("no Makefile")},
		},
		{
			Submission: pipeline.Submission{Name: "carol", Archive: "submissions/carol.tar.gz"},
			State:      pipeline.StateBuildFailed,
		},
	}
}

func TestFromOutcomes(t *testing.T) {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	r := FromOutcomes("batch-1", started, sampleOutcomes())

	assert.Equal(t, "batch-1", r.BatchID)
	assert.Equal(t, started, r.StartedAt)
	require.Len(t, r.Students, 3)

	alice := r.Students[0]
	assert.Equal(t, "alice", alice.Name)
	assert.Equal(t, "tests_complete", alice.State)
	assert.Empty(t, alice.Error)
	require.NotNil(t, alice.Build)
	assert.Equal(t, int64(1500), alice.Build.DurationMS)
	require.NotNil(t, alice.Fallback)
	assert.True(t, alice.Fallback.Success)
	assert.Equal(t, []string{"/out/alice/bins/a.bin"}, alice.Artifacts)
	require.Len(t, alice.Tests, 2)
	assert.Equal(t, "a-first", alice.Tests[0].Name)
	assert.Equal(t, "b-second", alice.Tests[1].Name)
	assert.Equal(t, 1, alice.Passed)

	bob := r.Students[1]
	assert.Equal(t, "build_failed", bob.State)
	assert.Equal(t, "build: no Makefile", bob.Error)
	assert.Nil(t, bob.Build)
	assert.Nil(t, bob.Run)
	assert.Empty(t, bob.Tests)
}

func TestSummary(t *testing.T) {
	r := FromOutcomes("b", time.Now(), sampleOutcomes())
	assert.Equal(t, map[string]int{"tests_complete": 1, "build_failed": 2}, r.Summary())

	empty := FromOutcomes("b", time.Now(), nil)
	assert.Empty(t, empty.Summary())
}

func TestWriteAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "grades.yaml")
	r := FromOutcomes("batch-2", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), sampleOutcomes())

	require.NoError(t, r.Write(path))
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file left behind")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "batch_id: batch-2\n"))
	assert.Contains(t, string(data), "state: build_failed")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, r.BatchID, loaded.BatchID)
	assert.Equal(t, r.Students, loaded.Students)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "reading report")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("students: [unterminated"), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "parsing report")
}
