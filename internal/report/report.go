package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"submission-grader/internal/pipeline"
	"submission-grader/internal/process"
)

// Report is the persisted record of one grading batch.
type Report struct {
	BatchID    string          `json:"batch_id" yaml:"batch_id"`
	StartedAt  time.Time       `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time       `json:"finished_at" yaml:"finished_at"`
	Students   []StudentReport `json:"students" yaml:"students"`
}

// StudentReport summarizes one submission.
type StudentReport struct {
	Name      string       `json:"name" yaml:"name"`
	Archive   string       `json:"archive" yaml:"archive"`
	State     string       `json:"state" yaml:"state"` // unextracted, extracted, built, ran, tests_complete, build_failed, run_failed
	Dir       string       `json:"dir,omitempty" yaml:"dir,omitempty"`
	Error     string       `json:"error,omitempty" yaml:"error,omitempty"`
	BuildFile string       `json:"build_file,omitempty" yaml:"build_file,omitempty"`
	Program   string       `json:"program,omitempty" yaml:"program,omitempty"`
	Build     *StepSummary `json:"build,omitempty" yaml:"build,omitempty"`
	Run       *StepSummary `json:"run,omitempty" yaml:"run,omitempty"`
	Fallback  *StepSummary `json:"fallback,omitempty" yaml:"fallback,omitempty"`
	Artifacts []string     `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
	Tests     []TestResult `json:"tests,omitempty" yaml:"tests,omitempty"`
	Passed    int          `json:"passed" yaml:"passed"`
}

// StepSummary is the outcome of a build or run invocation.
type StepSummary struct {
	ExitCode   int    `json:"exit_code" yaml:"exit_code"`
	Success    bool   `json:"success" yaml:"success"`
	DurationMS int64  `json:"duration_ms" yaml:"duration_ms"`
	Output     string `json:"output,omitempty" yaml:"output,omitempty"`
}

// TestResult is one test command run against a submission.
type TestResult struct {
	Name       string `json:"name" yaml:"name"`
	Passed     bool   `json:"passed" yaml:"passed"`
	ExitCode   int    `json:"exit_code" yaml:"exit_code"`
	DurationMS int64  `json:"duration_ms" yaml:"duration_ms"`
	Output     string `json:"output,omitempty" yaml:"output,omitempty"`
}

// FromOutcomes builds a report from pipeline outcomes, keeping their order.
func FromOutcomes(batchID string, started time.Time, outcomes []*pipeline.Outcome) *Report {
	r := &Report{
		BatchID:    batchID,
		StartedAt:  started.UTC(),
		FinishedAt: time.Now().UTC(),
		Students:   make([]StudentReport, 0, len(outcomes)),
	}
	for _, out := range outcomes {
		r.Students = append(r.Students, student(out))
	}
	return r
}

func student(out *pipeline.Outcome) StudentReport {
	s := StudentReport{
		Name:      out.Submission.Name,
		Archive:   out.Submission.Archive,
		State:     out.State.String(),
		Dir:       out.Dir,
		BuildFile: out.BuildFile,
		Program:   out.Program,
		Build:     summarize(out.Build),
		Run:       summarize(out.Run),
		Fallback:  summarize(out.FallbackRun),
		Artifacts: out.Relocated,
	}
	if out.Err != nil {
		s.Error = out.Err.Error()
	}

	names := make([]string, 0, len(out.Tests))
	for name := range out.Tests {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		res := out.Tests[name]
		s.Tests = append(s.Tests, TestResult{
			Name:       name,
			Passed:     res.Success,
			ExitCode:   res.ExitCode,
			DurationMS: res.Duration.Milliseconds(),
			Output:     res.Output,
		})
		if res.Success {
			s.Passed++
		}
	}
	return s
}

func summarize(res *process.Result) *StepSummary {
	if res == nil {
		return nil
	}
	return &StepSummary{
		ExitCode:   res.ExitCode,
		Success:    res.Success,
		DurationMS: res.Duration.Milliseconds(),
		Output:     res.Output,
	}
}

// Summary counts students per final state.
func (r *Report) Summary() map[string]int {
	counts := make(map[string]int)
	for _, s := range r.Students {
		counts[s.State]++
	}
	return counts
}

// Write stores the report as YAML, replacing path via a rename so a reader
// never sees a partial file.
func (r *Report) Write(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// Load reads a report written by Write.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path comes from config
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}
	return &r, nil
}
