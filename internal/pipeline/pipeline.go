package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"submission-grader/internal/archive"
	"submission-grader/internal/buildtool"
	"submission-grader/internal/config"
	"submission-grader/internal/monitor"
	"submission-grader/internal/process"
	"submission-grader/internal/testdef"
)

// Executor runs external processes. *process.Runner satisfies it.
type Executor interface {
	Run(ctx context.Context, c process.Command) (*process.Result, error)
}

// Outcome is the pipeline state of one submission, threaded through the
// steps. Each step reads what earlier steps discovered and records its own
// findings; nothing is cached on the Submission.
type Outcome struct {
	Submission Submission
	State      State
	Dir        string
	Extraction *archive.Extraction

	BuildFile string
	Build     *process.Result

	Program     string
	Run         *process.Result
	FallbackRun *process.Result
	Relocated   []string

	Tests map[string]*process.Result
	Err   error
}

// Options carries the collaborators of a Pipeline. Nil fields get defaults.
type Options struct {
	Runner    Executor
	Tools     *buildtool.Registry
	Extractor *archive.Extractor
	Metrics   *monitor.Metrics
	Tracer    *monitor.Tracer
}

// Pipeline advances submissions through extract, build, run and test.
type Pipeline struct {
	cfg       *config.Config
	root      string
	inputFile string
	tool      buildtool.Tool

	runner    Executor
	extractor *archive.Extractor
	metrics   *monitor.Metrics
	tracer    *monitor.Tracer

	BatchID string
}

// New creates a pipeline for cfg and the output root it extracts into.
// Paths are made absolute so that student programs can be started from any
// working directory.
func New(cfg *config.Config, opts Options) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	root, err := filepath.Abs(cfg.Paths.Output)
	if err != nil {
		return nil, fmt.Errorf("resolving output root: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating output root: %w", err)
	}

	var input string
	if cfg.Paths.InputFile != "" {
		input, err = filepath.Abs(cfg.Paths.InputFile)
		if err != nil {
			return nil, fmt.Errorf("resolving input file: %w", err)
		}
		if info, err := os.Stat(input); err != nil {
			return nil, fmt.Errorf("paths.input_file: %w", err)
		} else if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("paths.input_file %s is not a regular file", input)
		}
	} else {
		log.Warn().Msg("paths.input_file is empty; programs run without an input argument and the fallback run is disabled")
	}

	tools := opts.Tools
	if tools == nil {
		tools = buildtool.NewRegistry()
	}
	tool, err := tools.Get(cfg.Build.Tool)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:       cfg,
		root:      root,
		inputFile: input,
		tool:      tool,
		runner:    opts.Runner,
		extractor: opts.Extractor,
		metrics:   opts.Metrics,
		tracer:    opts.Tracer,
		BatchID:   uuid.New().String(),
	}
	if p.runner == nil {
		p.runner = process.NewRunner(cfg.Run.Timeout)
	}
	if p.extractor == nil {
		p.extractor = archive.NewExtractor(cfg.Archive.Ignore)
	}
	if p.metrics == nil {
		p.metrics = monitor.NewMetrics()
	}
	if p.tracer == nil {
		p.tracer = monitor.NewTracer(nil)
	}
	return p, nil
}

// Root returns the absolute output root.
func (p *Pipeline) Root() string {
	return p.root
}

// Metrics returns the metrics the pipeline records into.
func (p *Pipeline) Metrics() *monitor.Metrics {
	return p.metrics
}

// Grade processes subs one after another. A failure in one submission never
// affects the next; only context cancellation stops the batch early, in which
// case the outcomes gathered so far are returned with the context error.
func (p *Pipeline) Grade(ctx context.Context, subs []Submission, tests []*testdef.Test) ([]*Outcome, error) {
	log.Info().
		Str("batch_id", p.BatchID).
		Int("submissions", len(subs)).
		Int("tests", len(tests)).
		Msg("grading batch started")

	outcomes := make([]*Outcome, 0, len(subs))
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			log.Warn().Str("batch_id", p.BatchID).Int("remaining", len(subs)-len(outcomes)).Msg("grading cancelled")
			return outcomes, err
		}
		outcomes = append(outcomes, p.Process(ctx, sub, tests))
	}

	log.Info().Str("batch_id", p.BatchID).Int("graded", len(outcomes)).Msg("grading batch finished")
	return outcomes, nil
}

// Process runs every step for one submission, stopping at the first step
// that fails.
func (p *Pipeline) Process(ctx context.Context, sub Submission, tests []*testdef.Test) *Outcome {
	ctx, span := p.tracer.StartSpan(ctx, "submission",
		monitor.AttrBatchID.String(p.BatchID),
		monitor.AttrStudent.String(sub.Name),
	)

	out := p.Extract(ctx, sub)
	if out.State == StateExtracted {
		p.Build(ctx, out)
	}
	if out.State == StateBuilt {
		p.Run(ctx, out)
	}
	if out.State == StateRan {
		p.Test(ctx, out, tests)
	}

	p.metrics.RecordSubmission(out.State.String())
	span.SetAttributes(monitor.AttrState.String(out.State.String()))
	monitor.EndSpan(span, out.Err)

	logger := p.logger(out)
	if out.Err != nil {
		logger.Warn().Err(out.Err).Str("state", out.State.String()).Msg("submission stopped")
	} else {
		logger.Info().Str("state", out.State.String()).Msg("submission processed")
	}
	return out
}

// Extract unpacks the submission archive into <root>/<name>.
func (p *Pipeline) Extract(ctx context.Context, sub Submission) *Outcome {
	out := &Outcome{Submission: sub, State: StateUnextracted}
	ctx, finish := p.step(ctx, out, "extract")
	defer finish()

	ext, err := p.extractor.Extract(ctx, sub.Archive, p.root, sub.Name)
	if err != nil {
		out.Err = &StepError{Step: "extract", Err: err}
		return out
	}

	out.Extraction = ext
	out.Dir = ext.Dir
	out.State = StateExtracted
	if ext.Collapsed {
		p.metrics.ArchivesCollapsed.Inc()
	}
	return out
}

// Test runs every test command in the submission directory. All tests run
// regardless of earlier failures; zero tests is a complete, empty result.
func (p *Pipeline) Test(ctx context.Context, out *Outcome, tests []*testdef.Test) {
	if out.State != StateRan {
		out.Err = &StepError{Step: "test", Err: fmt.Errorf("%w: %s", ErrInvalidState, out.State)}
		return
	}
	ctx, finish := p.step(ctx, out, "test")
	defer finish()
	logger := p.logger(out)

	out.Tests = make(map[string]*process.Result, len(tests))
	for _, t := range tests {
		testCtx, span := p.tracer.StartSpan(ctx, "test_case", monitor.AttrTest.String(t.Name()))
		res, err := p.runner.Run(testCtx, process.Command{
			Args:    t.Command(),
			Dir:     out.Dir,
			Capture: true,
			Timeout: p.cfg.Tests.Timeout,
		})
		if err != nil {
			if ctx.Err() != nil {
				out.Err = &StepError{Step: "test", Err: ctx.Err()}
				monitor.EndSpan(span, out.Err)
				return
			}
			if res == nil {
				res = &process.Result{Args: t.Command(), ExitCode: -1}
			}
			res.Success = false
			res.Output += fmt.Sprintf("\n[%v]", err)
		}

		out.Tests[t.Name()] = res
		p.metrics.RecordTest(res.Success)
		span.SetAttributes(monitor.AttrExitCode.Int(res.ExitCode))
		span.End()
		logger.Info().
			Str("test", t.Name()).
			Bool("passed", res.Success).
			Int("exit_code", res.ExitCode).
			Msg("test finished")
	}

	out.State = StateTestsComplete
}

// step opens a span and returns a func that closes it and records the step
// duration.
func (p *Pipeline) step(ctx context.Context, out *Outcome, name string) (context.Context, func()) {
	start := time.Now()
	ctx, span := p.tracer.StartSpan(ctx, name,
		monitor.AttrStudent.String(out.Submission.Name),
		monitor.AttrStep.String(name),
	)
	return ctx, func() {
		p.metrics.RecordStep(name, time.Since(start).Seconds())
		span.SetAttributes(monitor.AttrState.String(out.State.String()))
		monitor.EndSpan(span, out.Err)
	}
}

func (p *Pipeline) logger(out *Outcome) zerolog.Logger {
	return log.With().
		Str("batch_id", p.BatchID).
		Str("student", out.Submission.Name).
		Logger()
}
