package pipeline

import (
	"context"
	"fmt"

	"submission-grader/internal/locate"
	"submission-grader/internal/monitor"
	"submission-grader/internal/process"
)

// buildFileName is the configured override or the tool's canonical name.
func (p *Pipeline) buildFileName() string {
	if p.cfg.Build.FileName != "" {
		return p.cfg.Build.FileName
	}
	return p.tool.BuildFile()
}

// Build locates the build file and runs the build tool on it. A missing
// build file, a tool that cannot start and a non-zero exit all end in
// StateBuildFailed; the captured build output stays on the outcome.
func (p *Pipeline) Build(ctx context.Context, out *Outcome) {
	if out.State != StateExtracted {
		out.Err = &StepError{Step: "build", Err: fmt.Errorf("%w: %s", ErrInvalidState, out.State)}
		return
	}
	ctx, finish := p.step(ctx, out, "build")
	defer finish()
	logger := p.logger(out)

	fail := func(err error) {
		out.State = StateBuildFailed
		out.Err = &StepError{Step: "build", Err: err}
	}

	file, err := locate.FindBuildFile(out.Dir, p.buildFileName())
	if err != nil {
		logger.Error().Err(err).Msg("build file not found")
		fail(err)
		return
	}
	out.BuildFile = file
	logger.Info().Str("build_file", file).Str("tool", p.tool.Name()).Msg("building submission")

	if err := p.tool.Validate(file); err != nil {
		fail(err)
		return
	}

	res, err := p.runner.Run(ctx, process.Command{
		Args:    p.tool.Command(file),
		Dir:     out.Dir,
		Capture: true,
		Timeout: p.cfg.Build.Timeout,
	})
	out.Build = res
	if err != nil {
		p.metrics.RecordProcess("build", "error")
		logger.Error().Err(err).Msg("build could not run")
		fail(err)
		return
	}
	if !res.Success {
		p.metrics.RecordProcess("build", "failed")
		logger.Error().Int("exit_code", res.ExitCode).Str("output", res.Output).Msg("build did not run successfully")
		monitor.SpanFromContext(ctx).SetAttributes(monitor.AttrExitCode.Int(res.ExitCode))
		fail(fmt.Errorf("%w: exit code %d", ErrNonZeroExit, res.ExitCode))
		return
	}

	p.metrics.RecordProcess("build", "ok")
	logger.Info().Dur("duration", res.Duration).Msg("build succeeded")
	out.State = StateBuilt
}
