package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"submission-grader/internal/locate"
	"submission-grader/internal/process"
)

// Run locates the student program and runs it once against the input file,
// from inside the output directory so that generated artifacts land there.
//
// Some programs ignore their argument and read the input from their own
// directory. When the first run fails without producing any output, the
// input file is copied next to the program, the program is run again from
// the submission directory, and every file carrying the output extension is
// moved into the output directory.
func (p *Pipeline) Run(ctx context.Context, out *Outcome) {
	if out.State != StateBuilt {
		out.Err = &StepError{Step: "run", Err: fmt.Errorf("%w: %s", ErrInvalidState, out.State)}
		return
	}
	ctx, finish := p.step(ctx, out, "run")
	defer finish()
	logger := p.logger(out)

	fail := func(err error) {
		out.State = StateRunFailed
		out.Err = &StepError{Step: "run", Err: err}
	}

	program, err := locate.FindProgram(out.Dir, p.cfg.Run.ProgramName, filepath.Base(out.BuildFile))
	if err != nil {
		logger.Error().Err(err).Msg("program not found")
		fail(err)
		return
	}
	out.Program = program
	logger.Info().Str("program", program).Msg("running submission")

	outputDir := filepath.Join(out.Dir, p.cfg.Run.OutputDir)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		fail(fmt.Errorf("creating output directory: %w", err))
		return
	}

	args := []string{program}
	if p.inputFile != "" {
		args = append(args, p.inputFile)
	}
	res, err := p.runner.Run(ctx, process.Command{
		Args:    args,
		Dir:     outputDir,
		Capture: p.cfg.Run.CaptureOutput,
		Timeout: p.cfg.Run.Timeout,
	})
	out.Run = res
	if err != nil {
		p.metrics.RecordProcess("run", "error")
		logger.Error().Err(err).Msg("program could not run")
		fail(err)
		return
	}
	if res.Success {
		p.metrics.RecordProcess("run", "ok")
		logger.Info().Dur("duration", res.Duration).Msg("program ran successfully")
		out.State = StateRan
		return
	}
	p.metrics.RecordProcess("run", "failed")

	produced, err := hasEntries(outputDir)
	if err != nil {
		fail(err)
		return
	}
	if produced || p.inputFile == "" {
		logger.Error().Int("exit_code", res.ExitCode).Msg("program did not run successfully")
		fail(fmt.Errorf("%w: exit code %d", ErrNonZeroExit, res.ExitCode))
		return
	}

	logger.Warn().Int("exit_code", res.ExitCode).Msg("program produced no output, retrying with a local input file")
	p.runFallback(ctx, out, program, outputDir, fail)
}

func (p *Pipeline) runFallback(ctx context.Context, out *Outcome, program, outputDir string, fail func(error)) {
	logger := p.logger(out)

	localInput := filepath.Join(out.Dir, filepath.Base(p.inputFile))
	if err := copyFile(p.inputFile, localInput); err != nil {
		fail(fmt.Errorf("copying input file: %w", err))
		return
	}

	res, err := p.runner.Run(ctx, process.Command{
		Args:    []string{program},
		Dir:     out.Dir,
		Capture: p.cfg.Run.CaptureOutput,
		Timeout: p.cfg.Run.Timeout,
	})
	out.FallbackRun = res
	if err != nil {
		p.metrics.RecordProcess("run_fallback", "error")
		logger.Error().Err(err).Msg("fallback run could not start")
		fail(err)
		return
	}

	moved, err := relocate(out.Dir, outputDir, p.cfg.Run.OutputExt, program)
	out.Relocated = moved
	p.metrics.ArtifactsMoved.Add(float64(len(moved)))
	if err != nil {
		fail(fmt.Errorf("relocating artifacts: %w", err))
		return
	}
	logger.Info().Int("artifacts", len(moved)).Str("output_dir", outputDir).Msg("moved output artifacts")

	if !res.Success {
		p.metrics.RecordProcess("run_fallback", "failed")
		logger.Error().Int("exit_code", res.ExitCode).Msg("fallback run did not run successfully")
		fail(fmt.Errorf("%w: exit code %d", ErrNonZeroExit, res.ExitCode))
		return
	}

	p.metrics.RecordProcess("run_fallback", "ok")
	out.State = StateRan
}

// relocate moves regular files in dir ending in ext into dst. skip is never moved.
func relocate(dir, dst, ext, skip string) ([]string, error) {
	if ext == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var moved []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), ext) {
			continue
		}
		src := filepath.Join(dir, entry.Name())
		if src == skip {
			continue
		}
		target := filepath.Join(dst, entry.Name())
		if err := os.Rename(src, target); err != nil {
			return moved, err
		}
		moved = append(moved, target)
	}
	return moved, nil
}

func hasEntries(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	return err == nil, err
}

func copyFile(src, dst string) error {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644) // #nosec G304 -- dst is inside the submission directory
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
