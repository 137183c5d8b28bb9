package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

const maxOutputBytes = 1 << 20

// Command is one invocation: an explicit argument vector run in Dir.
type Command struct {
	Args    []string
	Dir     string
	Capture bool          // Collect combined stdout/stderr instead of passing it through
	Timeout time.Duration // Zero uses the runner default
}

// Result is the outcome of a process that started. A non-zero exit is
// reported here, not as an error.
type Result struct {
	Args     []string      `json:"args" yaml:"args"`
	Success  bool          `json:"success" yaml:"success"`
	ExitCode int           `json:"exit_code" yaml:"exit_code"`
	Output   string        `json:"output,omitempty" yaml:"output,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Runner executes external programs with a bounded lifetime.
type Runner struct {
	// Stdout and Stderr receive the child's streams when output is not captured.
	Stdout io.Writer
	Stderr io.Writer

	DefaultTimeout time.Duration
}

// NewRunner creates a runner that passes uncaptured output to the terminal.
func NewRunner(defaultTimeout time.Duration) *Runner {
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Second
	}
	return &Runner{
		Stdout:         os.Stdout,
		Stderr:         os.Stderr,
		DefaultTimeout: defaultTimeout,
	}
}

// Run starts c.Args[0] with the remaining args and waits for it to exit.
// Failing to start is an *ExecutionError wrapping ErrLaunch. Hitting the
// timeout returns the partial result together with ErrTimeout.
func (r *Runner) Run(ctx context.Context, c Command) (*Result, error) {
	if len(c.Args) == 0 || c.Args[0] == "" {
		return nil, &ExecutionError{Op: "validate", Err: fmt.Errorf("%w: empty argument vector", ErrInvalidCommand)}
	}
	program := c.Args[0]

	logger := log.With().
		Str("program", filepath.Base(program)).
		Str("dir", c.Dir).
		Bool("capture", c.Capture).
		Logger()

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = r.DefaultTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, program, c.Args[1:]...) // #nosec G204 -- running student code is the point
	cmd.Dir = c.Dir
	// Own process group so make and its children die together on timeout.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
	cmd.WaitDelay = 2 * time.Second

	var buf bytes.Buffer
	if c.Capture {
		cmd.Stdout = &buf
		cmd.Stderr = &buf
	} else {
		cmd.Stdout = orDiscard(r.Stdout)
		cmd.Stderr = orDiscard(r.Stderr)
	}

	logger.Debug().Strs("args", c.Args).Msg("starting process")

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if errors.Is(err, exec.ErrWaitDelay) {
		// Exited, but a leftover child kept the output pipe open.
		err = nil
	}

	res := &Result{
		Args:     c.Args,
		Output:   truncateOutput(buf.String(), maxOutputBytes),
		Duration: duration,
	}

	if err != nil {
		if ctx.Err() != nil {
			return nil, &ExecutionError{Program: program, Op: "wait", Err: ctx.Err()}
		}
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			logger.Warn().Dur("timeout", timeout).Msg("process timed out, killed")
			res.ExitCode = -1
			return res, &ExecutionError{Program: program, Op: "wait", Err: fmt.Errorf("%w after %s", ErrTimeout, timeout)}
		}

		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			logger.Error().Err(err).Msg("process could not be started")
			return nil, &ExecutionError{Program: program, Op: "start", Err: fmt.Errorf("%w: %w", ErrLaunch, err)}
		}
		res.ExitCode = exitErr.ExitCode()
	}

	res.Success = res.ExitCode == 0

	logger.Debug().
		Int("exit_code", res.ExitCode).
		Dur("duration", duration).
		Msg("process completed")

	return res, nil
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

func truncateOutput(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	return s[:maxBytes] + "\n... [output truncated]"
}
