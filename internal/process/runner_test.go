package process

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestRunner() (*Runner, *bytes.Buffer) {
	var out bytes.Buffer
	return &Runner{Stdout: &out, Stderr: &out, DefaultTimeout: 5 * time.Second}, &out
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_CaptureCombinedOutput(t *testing.T) {
	r, passthrough := newTestRunner()
	dir := t.TempDir()

	res, err := r.Run(context.Background(), Command{
		Args:    []string{"/bin/sh", "-c", "echo out; echo err 1>&2"},
		Dir:     dir,
		Capture: true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Success || res.ExitCode != 0 {
		t.Errorf("Success = %v, ExitCode = %d, want true, 0", res.Success, res.ExitCode)
	}
	if !strings.Contains(res.Output, "out") || !strings.Contains(res.Output, "err") {
		t.Errorf("Output = %q, want both streams", res.Output)
	}
	if passthrough.Len() != 0 {
		t.Errorf("passthrough got %q, want nothing when capturing", passthrough.String())
	}
}

func TestRun_Passthrough(t *testing.T) {
	r, passthrough := newTestRunner()

	res, err := r.Run(context.Background(), Command{
		Args: []string{"/bin/sh", "-c", "echo visible"},
		Dir:  t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Output != "" {
		t.Errorf("Output = %q, want empty when streams are inherited", res.Output)
	}
	if got := passthrough.String(); got != "visible\n" {
		t.Errorf("passthrough = %q, want %q", got, "visible\n")
	}
}

func TestRun_NonZeroExitIsData(t *testing.T) {
	r, _ := newTestRunner()

	res, err := r.Run(context.Background(), Command{
		Args:    []string{"/bin/sh", "-c", "echo failing; exit 3"},
		Dir:     t.TempDir(),
		Capture: true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v, want nil for a non-zero exit", err)
	}
	if res.Success {
		t.Error("Success = true, want false")
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if strings.TrimSpace(res.Output) != "failing" {
		t.Errorf("Output = %q, want %q", res.Output, "failing")
	}
}

func TestRun_WorkingDirectory(t *testing.T) {
	r, _ := newTestRunner()
	dir := t.TempDir()
	writeScript(t, dir, "run", "touch created.bin; echo ran")

	// A relative program path resolves against Dir.
	res, err := r.Run(context.Background(), Command{Args: []string{"./run"}, Dir: dir, Capture: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Success {
		t.Fatalf("Success = false, output %q", res.Output)
	}
	if _, err := os.Stat(filepath.Join(dir, "created.bin")); err != nil {
		t.Errorf("side effect missing in working directory: %v", err)
	}
}

func TestRun_LaunchFailure(t *testing.T) {
	r, _ := newTestRunner()
	dir := t.TempDir()
	notExec := filepath.Join(dir, "prog")
	if err := os.WriteFile(notExec, []byte("#!/bin/sh\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
	}{
		{"missing binary", []string{filepath.Join(dir, "does-not-exist")}},
		{"permission denied", []string{notExec}},
		{"missing interpreter", []string{writeScript(t, dir, "bad", "")}},
	}
	// Rewrite the shebang of "bad" to point at an interpreter that is not there.
	if err := os.WriteFile(filepath.Join(dir, "bad"), []byte("#!/nonexistent/interp\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Run(context.Background(), Command{Args: tt.args, Dir: dir, Capture: true})
			if res != nil {
				t.Errorf("Run() result = %+v, want nil on launch failure", res)
			}
			if !IsLaunchFailure(err) {
				t.Fatalf("Run() error = %v, want ErrLaunch", err)
			}
			var execErr *ExecutionError
			if !errors.As(err, &execErr) || execErr.Op != "start" {
				t.Errorf("error = %#v, want *ExecutionError with Op start", err)
			}
		})
	}
}

func TestRun_Timeout(t *testing.T) {
	r, _ := newTestRunner()

	start := time.Now()
	res, err := r.Run(context.Background(), Command{
		Args:    []string{"/bin/sh", "-c", "echo started; sleep 30"},
		Dir:     t.TempDir(),
		Capture: true,
		Timeout: 200 * time.Millisecond,
	})
	if !IsTimeout(err) {
		t.Fatalf("Run() error = %v, want ErrTimeout", err)
	}
	if time.Since(start) > 10*time.Second {
		t.Errorf("Run() took %s, timeout not enforced", time.Since(start))
	}
	if res == nil || res.Success || res.ExitCode != -1 {
		t.Fatalf("Result = %+v, want failed partial result", res)
	}
	if !strings.Contains(res.Output, "started") {
		t.Errorf("Output = %q, want partial output", res.Output)
	}
}

func TestRun_InvalidCommand(t *testing.T) {
	r, _ := newTestRunner()
	for _, args := range [][]string{nil, {""}} {
		if _, err := r.Run(context.Background(), Command{Args: args}); !errors.Is(err, ErrInvalidCommand) {
			t.Errorf("Run(%q) error = %v, want ErrInvalidCommand", args, err)
		}
	}
}

func TestTruncateOutput(t *testing.T) {
	if got := truncateOutput("short", 10); got != "short" {
		t.Errorf("truncateOutput(short) = %q", got)
	}
	got := truncateOutput(strings.Repeat("x", 20), 10)
	if !strings.HasPrefix(got, strings.Repeat("x", 10)) || !strings.HasSuffix(got, "[output truncated]") {
		t.Errorf("truncateOutput(long) = %q", got)
	}
}
