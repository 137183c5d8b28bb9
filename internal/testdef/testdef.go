// Package testdef loads declarative test definitions. A definition is a plain
// text file whose first line is the command to run inside a submission
// directory, e.g. "./tinyFSDemo --disk disk0 --steps 12". Later lines are
// ignored and may hold notes for the grader.
//
// Arguments are split shell-style: single or double quotes group words
// ("./run 'two words'" has two arguments) and a '#' starts a comment.
package testdef

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/shlex"
	"github.com/rs/zerolog/log"
)

var (
	ErrEmptyCommand = errors.New("test definition has an empty command")
	ErrMalformed    = errors.New("malformed test definition")
)

// Test is one parsed definition. It is not modified after Parse.
type Test struct {
	Path    string
	command []string
}

// Name identifies the test in results and reports.
func (t *Test) Name() string {
	return filepath.Base(t.Path)
}

// Command returns a copy of the argument vector.
func (t *Test) Command() []string {
	return append([]string(nil), t.command...)
}

func (t *Test) String() string {
	return fmt.Sprintf("%s: %s", t.Name(), strings.Join(t.command, " "))
}

// Parse reads the first line of path and splits it into a command vector.
func Parse(path string) (*Test, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("opening test %s: %w", path, err)
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading test %s: %w", path, err)
	}

	cmd, err := ParseLine(line)
	if err != nil {
		return nil, fmt.Errorf("test %s: %w", path, err)
	}
	return &Test{Path: path, command: cmd}, nil
}

// ParseLine splits a single command line.
func ParseLine(line string) ([]string, error) {
	line = strings.TrimRight(line, " \t\r\n")
	if strings.TrimSpace(line) == "" {
		return nil, ErrEmptyCommand
	}
	fields, err := shlex.Split(line)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if len(fields) == 0 {
		// Only a comment.
		return nil, ErrEmptyCommand
	}
	return fields, nil
}

// LoadDir parses every regular file in dir, in lexical order. A definition
// that fails to parse is logged and left out so the remaining tests still
// run; only an unreadable directory is an error.
func LoadDir(dir string) ([]*Test, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading test directory: %w", err)
	}

	tests := make([]*Test, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		t, err := Parse(filepath.Join(dir, entry.Name()))
		if err != nil {
			log.Warn().Err(err).Str("test", entry.Name()).Msg("skipping unusable test definition")
			continue
		}
		tests = append(tests, t)
	}
	return tests, nil
}
