// Package locate finds the build file, program and README inside an extracted
// submission directory.
//
// Only the top level of the directory is searched. Candidates are considered in
// lexical order, so the same tree always yields the same choice.
package locate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

var (
	ErrBuildFileNotFound = errors.New("build file not found")
	ErrProgramNotFound   = errors.New("program not found")
	ErrReadmeNotFound    = errors.New("readme not found")
)

// FindBuildFile returns the regular file in dir whose name matches name
// case-insensitively ("makefile" finds "Makefile" and "MAKEFILE").
func FindBuildFile(dir, name string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", dir, err)
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if strings.EqualFold(entry.Name(), name) {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("%w: no %s in %s", ErrBuildFileNotFound, name, dir)
}

// FindProgram returns the first regular file in dir the current user may
// execute. When want is non-empty only a file with exactly that name matches.
// Files named in exclude (compared case-insensitively) are never returned,
// which keeps an executable Makefile from being picked as the program.
func FindProgram(dir, want string, exclude ...string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", dir, err)
	}

outer:
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if want != "" && name != want {
			continue
		}
		for _, ex := range exclude {
			if strings.EqualFold(name, ex) {
				continue outer
			}
		}
		path := filepath.Join(dir, name)
		if isExecutable(path) {
			return path, nil
		}
	}

	if want != "" {
		return "", fmt.Errorf("%w: no executable %q in %s", ErrProgramNotFound, want, dir)
	}
	return "", fmt.Errorf("%w: no executable file in %s", ErrProgramNotFound, dir)
}

// FindReadme returns the first file whose name starts with "README".
func FindReadme(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "README*"))
	if err != nil {
		return "", err
	}
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrReadmeNotFound, dir)
}

func isExecutable(path string) bool {
	return unix.Access(path, unix.X_OK) == nil
}
