package locate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name string, mode os.FileMode) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), mode); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, mode); err != nil {
		t.Fatal(err)
	}
}

func TestFindBuildFile(t *testing.T) {
	tests := []struct {
		name    string
		files   []string
		want    string
		wantErr bool
	}{
		{"canonical", []string{"Makefile", "main.c"}, "Makefile", false},
		{"lowercase", []string{"makefile"}, "makefile", false},
		{"uppercase", []string{"MAKEFILE"}, "MAKEFILE", false},
		{"prefix does not match", []string{"Makefile.bak"}, "", true},
		{"missing", []string{"main.c"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, f := range tt.files {
				writeFile(t, dir, f, 0o644)
			}

			got, err := FindBuildFile(dir, "Makefile")
			if tt.wantErr {
				if !errors.Is(err, ErrBuildFileNotFound) {
					t.Fatalf("FindBuildFile() error = %v, want ErrBuildFileNotFound", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FindBuildFile() error = %v", err)
			}
			if want := filepath.Join(dir, tt.want); got != want {
				t.Errorf("FindBuildFile() = %q, want %q", got, want)
			}
		})
	}
}

func TestFindBuildFile_IgnoresDirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "makefile"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := FindBuildFile(dir, "Makefile"); !errors.Is(err, ErrBuildFileNotFound) {
		t.Errorf("FindBuildFile() error = %v, want ErrBuildFileNotFound", err)
	}
}

func TestFindProgram(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Makefile", 0o755)
	writeFile(t, dir, "main.c", 0o644)
	writeFile(t, dir, "zeta", 0o755)
	writeFile(t, dir, "tinyFSDemo", 0o755)
	if err := os.Mkdir(filepath.Join(dir, "bins"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := FindProgram(dir, "", "Makefile")
	if err != nil {
		t.Fatalf("FindProgram() error = %v", err)
	}
	if want := filepath.Join(dir, "tinyFSDemo"); got != want {
		t.Errorf("FindProgram() = %q, want %q (lexically first executable)", got, want)
	}

	got, err = FindProgram(dir, "zeta")
	if err != nil {
		t.Fatalf("FindProgram(zeta) error = %v", err)
	}
	if want := filepath.Join(dir, "zeta"); got != want {
		t.Errorf("FindProgram(zeta) = %q, want %q", got, want)
	}

	if _, err := FindProgram(dir, "main.c"); !errors.Is(err, ErrProgramNotFound) {
		t.Errorf("FindProgram(main.c) error = %v, want ErrProgramNotFound", err)
	}
	if _, err := FindProgram(dir, "missing"); !errors.Is(err, ErrProgramNotFound) {
		t.Errorf("FindProgram(missing) error = %v, want ErrProgramNotFound", err)
	}
}

func TestFindProgram_NoExecutable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.c", 0o644)
	writeFile(t, dir, "README", 0o644)

	if _, err := FindProgram(dir, ""); !errors.Is(err, ErrProgramNotFound) {
		t.Errorf("FindProgram() error = %v, want ErrProgramNotFound", err)
	}
}

func TestFindReadme(t *testing.T) {
	dir := t.TempDir()
	if _, err := FindReadme(dir); !errors.Is(err, ErrReadmeNotFound) {
		t.Errorf("FindReadme(empty) error = %v, want ErrReadmeNotFound", err)
	}

	writeFile(t, dir, "README.txt", 0o644)
	writeFile(t, dir, "README.md", 0o644)
	got, err := FindReadme(dir)
	if err != nil {
		t.Fatalf("FindReadme() error = %v", err)
	}
	if want := filepath.Join(dir, "README.md"); got != want {
		t.Errorf("FindReadme() = %q, want %q", got, want)
	}
}
