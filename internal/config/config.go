package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all grader configuration.
type Config struct {
	Paths   PathsConfig   `yaml:"paths"`
	Archive ArchiveConfig `yaml:"archive"`
	Build   BuildConfig   `yaml:"build"`
	Run     RunConfig     `yaml:"run"`
	Tests   TestsConfig   `yaml:"tests"`
	Metrics MetricsConfig `yaml:"metrics"`
	Report  ReportConfig  `yaml:"report"`
}

type PathsConfig struct {
	Submissions string `yaml:"submissions"` // One archive per student
	Output      string `yaml:"output"`      // Root for extracted submission trees
	Tests       string `yaml:"tests"`       // One test definition per file
	InputFile   string `yaml:"input_file"`  // Passed to each student program; empty disables the fallback run
}

type ArchiveConfig struct {
	NameDelimiter string   `yaml:"name_delimiter"`
	Ignore        []string `yaml:"ignore"` // Entries that do not count when collapsing nested directories
}

type BuildConfig struct {
	Tool     string        `yaml:"tool"`      // "make" (default) or "script"
	FileName string        `yaml:"file_name"` // Overrides the tool's canonical build file name
	Timeout  time.Duration `yaml:"timeout"`
}

type RunConfig struct {
	ProgramName   string        `yaml:"program_name"` // Exact executable name; empty takes the first executable
	OutputDir     string        `yaml:"output_dir"`
	OutputExt     string        `yaml:"output_ext"`
	CaptureOutput bool          `yaml:"capture_output"`
	Timeout       time.Duration `yaml:"timeout"`
}

type TestsConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// MetricsConfig controls the prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

type ReportConfig struct {
	Path string `yaml:"path"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path comes from CLI flag or env
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns the layout used by the grading scripts this tool replaces.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			Submissions: "submissions",
			Output:      "output_files",
			Tests:       "tests",
			InputFile:   "input.txt",
		},
		Archive: ArchiveConfig{
			NameDelimiter: "_",
			Ignore:        []string{".DS_Store", ".git", "__MACOSX"},
		},
		Build: BuildConfig{
			Tool:    "make",
			Timeout: 2 * time.Minute,
		},
		Run: RunConfig{
			OutputDir: "bins",
			OutputExt: ".bin",
			Timeout:   30 * time.Second,
		},
		Tests: TestsConfig{
			Timeout: 10 * time.Second,
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Paths.Submissions == "" {
		return fmt.Errorf("paths.submissions is required")
	}
	if c.Paths.Output == "" {
		return fmt.Errorf("paths.output is required")
	}
	if c.Archive.NameDelimiter == "" {
		return fmt.Errorf("archive.name_delimiter must not be empty")
	}
	if c.Build.Tool == "" {
		return fmt.Errorf("build.tool is required")
	}
	if strings.ContainsRune(c.Build.FileName, filepath.Separator) {
		return fmt.Errorf("build.file_name %q must be a bare file name", c.Build.FileName)
	}
	if c.Run.OutputDir == "" || filepath.IsAbs(c.Run.OutputDir) {
		return fmt.Errorf("run.output_dir must be a relative directory, got %q", c.Run.OutputDir)
	}
	if strings.HasPrefix(filepath.Clean(c.Run.OutputDir), "..") {
		return fmt.Errorf("run.output_dir %q escapes the submission directory", c.Run.OutputDir)
	}
	if c.Run.OutputExt != "" && !strings.HasPrefix(c.Run.OutputExt, ".") {
		return fmt.Errorf("run.output_ext must start with '.', got %q", c.Run.OutputExt)
	}
	if c.Build.Timeout <= 0 || c.Run.Timeout <= 0 || c.Tests.Timeout <= 0 {
		return fmt.Errorf("build, run and tests timeouts must be positive")
	}
	return nil
}

// StudentDir returns the extraction directory for a student identity.
func (c *Config) StudentDir(name string) string {
	return filepath.Join(c.Paths.Output, name)
}
