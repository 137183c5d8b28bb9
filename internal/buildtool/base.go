package buildtool

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Tool defines how a submission is built.
type Tool interface {
	// Name returns the tool identifier used in configuration (e.g., "make").
	Name() string

	// BuildFile returns the canonical build file name the tool consumes.
	// Lookup is case-insensitive.
	BuildFile() string

	// Command returns the command and args that build using buildFile.
	// The command runs with the submission directory as working directory.
	Command(buildFile string) []string

	// Validate checks the build file before the tool is invoked.
	Validate(buildFile string) error
}

// Registry maps tool names to their Tool implementations.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates a registry with all supported build tools.
func NewRegistry() *Registry {
	r := &Registry{
		tools: make(map[string]Tool),
	}
	r.Register(&MakeTool{})
	r.Register(&ScriptTool{})
	return r
}

// Register adds a tool to the registry.
func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("unsupported build tool: %q (supported: %s)", name, strings.Join(r.Names(), ", "))
	}
	return t, nil
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func validateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return fmt.Errorf("build file %s is empty", path)
	}
	if info.Size() > 1<<20 {
		return fmt.Errorf("build file too large: %d bytes (max 1MB)", info.Size())
	}
	return nil
}
