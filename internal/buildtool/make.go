package buildtool

// MakeTool builds with make, passing the discovered makefile explicitly so a
// lowercase "makefile" or "MAKEFILE" is honoured on case-sensitive filesystems.
type MakeTool struct{}

func (m *MakeTool) Name() string { return "make" }

func (m *MakeTool) BuildFile() string { return "Makefile" }

func (m *MakeTool) Command(buildFile string) []string {
	return []string{"make", "-f", buildFile}
}

func (m *MakeTool) Validate(buildFile string) error { return validateFile(buildFile) }
