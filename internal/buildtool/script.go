package buildtool

// ScriptTool builds by running a shell script from the submission.
type ScriptTool struct{}

func (s *ScriptTool) Name() string { return "script" }

func (s *ScriptTool) BuildFile() string { return "build.sh" }

func (s *ScriptTool) Command(buildFile string) []string {
	return []string{
		"/bin/sh",
		"-e", // Exit on error
		buildFile,
	}
}

func (s *ScriptTool) Validate(buildFile string) error { return validateFile(buildFile) }
