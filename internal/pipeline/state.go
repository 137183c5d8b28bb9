package pipeline

// State is the position of a submission in the grading pipeline.
type State int

const (
	StateUnextracted State = iota
	StateExtracted
	StateBuilt
	StateRan
	StateTestsComplete
	StateBuildFailed
	StateRunFailed
)

func (s State) String() string {
	switch s {
	case StateUnextracted:
		return "unextracted"
	case StateExtracted:
		return "extracted"
	case StateBuilt:
		return "built"
	case StateRan:
		return "ran"
	case StateTestsComplete:
		return "tests_complete"
	case StateBuildFailed:
		return "build_failed"
	case StateRunFailed:
		return "run_failed"
	default:
		return "unknown"
	}
}

// Failed reports whether the pipeline stopped early for this submission.
func (s State) Failed() bool {
	return s == StateBuildFailed || s == StateRunFailed
}
