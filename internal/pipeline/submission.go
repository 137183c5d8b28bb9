package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"submission-grader/internal/archive"
)

// Submission is one student's archive. Name is derived from the archive file
// name and doubles as the extraction directory name.
type Submission struct {
	Name    string
	Archive string
}

// NewSubmission derives the student identity from archivePath.
func NewSubmission(archivePath, delimiter string) Submission {
	return Submission{
		Name:    archive.StudentName(archivePath, delimiter),
		Archive: archivePath,
	}
}

// LoadSubmissions lists every regular file in dir as a submission, sorted by
// student name and then archive path.
func LoadSubmissions(dir, delimiter string) ([]Submission, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading submissions directory: %w", err)
	}

	subs := make([]Submission, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		subs = append(subs, NewSubmission(filepath.Join(dir, entry.Name()), delimiter))
	}

	sort.SliceStable(subs, func(i, j int) bool {
		if subs[i].Name != subs[j].Name {
			return subs[i].Name < subs[j].Name
		}
		return subs[i].Archive < subs[j].Archive
	})
	return subs, nil
}
