package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Collapse removes redundant single-directory nesting from dir: while the only
// significant entry is a directory it descends, then lifts the innermost
// directory's contents into dir. Reports whether anything moved. Running it on
// an already collapsed directory is a no-op.
func (e *Extractor) Collapse(dir string) (bool, error) {
	top, err := e.significant(dir)
	if err != nil {
		return false, err
	}
	if len(top) != 1 || !top[0].IsDir() {
		return false, nil
	}

	// Stage the wrapper under a unique name so inner entries that share its
	// name can be moved into dir.
	staging := filepath.Join(dir, ".collapse-"+uuid.NewString())
	if err := os.Rename(filepath.Join(dir, top[0].Name()), staging); err != nil {
		return false, fmt.Errorf("staging %s: %w", top[0].Name(), err)
	}

	current := staging
	depth := 1
	for {
		entries, err := e.significant(current)
		if err != nil {
			return false, err
		}
		if len(entries) != 1 || !entries[0].IsDir() {
			break
		}
		current = filepath.Join(current, entries[0].Name())
		depth++
	}

	inner, err := os.ReadDir(current)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", current, err)
	}
	for _, entry := range inner {
		dst := filepath.Join(dir, entry.Name())
		if _, err := os.Lstat(dst); err == nil {
			log.Warn().Str("dir", dir).Str("entry", entry.Name()).Msg("entry already present, discarding nested copy")
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return false, err
		}
		if err := os.Rename(filepath.Join(current, entry.Name()), dst); err != nil {
			return false, fmt.Errorf("moving %s: %w", entry.Name(), err)
		}
	}

	if err := os.RemoveAll(staging); err != nil {
		return false, fmt.Errorf("removing %s: %w", staging, err)
	}

	log.Info().Str("dir", dir).Int("depth", depth).Int("entries", len(inner)).Msg("collapsed nested submission directory")
	return true, nil
}

// significant lists dir without the ignored noise entries.
func (e *Extractor) significant(dir string) ([]fs.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	out := entries[:0]
	for _, entry := range entries {
		if e.ignore[entry.Name()] {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}
