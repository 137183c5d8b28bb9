package archive

import (
	"errors"
	"fmt"
)

var (
	ErrArchiveInvalid = errors.New("not a tar archive")
	ErrUnsafeEntry    = errors.New("unsafe archive entry")
)

// ExtractError wraps errors with the archive being extracted.
type ExtractError struct {
	Archive string
	Op      string
	Err     error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("archive %s: %s: %s", e.Archive, e.Op, e.Err)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}
