package daemon

import (
	"errors"
	"fmt"
)

var (
	// ErrStream wraps failures reported by the notification stream itself.
	ErrStream = errors.New("notification stream failed")

	// ErrNotSetUp is returned by Run when Setup has not completed.
	ErrNotSetUp = errors.New("daemon not set up")
)

// Copy operations, as reported in CopyError.Op.
const (
	OpMkdir = "mkdir"
	OpCopy  = "copy"
)

// CopyError reports a failed reconciliation copy.
type CopyError struct {
	Op     string
	Source string
	Target string
	Err    error
}

func (e *CopyError) Error() string {
	switch e.Op {
	case OpMkdir:
		return fmt.Sprintf("create parent directory for %s: %v", e.Target, e.Err)
	default:
		return fmt.Sprintf("copy %s to %s: %v", e.Source, e.Target, e.Err)
	}
}

func (e *CopyError) Unwrap() error {
	return e.Err
}

// SetupError reports which copyset target stopped setup.
type SetupError struct {
	Copyset string
	Source  string
	Err     error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("copyset %q: %s: %v", e.Copyset, e.Source, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// IsCopyError reports whether err was caused by a failed copy.
func IsCopyError(err error) bool {
	var copyErr *CopyError
	return errors.As(err, &copyErr)
}
