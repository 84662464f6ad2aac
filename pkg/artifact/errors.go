package artifact

import (
	"fmt"

	"github.com/pkg/errors"
)

// NotFoundError returns a new ErrNotFound
func NotFoundError(what string) error {
	return ErrNotFound{what}
}

// ErrNotFound is the error returned when an artifact path or an archive does not exist.
type ErrNotFound struct {
	What string
}

func (err ErrNotFound) Error() string {
	return fmt.Sprintf("artifact not found: %s", err.What)
}

// CopyFailedError returns a new ErrCopyFailed
func CopyFailedError(path string, cause error) error {
	return ErrCopyFailed{path, cause}
}

// ErrCopyFailed is the error returned when an artifact could not be copied.
type ErrCopyFailed struct {
	Path  string
	Cause error
}

func (err ErrCopyFailed) Error() string {
	return fmt.Sprintf("artifact copy failed for %s: %s", err.Path, err.Cause)
}

func (err ErrCopyFailed) Unwrap() error {
	return err.Cause
}

// IsNotFound returns true if err is caused by a missing artifact.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

// IsCopyFailed returns true if err is caused by a failed copy.
func IsCopyFailed(err error) bool {
	var cf ErrCopyFailed
	return errors.As(err, &cf)
}
