package ext2

import (
	"fmt"

	"go.uber.org/multierr"
	"golang.org/x/xerrors"
)

var (
	// ErrFormat marks a record that cannot be decoded: a truncated volume, a bad
	// magic number or a directory entry that overruns its block.
	ErrFormat = xerrors.New("invalid ext2 format")

	// ErrOutOfRange marks an inode or group index outside the volume.
	ErrOutOfRange = xerrors.New("out of range")

	// ErrNotDirectory is returned when a directory inode was expected.
	ErrNotDirectory = xerrors.New("not a directory")

	// ErrCycle is returned when a directory is reached a second time during a walk.
	ErrCycle = xerrors.New("directory cycle")
)

// IOError reports a byte range of the volume that could not be read or written.
type IOError struct {
	Op     string
	Offset int64
	Length int
	Err    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s of %d bytes at offset %d: %v", e.Op, e.Length, e.Offset, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// IsSubtreeError reports whether err only invalidates the directory subtree it was
// raised for. Such errors are collected by Walk instead of ending it.
func IsSubtreeError(err error) bool {
	if err == nil {
		return false
	}
	var ioErr *IOError
	if xerrors.As(err, &ioErr) {
		return false
	}
	return xerrors.Is(err, ErrOutOfRange) || xerrors.Is(err, ErrNotDirectory) || xerrors.Is(err, ErrCycle)
}

// IsFatal reports whether err, possibly a combination of errors returned by Walk,
// contains anything other than subtree errors.
func IsFatal(err error) bool {
	for _, e := range multierr.Errors(err) {
		if !IsSubtreeError(e) {
			return true
		}
	}
	return false
}
