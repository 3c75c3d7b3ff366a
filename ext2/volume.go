package ext2

import (
	"io"

	"github.com/diskfs/go-diskfs/backend"
	"github.com/diskfs/go-diskfs/backend/file"
	"golang.org/x/xerrors"
)

// Volume is the byte store holding an ext2 image. Nothing else in this package
// touches the underlying file.
type Volume struct {
	storage  backend.Storage
	writable backend.WritableFile
}

// NewVolume wraps an opened storage backend.
func NewVolume(storage backend.Storage) *Volume {
	return &Volume{storage: storage}
}

// OpenVolume opens the image or device at path. A read-only volume rejects WriteAt.
func OpenVolume(path string, readOnly bool) (*Volume, error) {
	storage, err := file.OpenFromPath(path, readOnly)
	if err != nil {
		return nil, xerrors.Errorf("failed to open volume %s: %w", path, err)
	}
	return NewVolume(storage), nil
}

// ReadAt reads exactly length bytes starting at offset.
func (v *Volume) ReadAt(offset int64, length int) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, &IOError{Op: "read", Offset: offset, Length: length, Err: xerrors.New("negative range")}
	}
	buf := make([]byte, length)
	n, err := v.storage.ReadAt(buf, offset)
	if n == length {
		return buf, nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return nil, &IOError{Op: "read", Offset: offset, Length: length, Err: err}
}

// WriteAt writes b at offset. Writes are visible to later reads on the same volume.
func (v *Volume) WriteAt(offset int64, b []byte) error {
	if v.writable == nil {
		w, err := v.storage.Writable()
		if err != nil {
			return &IOError{Op: "write", Offset: offset, Length: len(b), Err: err}
		}
		v.writable = w
	}
	n, err := v.writable.WriteAt(b, offset)
	if err == nil && n != len(b) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return &IOError{Op: "write", Offset: offset, Length: len(b), Err: err}
	}
	return nil
}

// Close releases the underlying storage.
func (v *Volume) Close() error {
	return v.storage.Close()
}

// isTruncated reports whether err is a read that ran past the end of the volume.
func isTruncated(err error) bool {
	return xerrors.Is(err, io.ErrUnexpectedEOF) || xerrors.Is(err, io.EOF)
}
