package ext2

import (
	"io/fs"
)

var (
	_ Sink = SinkFunc(nil)
)

// Entry is one node of the directory tree, passed to a Sink as the walk reaches it.
type Entry struct {
	Depth    int
	Name     string
	Ino      uint32
	FileType uint8
	IsDir    bool

	// Root is set only for the marker emitted before the root directory is walked.
	Root bool
}

// Type maps the entry's file type to the io/fs mode type bits.
func (e Entry) Type() fs.FileMode {
	if e.IsDir {
		return fs.ModeDir
	}
	switch e.FileType {
	case FileTypeCharDevice:
		return fs.ModeDevice | fs.ModeCharDevice
	case FileTypeBlockDevice:
		return fs.ModeDevice
	case FileTypeFifo:
		return fs.ModeNamedPipe
	case FileTypeSocket:
		return fs.ModeSocket
	case FileTypeSymlink:
		return fs.ModeSymlink
	}
	return 0
}

// Sink receives the entries of a walk in traversal order. An error returned by
// Emit ends the walk.
type Sink interface {
	Emit(Entry) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Entry) error

func (f SinkFunc) Emit(e Entry) error {
	return f(e)
}
