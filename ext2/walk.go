package ext2

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

// RootName labels the marker entry emitted for the volume root.
const RootName = "root"

type walker struct {
	ext2    *FileSystem
	sink    Sink
	visited map[uint32]struct{}

	// skipped collects subtree errors; the walk carries on past them.
	skipped error
}

// Walk emits the whole directory tree: a root marker at depth 1, then every entry
// below the root directory. Subtree errors (see IsSubtreeError) are collected and
// returned together once the walk is over; any other error ends the walk and is
// returned along with the subtree errors gathered so far. Use IsFatal to tell the
// two apart.
func (ext2 *FileSystem) Walk(sink Sink) error {
	if err := sink.Emit(Entry{Depth: 1, Name: RootName, Ino: rootInodeNumber, FileType: FileTypeDirectory, IsDir: true, Root: true}); err != nil {
		return err
	}
	return ext2.WalkFrom(rootInodeNumber, 1, sink)
}

// WalkFrom emits the entries below directory ino, which sits at the given depth;
// its children are emitted at depth+1.
func (ext2 *FileSystem) WalkFrom(ino uint32, depth int, sink Sink) error {
	w := &walker{
		ext2:    ext2,
		sink:    sink,
		visited: map[uint32]struct{}{},
	}

	inode, err := ext2.Inode(ino)
	if err != nil {
		if IsSubtreeError(err) {
			w.skip(ino, err)
			return w.skipped
		}
		return xerrors.Errorf("failed to get directory inode: %w", err)
	}
	if err := w.walk(ino, inode, depth); err != nil {
		return multierr.Append(w.skipped, err)
	}
	return w.skipped
}

func (w *walker) skip(ino uint32, err error) {
	w.ext2.logger.Warn("skipping directory subtree", zap.Uint32("inode", ino), zap.Error(err))
	w.skipped = multierr.Append(w.skipped, err)
}

func (w *walker) walk(ino uint32, inode *Inode, depth int) error {
	if !inode.IsDir() {
		w.skip(ino, xerrors.Errorf("inode %d: %w", ino, ErrNotDirectory))
		return nil
	}
	if w.ext2.cycleGuard {
		if _, ok := w.visited[ino]; ok {
			w.skip(ino, xerrors.Errorf("inode %d: %w", ino, ErrCycle))
			return nil
		}
		w.visited[ino] = struct{}{}
	}

	return w.ext2.WalkBlocks(inode, func(block uint32) error {
		buf, err := w.ext2.readBlock(block)
		if err != nil {
			return xerrors.Errorf("failed to read directory block of inode %d: %w", ino, err)
		}
		entries, err := parseDirectoryBlock(buf)
		if err != nil {
			return xerrors.Errorf("failed to parse directory block %d of inode %d: %w", block, ino, err)
		}

		for _, entry := range entries {
			if entry.isDotEntry() {
				continue
			}
			if err := w.visit(entry, depth+1); err != nil {
				return err
			}
		}
		return nil
	})
}

// visit emits entry at depth and descends into it when it is a directory. An
// entry without a recorded file type is a leaf, unless the volume predates the
// filetype feature, in which case the child's inode mode decides.
func (w *walker) visit(entry DirectoryEntry, depth int) error {
	fileType := entry.FileType
	var child *Inode
	var lookupErr error
	if fileType == FileTypeUnknown && !w.ext2.sb.FeatureIncompatFiletype() {
		child, lookupErr = w.ext2.Inode(entry.Inode)
		if lookupErr != nil && !IsSubtreeError(lookupErr) {
			return lookupErr
		}
		if child != nil {
			fileType = child.FileType()
		}
	}
	isDir := fileType == FileTypeDirectory

	err := w.sink.Emit(Entry{
		Depth:    depth,
		Name:     entry.Name,
		Ino:      entry.Inode,
		FileType: fileType,
		IsDir:    isDir,
	})
	if err != nil {
		return err
	}
	if lookupErr != nil {
		w.skip(entry.Inode, lookupErr)
		return nil
	}
	if !isDir {
		return nil
	}

	if child == nil {
		inode, err := w.ext2.Inode(entry.Inode)
		if err != nil {
			if IsSubtreeError(err) {
				w.skip(entry.Inode, err)
				return nil
			}
			return err
		}
		child = inode
	}
	return w.walk(entry.Inode, child, depth)
}
