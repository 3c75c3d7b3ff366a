package ext2

import (
	"bytes"
	"encoding/binary"

	"github.com/lunixbochs/struc"
	"golang.org/x/xerrors"
)

const directoryEntryHeaderSize = 8

// File types stored in a directory entry.
const (
	FileTypeUnknown uint8 = iota
	FileTypeRegular
	FileTypeDirectory
	FileTypeCharDevice
	FileTypeBlockDevice
	FileTypeFifo
	FileTypeSocket
	FileTypeSymlink
)

// DirectoryEntry is one record of a directory data block.
type DirectoryEntry struct {
	Inode    uint32 `struc:"uint32,little"`
	RecLen   uint16 `struc:"uint16,little"`
	NameLen  uint8  `struc:"uint8,sizeof=Name"`
	FileType uint8  `struc:"uint8"`
	Name     string `struc:"[]byte"`
}

func (e DirectoryEntry) isDotEntry() bool {
	return e.Name == "." || e.Name == ".."
}

// parseDirectoryBlock decodes the entries packed in one directory block. Entries
// with inode 0 are padding: their record length is honoured but nothing else of
// them is read.
func parseDirectoryBlock(block []byte) ([]DirectoryEntry, error) {
	var entries []DirectoryEntry
	for off := 0; off < len(block); {
		if off+directoryEntryHeaderSize > len(block) {
			return nil, xerrors.Errorf("directory entry header at %d overruns block: %w", off, ErrFormat)
		}
		ino := binary.LittleEndian.Uint32(block[off:])
		recLen := int(binary.LittleEndian.Uint16(block[off+4:]))
		if recLen < directoryEntryHeaderSize || off+recLen > len(block) {
			return nil, xerrors.Errorf("directory entry at %d has record length %d: %w", off, recLen, ErrFormat)
		}
		if ino == 0 {
			off += recLen
			continue
		}

		nameLen := int(block[off+6])
		if directoryEntryHeaderSize+nameLen > recLen {
			return nil, xerrors.Errorf("directory entry at %d has name length %d beyond record length %d: %w", off, nameLen, recLen, ErrFormat)
		}
		entry := DirectoryEntry{}
		if err := struc.Unpack(bytes.NewReader(block[off:off+recLen]), &entry); err != nil {
			return nil, xerrors.Errorf("failed to parse directory entry at %d (%v): %w", off, err, ErrFormat)
		}
		entries = append(entries, entry)
		off += recLen
	}
	return entries, nil
}

// ReadDir returns the entries of directory ino, without "." and "..".
func (ext2 *FileSystem) ReadDir(ino uint32) ([]DirectoryEntry, error) {
	inode, err := ext2.Inode(ino)
	if err != nil {
		return nil, xerrors.Errorf("failed to get directory inode: %w", err)
	}
	if !inode.IsDir() {
		return nil, xerrors.Errorf("inode %d: %w", ino, ErrNotDirectory)
	}

	var entries []DirectoryEntry
	err = ext2.WalkBlocks(inode, func(block uint32) error {
		buf, err := ext2.readBlock(block)
		if err != nil {
			return xerrors.Errorf("failed to read directory block: %w", err)
		}
		blockEntries, err := parseDirectoryBlock(buf)
		if err != nil {
			return xerrors.Errorf("failed to parse directory block %d: %w", block, err)
		}
		for _, entry := range blockEntries {
			if entry.isDotEntry() {
				continue
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to list directory entries inode(%d): %w", ino, err)
	}
	return entries, nil
}
