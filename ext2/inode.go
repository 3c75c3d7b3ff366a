package ext2

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/xerrors"
)

const (
	directBlockCount = 12
	blockPointerSize = 4

	modeTypeMask    = 0xF000
	FifoFlag        = 0x1000
	CharDeviceFlag  = 0x2000
	DirectoryFlag   = 0x4000
	BlockDeviceFlag = 0x6000
	FileFlag        = 0x8000
	SymlinkFlag     = 0xA000
	SocketFlag      = 0xC000
)

type BlockAddressing struct {
	DirectBlock         [directBlockCount]uint32 `struc:"[12]uint32,little"`
	SingleIndirectBlock uint32                   `struc:"uint32,little"`
	DoubleIndirectBlock uint32                   `struc:"uint32,little"`
	TripleIndirectBlock uint32                   `struc:"uint32,little"`
}

// Inode is index-node (the 128 byte revision 0 record; larger records are
// truncated to it)
type Inode struct {
	Mode       uint16          `struc:"uint16,little"`
	UID        uint16          `struc:"uint16,little"`
	Size       uint32          `struc:"uint32,little"`
	Atime      uint32          `struc:"uint32,little"`
	Ctime      uint32          `struc:"uint32,little"`
	Mtime      uint32          `struc:"uint32,little"`
	Dtime      uint32          `struc:"uint32,little"`
	GID        uint16          `struc:"uint16,little"`
	LinksCount uint16          `struc:"uint16,little"`
	Blocks     uint32          `struc:"uint32,little"`
	Flags      uint32          `struc:"uint32,little"`
	Osd1       uint32          `struc:"uint32,little"`
	Block      BlockAddressing `struc:"struct"`
	Generation uint32          `struc:"uint32,little"`
	FileACL    uint32          `struc:"uint32,little"`
	DirACL     uint32          `struc:"uint32,little"`
	Faddr      uint32          `struc:"uint32,little"`
	Osd2       [12]byte        `struc:"[12]byte"`
}

func (i Inode) IsDir() bool {
	return i.Mode&modeTypeMask == DirectoryFlag
}

func (i Inode) IsRegular() bool {
	return i.Mode&modeTypeMask == FileFlag
}

func (i Inode) IsSymlink() bool {
	return i.Mode&modeTypeMask == SymlinkFlag
}

// FileType returns the directory-entry file type matching the inode mode.
func (i Inode) FileType() uint8 {
	switch {
	case i.IsRegular():
		return FileTypeRegular
	case i.IsDir():
		return FileTypeDirectory
	case i.IsSymlink():
		return FileTypeSymlink
	}
	switch i.Mode & modeTypeMask {
	case CharDeviceFlag:
		return FileTypeCharDevice
	case BlockDeviceFlag:
		return FileTypeBlockDevice
	case FifoFlag:
		return FileTypeFifo
	case SocketFlag:
		return FileTypeSocket
	}
	return FileTypeUnknown
}

// InUse reports whether the inode is live: still linked and never deleted.
func (i Inode) InUse() bool {
	return i.LinksCount != 0 && i.Dtime == 0
}

// InodeOffset returns the absolute byte offset of inode number ino.
func (ext2 *FileSystem) InodeOffset(ino uint32) (int64, error) {
	if ino == 0 {
		return 0, xerrors.Errorf("inode 0: %w", ErrOutOfRange)
	}
	group := (ino - 1) / ext2.sb.InodePerGroup
	index := (ino - 1) % ext2.sb.InodePerGroup
	gd, err := ext2.groupDescriptor(group)
	if err != nil {
		return 0, xerrors.Errorf("inode %d: %w", ino, err)
	}
	return gd.GetInodeTableLoc(ext2.blockSize) + int64(index)*int64(ext2.sb.GetInodeSize()), nil
}

// Inode reads and decodes inode number ino.
func (ext2 *FileSystem) Inode(ino uint32) (*Inode, error) {
	offset, err := ext2.InodeOffset(ino)
	if err != nil {
		return nil, err
	}
	buf, err := ext2.v.ReadAt(offset, int(ext2.sb.GetInodeSize()))
	if err != nil {
		return nil, xerrors.Errorf("failed to read inode %d: %w", ino, err)
	}

	inode := Inode{}
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &inode); err != nil {
		return nil, xerrors.Errorf("failed to read binary inode %d (%v): %w", ino, err, ErrFormat)
	}
	return &inode, nil
}

// WalkBlocks calls fn with every data block of inode in addressing order: the
// direct pointers up to the first zero, then the blocks behind the single, double
// and triple indirect pointers. A zero entry ends the pointer block holding it;
// each indirect pointer of the inode is followed independently of the others.
// Errors returned by fn stop the walk and are returned unchanged.
func (ext2 *FileSystem) WalkBlocks(inode *Inode, fn func(block uint32) error) error {
	addresses := inode.Block
	for _, blockAddress := range addresses.DirectBlock {
		if blockAddress == 0 {
			break
		}
		if err := fn(blockAddress); err != nil {
			return err
		}
	}

	indirects := []struct {
		block uint32
		level int
	}{
		{addresses.SingleIndirectBlock, 1},
		{addresses.DoubleIndirectBlock, 2},
		{addresses.TripleIndirectBlock, 3},
	}
	for _, indirect := range indirects {
		if indirect.block == 0 {
			continue
		}
		if err := ext2.resolveIndirectBlockAddress(indirect.block, indirect.level, fn); err != nil {
			return err
		}
	}
	return nil
}

// resolveIndirectBlockAddress walks a pointer block whose entries lie level-1
// pointer blocks above the data.
func (ext2 *FileSystem) resolveIndirectBlockAddress(block uint32, level int, fn func(uint32) error) error {
	addresses, err := ext2.readBlock(block)
	if err != nil {
		return xerrors.Errorf("failed to read level %d indirect block: %w", level, err)
	}

	for off := 0; off+blockPointerSize <= len(addresses); off += blockPointerSize {
		address := binary.LittleEndian.Uint32(addresses[off:])
		if address == 0 {
			break
		}
		if level == 1 {
			err = fn(address)
		} else {
			err = ext2.resolveIndirectBlockAddress(address, level-1, fn)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// BlockAddresses returns every data block of inode, in WalkBlocks order.
func (ext2 *FileSystem) BlockAddresses(inode *Inode) ([]uint32, error) {
	var blockAddresses []uint32
	err := ext2.WalkBlocks(inode, func(block uint32) error {
		blockAddresses = append(blockAddresses, block)
		return nil
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to resolve block addresses: %w", err)
	}
	return blockAddresses, nil
}
