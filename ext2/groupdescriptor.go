package ext2

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/xerrors"
)

// GroupDescriptorSize is the on-disk size of one ext2 group descriptor.
const GroupDescriptorSize = 32

// GroupDescriptor is 32 byte
type GroupDescriptor struct {
	BlockBitmap     uint32   `struc:"uint32,little"`
	InodeBitmap     uint32   `struc:"uint32,little"`
	InodeTable      uint32   `struc:"uint32,little"`
	FreeBlocksCount uint16   `struc:"uint16,little"`
	FreeInodesCount uint16   `struc:"uint16,little"`
	UsedDirsCount   uint16   `struc:"uint16,little"`
	Pad             uint16   `struc:"uint16,little"`
	Reserved        [12]byte `struc:"[12]pad"`
}

// GetInodeBitmapLoc is the byte offset of the group's inode bitmap.
func (gd *GroupDescriptor) GetInodeBitmapLoc(blockSize int64) int64 {
	return int64(gd.InodeBitmap) * blockSize
}

// GetInodeTableLoc is the byte offset of the group's inode table.
func (gd *GroupDescriptor) GetInodeTableLoc(blockSize int64) int64 {
	return int64(gd.InodeTable) * blockSize
}

// GetBlockBitmapLoc is the byte offset of the group's block bitmap.
func (gd *GroupDescriptor) GetBlockBitmapLoc(blockSize int64) int64 {
	return int64(gd.BlockBitmap) * blockSize
}

// groupDescriptorTableOffset is the first block boundary after the superblock:
// block 2 for 1 KiB blocks, block 1 otherwise.
func groupDescriptorTableOffset(sb Superblock) int64 {
	blockSize := sb.GetBlockSize()
	end := int64(SuperblockOffset + SuperblockSize)
	return (end + blockSize - 1) / blockSize * blockSize
}

// DecodeGroupDescriptors reads one descriptor per group. Field values are not
// validated; block numbers taken from them surface as IOError when unreadable.
func DecodeGroupDescriptors(v *Volume, sb Superblock) ([]GroupDescriptor, error) {
	count := int(sb.GetGroupCount())
	offset := groupDescriptorTableOffset(sb)

	buf, err := v.ReadAt(offset, count*GroupDescriptorSize)
	if err != nil {
		if isTruncated(err) {
			return nil, xerrors.Errorf("group descriptor table is truncated (%v): %w", err, ErrFormat)
		}
		return nil, xerrors.Errorf("failed to read group descriptor: %w", err)
	}

	r := bytes.NewReader(buf)
	gds := make([]GroupDescriptor, 0, count)
	for i := 0; i < count; i++ {
		var gd GroupDescriptor
		if err := binary.Read(r, binary.LittleEndian, &gd); err != nil {
			return nil, xerrors.Errorf("failed to parse group descriptor %d (%v): %w", i, err, ErrFormat)
		}
		gds = append(gds, gd)
	}
	return gds, nil
}
