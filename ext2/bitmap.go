package ext2

import (
	"github.com/diskfs/go-diskfs/util/bitmap"
	"golang.org/x/xerrors"
)

// ReadInodeBitmap returns the inode bitmap stored for group, as found on disk.
func (ext2 *FileSystem) ReadInodeBitmap(group uint32) (*bitmap.Bitmap, error) {
	gd, err := ext2.groupDescriptor(group)
	if err != nil {
		return nil, err
	}
	b, err := ext2.readBlock(gd.InodeBitmap)
	if err != nil {
		return nil, xerrors.Errorf("failed to read inode bitmap of group %d: %w", group, err)
	}
	return bitmap.FromBytes(b), nil
}

// ReadBlockBitmap returns the block bitmap stored for group, as found on disk.
func (ext2 *FileSystem) ReadBlockBitmap(group uint32) (*bitmap.Bitmap, error) {
	gd, err := ext2.groupDescriptor(group)
	if err != nil {
		return nil, err
	}
	b, err := ext2.readBlock(gd.BlockBitmap)
	if err != nil {
		return nil, xerrors.Errorf("failed to read block bitmap of group %d: %w", group, err)
	}
	return bitmap.FromBytes(b), nil
}

// setAll marks the first n bits of bm.
func setAll(bm *bitmap.Bitmap, n int) error {
	for i := 0; i < n; i++ {
		if err := bm.Set(i); err != nil {
			return xerrors.Errorf("failed to set bit %d: %w", i, err)
		}
	}
	return nil
}
