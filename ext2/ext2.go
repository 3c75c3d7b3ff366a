package ext2

import (
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

/*
Ext2 Block Layout (1 KiB blocks, block 0 is the boot block)
+--------------+-------------+-------------------+-------------------+--------------+-------------+------------------+
| Boot Block   | Super Block | Group Descriptors | Data Block Bitmap | inode Bitmap | inode Table | Data Blocks      |
+--------------+-------------+-------------------+-------------------+--------------+-------------+------------------+
| 1024 bytes   | 1 block     | many blocks       | 1 block           | 1 block      | many blocks | many more blocks |
+--------------+-------------+-------------------+-------------------+--------------+-------------+------------------+
With larger blocks the boot record and the superblock share block 0.
*/

const (
	rootInodeNumber = 2

	// ReservedInodes is the number of inodes (1..10) kept for the filesystem itself.
	ReservedInodes = 10
)

// FileSystem holds the geometry of one opened volume. Every component reads
// block size, group count and descriptors from here rather than from globals.
type FileSystem struct {
	v *Volume

	sb        Superblock
	gds       []GroupDescriptor
	blockSize int64

	logger     *zap.Logger
	checkMagic bool
	cycleGuard bool

	// dataBlockOrigin starts block-bitmap bit 0 at the first data block instead
	// of block 0 of the group.
	dataBlockOrigin bool
}

// Option configures Open.
type Option func(*FileSystem)

// WithLogger sets the logger used for progress and skipped subtrees.
func WithLogger(logger *zap.Logger) Option {
	return func(ext2 *FileSystem) {
		ext2.logger = logger
	}
}

// WithMagicCheck controls whether a superblock without the ext2 magic is refused.
// It is enabled by default.
func WithMagicCheck(enabled bool) Option {
	return func(ext2 *FileSystem) {
		ext2.checkMagic = enabled
	}
}

// WithDataBlockOrigin makes bit i of group g's block bitmap describe block
// first_data_block + g*blocks_per_group + i, the ext2 layout, instead of block
// g*blocks_per_group + i. The two differ only when first_data_block is non-zero,
// that is on 1 KiB volumes. It is disabled by default.
func WithDataBlockOrigin(enabled bool) Option {
	return func(ext2 *FileSystem) {
		ext2.dataBlockOrigin = enabled
	}
}

// WithCycleGuard controls whether Walk tracks visited directories. It is enabled
// by default; without it a cyclic directory graph is walked forever.
func WithCycleGuard(enabled bool) Option {
	return func(ext2 *FileSystem) {
		ext2.cycleGuard = enabled
	}
}

// Check reports whether v starts with a decodable ext2 superblock.
func Check(v *Volume) bool {
	sb, err := DecodeSuperblock(v)
	if err != nil {
		return false
	}
	return sb.CheckMagic() == nil
}

// Open decodes the superblock and group descriptor table of v.
func Open(v *Volume, opts ...Option) (*FileSystem, error) {
	ext2 := &FileSystem{
		v:          v,
		logger:     zap.NewNop(),
		checkMagic: true,
		cycleGuard: true,
	}
	for _, opt := range opts {
		opt(ext2)
	}

	sb, err := DecodeSuperblock(v)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode super block: %w", err)
	}
	if ext2.checkMagic {
		if err := sb.CheckMagic(); err != nil {
			return nil, xerrors.Errorf("failed to validate super block: %w", err)
		}
	}

	gds, err := DecodeGroupDescriptors(v, sb)
	if err != nil {
		return nil, xerrors.Errorf("failed to get group descriptors: %w", err)
	}

	ext2.sb = sb
	ext2.gds = gds
	ext2.blockSize = sb.GetBlockSize()

	ext2.logger.Info("opened ext2 volume",
		zap.Stringer("uuid", sb.VolumeUUID()),
		zap.Int64("block_size", ext2.blockSize),
		zap.Uint32("groups", sb.GetGroupCount()),
		zap.Uint32("inodes_per_group", sb.InodePerGroup),
		zap.Uint32("blocks_per_group", sb.BlockPerGroup),
	)
	return ext2, nil
}

// Superblock returns the decoded superblock.
func (ext2 *FileSystem) Superblock() Superblock {
	return ext2.sb
}

// GroupDescriptors returns a copy of the group descriptor table.
func (ext2 *FileSystem) GroupDescriptors() []GroupDescriptor {
	gds := make([]GroupDescriptor, len(ext2.gds))
	copy(gds, ext2.gds)
	return gds
}

func (ext2 *FileSystem) BlockSize() int64 {
	return ext2.blockSize
}

func (ext2 *FileSystem) GroupCount() uint32 {
	return uint32(len(ext2.gds))
}

func (ext2 *FileSystem) groupDescriptor(group uint32) (*GroupDescriptor, error) {
	if group >= uint32(len(ext2.gds)) {
		return nil, xerrors.Errorf("group %d of %d: %w", group, len(ext2.gds), ErrOutOfRange)
	}
	return &ext2.gds[group], nil
}

func (ext2 *FileSystem) readBlock(block uint32) ([]byte, error) {
	buf, err := ext2.v.ReadAt(int64(block)*ext2.blockSize, int(ext2.blockSize))
	if err != nil {
		return nil, xerrors.Errorf("failed to read block %d: %w", block, err)
	}
	return buf, nil
}
