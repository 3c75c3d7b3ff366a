package ext2

import (
	"github.com/diskfs/go-diskfs/util/bitmap"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

// RecoverOptions controls Recover.
type RecoverOptions struct {
	// DryRun computes the bitmaps without writing them back.
	DryRun bool
}

// GroupReport describes the bitmaps recovered for one group.
type GroupReport struct {
	Group      uint32
	UsedInodes int
	UsedBlocks int

	// AllBlocksUsed is set when the descriptor recorded no free blocks and the
	// block contents were not inspected.
	AllBlocksUsed bool
}

// RecoveryReport is the outcome of Recover, one GroupReport per finished group.
type RecoveryReport struct {
	Groups []GroupReport
}

func (r RecoveryReport) UsedInodes() int {
	n := 0
	for _, g := range r.Groups {
		n += g.UsedInodes
	}
	return n
}

func (r RecoveryReport) UsedBlocks() int {
	n := 0
	for _, g := range r.Groups {
		n += g.UsedBlocks
	}
	return n
}

// Recover rebuilds the inode and block bitmaps of every group from the inode
// table and the block contents, ignoring what the stored bitmaps say, and writes
// them over the stored ones group by group. On error the groups already written
// stay written; the report lists them.
func (ext2 *FileSystem) Recover(opts RecoverOptions) (RecoveryReport, error) {
	var report RecoveryReport
	reservedApplied := false

	for group := uint32(0); group < ext2.GroupCount(); group++ {
		gd := ext2.gds[group]

		inodeBitmap, usedInodes, err := ext2.recoverInodeBitmap(group, !reservedApplied)
		if err != nil {
			return report, xerrors.Errorf("failed to recover inode bitmap of group %d: %w", group, err)
		}
		reservedApplied = true
		inodeBytes := inodeBitmap.ToBytes()
		if !opts.DryRun {
			if err := ext2.v.WriteAt(gd.GetInodeBitmapLoc(ext2.blockSize), inodeBytes); err != nil {
				return report, xerrors.Errorf("failed to write inode bitmap of group %d: %w", group, err)
			}
		}

		blockBitmap, usedBlocks, allUsed, err := ext2.recoverBlockBitmap(group, inodeBytes)
		if err != nil {
			return report, xerrors.Errorf("failed to recover block bitmap of group %d: %w", group, err)
		}
		if !opts.DryRun {
			if err := ext2.v.WriteAt(gd.GetBlockBitmapLoc(ext2.blockSize), blockBitmap.ToBytes()); err != nil {
				return report, xerrors.Errorf("failed to write block bitmap of group %d: %w", group, err)
			}
		}

		ext2.logger.Debug("recovered group bitmaps",
			zap.Uint32("group", group),
			zap.Int("used_inodes", usedInodes),
			zap.Int("used_blocks", usedBlocks),
			zap.Bool("all_blocks_used", allUsed),
			zap.Bool("dry_run", opts.DryRun),
		)
		report.Groups = append(report.Groups, GroupReport{
			Group:         group,
			UsedInodes:    usedInodes,
			UsedBlocks:    usedBlocks,
			AllBlocksUsed: allUsed,
		})
	}
	return report, nil
}

// RecoverInodeBitmap computes the inode bitmap of group: an inode is in use iff
// its link count is non-zero and it has no deletion time. With markReserved the
// bits of the reserved inodes 1..10 are set first; only the first group processed
// in a run should ask for it.
func (ext2 *FileSystem) RecoverInodeBitmap(group uint32, markReserved bool) (*bitmap.Bitmap, error) {
	bm, _, err := ext2.recoverInodeBitmap(group, markReserved)
	return bm, err
}

func (ext2 *FileSystem) recoverInodeBitmap(group uint32, markReserved bool) (*bitmap.Bitmap, int, error) {
	if _, err := ext2.groupDescriptor(group); err != nil {
		return nil, 0, err
	}
	bm := bitmap.NewBits(int(ext2.blockSize) * 8)
	if markReserved {
		if err := setAll(bm, ReservedInodes); err != nil {
			return nil, 0, err
		}
	}

	used := 0
	perGroup := ext2.sb.InodePerGroup
	for index := uint32(0); index < perGroup; index++ {
		ino := group*perGroup + index + 1
		inode, err := ext2.Inode(ino)
		if err != nil {
			return nil, 0, xerrors.Errorf("failed to classify inode %d: %w", ino, err)
		}
		if !inode.InUse() {
			continue
		}
		if err := bm.Set(int(index)); err != nil {
			return nil, 0, xerrors.Errorf("failed to mark inode %d: %w", ino, err)
		}
		used++
	}
	return bm, used, nil
}

// RecoverBlockBitmap computes the block bitmap of group from block contents: a
// block holding any non-zero byte is used, an all-zero block is free. Allocated
// blocks that happen to be all zero are therefore reported free. When the
// descriptor records no free blocks every bit is set without reading anything.
// Bit i describes block group*blocks_per_group + i, shifted by the first data
// block under WithDataBlockOrigin.
//
// The group's own bitmap blocks are judged by the content recovery gives them, so
// that running recovery again yields the same bitmap: inodeBitmap is the content
// about to be written to the inode bitmap block (nil reads the block as stored),
// and the block bitmap block is used iff the result has any bit set.
func (ext2 *FileSystem) RecoverBlockBitmap(group uint32, inodeBitmap []byte) (*bitmap.Bitmap, error) {
	bm, _, _, err := ext2.recoverBlockBitmap(group, inodeBitmap)
	return bm, err
}

func (ext2 *FileSystem) recoverBlockBitmap(group uint32, inodeBitmap []byte) (*bitmap.Bitmap, int, bool, error) {
	gd, err := ext2.groupDescriptor(group)
	if err != nil {
		return nil, 0, false, err
	}
	bits := int(ext2.blockSize) * 8
	bm := bitmap.NewBits(bits)
	perGroup := int(ext2.sb.BlockPerGroup)

	if gd.FreeBlocksCount == 0 {
		if err := setAll(bm, bits); err != nil {
			return nil, 0, false, err
		}
		return bm, perGroup, true, nil
	}

	first := int64(group) * int64(perGroup)
	if ext2.dataBlockOrigin {
		first += int64(ext2.sb.FirstDataBlock)
	}
	used, anySet, self := 0, false, -1
	for index := 0; index < perGroup; index++ {
		block := first + int64(index)
		if ext2.sb.BlockCount != 0 && block >= int64(ext2.sb.BlockCount) {
			// beyond the last block of the volume
			if err := bm.Set(index); err != nil {
				return nil, 0, false, xerrors.Errorf("failed to mark padding bit %d: %w", index, err)
			}
			anySet = true
			continue
		}

		var content []byte
		switch {
		case block == int64(gd.BlockBitmap):
			self = index
			continue
		case inodeBitmap != nil && block == int64(gd.InodeBitmap):
			content = inodeBitmap
		default:
			content, err = ext2.v.ReadAt(block*ext2.blockSize, int(ext2.blockSize))
			if err != nil {
				return nil, 0, false, xerrors.Errorf("failed to read block %d: %w", block, err)
			}
		}
		if isZero(content) {
			continue
		}
		if err := bm.Set(index); err != nil {
			return nil, 0, false, xerrors.Errorf("failed to mark block %d: %w", block, err)
		}
		used++
		anySet = true
	}

	if self >= 0 && anySet {
		if err := bm.Set(self); err != nil {
			return nil, 0, false, xerrors.Errorf("failed to mark block bitmap block: %w", err)
		}
		used++
	}
	return bm, used, false, nil
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
