package ext2

import (
	"bytes"
	"encoding/binary"

	"github.com/google/uuid"
	"golang.org/x/xerrors"
)

const (
	SuperblockOffset = 0x400
	SuperblockSize   = 0x400
	Magic            = 0xEF53

	// inode size of revision 0 volumes, which do not record it
	goodOldInodeSize = 128
	maxLogBlockSize  = 6

	FEATURE_INCOMPAT_FILETYPE = 0x0002
)

// Superblock is ref https://www.nongnu.org/ext2-doc/ext2.html#superblock
type Superblock struct {
	InodeCount           uint32     `struc:"uint32,little"`
	BlockCount           uint32     `struc:"uint32,little"`
	RBlockCount          uint32     `struc:"uint32,little"`
	FreeBlockCount       uint32     `struc:"uint32,little"`
	FreeInodeCount       uint32     `struc:"uint32,little"`
	FirstDataBlock       uint32     `struc:"uint32,little"`
	LogBlockSize         uint32     `struc:"uint32,little"`
	LogFragSize          uint32     `struc:"uint32,little"`
	BlockPerGroup        uint32     `struc:"uint32,little"`
	FragPerGroup         uint32     `struc:"uint32,little"`
	InodePerGroup        uint32     `struc:"uint32,little"`
	Mtime                uint32     `struc:"uint32,little"`
	Wtime                uint32     `struc:"uint32,little"`
	MntCount             uint16     `struc:"uint16,little"`
	MaxMntCount          uint16     `struc:"uint16,little"`
	Magic                uint16     `struc:"uint16,little"`
	State                uint16     `struc:"uint16,little"`
	Errors               uint16     `struc:"uint16,little"`
	MinorRevLevel        uint16     `struc:"uint16,little"`
	Lastcheck            uint32     `struc:"uint32,little"`
	Checkinterval        uint32     `struc:"uint32,little"`
	CreatorOs            uint32     `struc:"uint32,little"`
	RevLevel             uint32     `struc:"uint32,little"`
	DefResuid            uint16     `struc:"uint16,little"`
	DefResgid            uint16     `struc:"uint16,little"`
	FirstIno             uint32     `struc:"uint32,little"`
	InodeSize            uint16     `struc:"uint16,little"`
	BlockGroupNr         uint16     `struc:"uint16,little"`
	FeatureCompat        uint32     `struc:"uint32,little"`
	FeatureIncompat      uint32     `struc:"uint32,little"`
	FeatureRoCompat      uint32     `struc:"uint32,little"`
	UUID                 [16]byte   `struc:"[16]byte"`
	VolumeName           [16]byte   `struc:"[16]byte"`
	LastMounted          [64]byte   `struc:"[64]byte"`
	AlgorithmUsageBitmap uint32     `struc:"uint32,little"`
	PreallocBlocks       byte       `struc:"byte"`
	PreallocDirBlocks    byte       `struc:"byte"`
	Padding1             uint16     `struc:"uint16,little"`
	JournalUUID          [16]byte   `struc:"[16]byte"`
	JournalInum          uint32     `struc:"uint32,little"`
	JournalDev           uint32     `struc:"uint32,little"`
	LastOrphan           uint32     `struc:"uint32,little"`
	HashSeed             [4]uint32  `struc:"[4]uint32,little"`
	DefHashVersion       byte       `struc:"byte"`
	Padding2             [3]byte    `struc:"[3]pad"`
	DefaultMountOpts     uint32     `struc:"uint32,little"`
	FirstMetaBg          uint32     `struc:"uint32,little"`
	Reserved             [760]byte  `struc:"[760]pad"`
}

// DecodeSuperblock reads the superblock at its fixed position. Geometry that would
// make block or group arithmetic meaningless is rejected with ErrFormat; the magic
// number is left to CheckMagic.
func DecodeSuperblock(v *Volume) (Superblock, error) {
	buf, err := v.ReadAt(SuperblockOffset, SuperblockSize)
	if err != nil {
		if isTruncated(err) {
			return Superblock{}, xerrors.Errorf("superblock is truncated (%v): %w", err, ErrFormat)
		}
		return Superblock{}, xerrors.Errorf("failed to read super block: %w", err)
	}

	var sb Superblock
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &sb); err != nil {
		return Superblock{}, xerrors.Errorf("failed to binary read super block (%v): %w", err, ErrFormat)
	}
	if err := sb.checkGeometry(); err != nil {
		return Superblock{}, err
	}
	return sb, nil
}

func (sb *Superblock) checkGeometry() error {
	if sb.LogBlockSize > maxLogBlockSize {
		return xerrors.Errorf("log block size %d: %w", sb.LogBlockSize, ErrFormat)
	}
	bitsPerBlock := uint32(sb.GetBlockSize() * 8)
	if sb.InodePerGroup == 0 || sb.InodePerGroup > bitsPerBlock {
		return xerrors.Errorf("inodes per group %d: %w", sb.InodePerGroup, ErrFormat)
	}
	if sb.BlockPerGroup == 0 || sb.BlockPerGroup > bitsPerBlock {
		return xerrors.Errorf("blocks per group %d: %w", sb.BlockPerGroup, ErrFormat)
	}
	if size := sb.GetInodeSize(); size < goodOldInodeSize || int64(size) > sb.GetBlockSize() {
		return xerrors.Errorf("inode size %d: %w", size, ErrFormat)
	}
	return nil
}

// CheckMagic returns ErrFormat unless the superblock carries the ext2 signature.
func (sb *Superblock) CheckMagic() error {
	if sb.Magic != Magic {
		return xerrors.Errorf("magic number 0x%04X is not 0x%04X: %w", sb.Magic, Magic, ErrFormat)
	}
	return nil
}

func (sb *Superblock) GetBlockSize() int64 {
	return int64(1024 << uint(sb.LogBlockSize))
}

// GetGroupCount is ceil(InodeCount / InodePerGroup).
func (sb *Superblock) GetGroupCount() uint32 {
	if sb.InodePerGroup == 0 {
		return 0
	}
	return (sb.InodeCount + sb.InodePerGroup - 1) / sb.InodePerGroup
}

func (sb *Superblock) GetInodeSize() uint16 {
	if sb.RevLevel == 0 {
		return goodOldInodeSize
	}
	return sb.InodeSize
}

func (sb *Superblock) FeatureIncompatFiletype() bool {
	return (sb.FeatureIncompat&FEATURE_INCOMPAT_FILETYPE != 0)
}

// VolumeUUID returns the filesystem UUID.
func (sb *Superblock) VolumeUUID() uuid.UUID {
	id, err := uuid.FromBytes(sb.UUID[:])
	if err != nil {
		return uuid.Nil
	}
	return id
}

func (sb *Superblock) GetVolumeName() string {
	return string(bytes.TrimRight(sb.VolumeName[:], "\x00"))
}
