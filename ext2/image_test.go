package ext2

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/lunixbochs/struc"
	"github.com/stretchr/testify/require"
)

// Geometry of the images built by testImage: 1 KiB blocks, so block 0 is the boot
// block, block 1 the superblock and block 2 the group descriptor table.
const (
	testBlockSize        = 1024
	testInodesPerGroup   = 16
	testBlocksPerGroup   = 64
	testInodeSize        = 128
	testInodeTableBlocks = testInodesPerGroup * testInodeSize / testBlockSize
)

var testUUID = uuid.MustParse("5f2c1c1e-8f3a-4b6e-9d2a-0c1b2a3d4e5f")

type dirent struct {
	ino      uint32
	name     string
	fileType uint8
}

// testImage builds an ext2 image in memory. Each group starts with its block
// bitmap, inode bitmap and inode table; data blocks are handed out after them.
type testImage struct {
	t    *testing.T
	sb   Superblock
	gds  []GroupDescriptor
	data []byte
	next []uint32
}

func newTestImage(t *testing.T, groups int) *testImage {
	t.Helper()
	sb := Superblock{
		InodeCount:      uint32(groups * testInodesPerGroup),
		BlockCount:      uint32(1 + groups*testBlocksPerGroup),
		FreeBlockCount:  uint32(groups * testBlocksPerGroup / 2),
		FreeInodeCount:  uint32(groups * testInodesPerGroup / 2),
		FirstDataBlock:  1,
		BlockPerGroup:   testBlocksPerGroup,
		FragPerGroup:    testBlocksPerGroup,
		InodePerGroup:   testInodesPerGroup,
		Magic:           Magic,
		RevLevel:        1,
		FirstIno:        ReservedInodes + 1,
		InodeSize:       testInodeSize,
		FeatureIncompat: FEATURE_INCOMPAT_FILETYPE,
	}
	copy(sb.UUID[:], testUUID[:])
	copy(sb.VolumeName[:], "recovery")

	img := &testImage{
		t:    t,
		sb:   sb,
		data: make([]byte, int(sb.BlockCount)*testBlockSize),
	}
	for g := 0; g < groups; g++ {
		start := uint32(1 + g*testBlocksPerGroup)
		if g == 0 {
			start += 2
		}
		img.gds = append(img.gds, GroupDescriptor{
			BlockBitmap:     start,
			InodeBitmap:     start + 1,
			InodeTable:      start + 2,
			FreeBlocksCount: testBlocksPerGroup / 2,
			FreeInodesCount: testInodesPerGroup / 2,
		})
		img.next = append(img.next, start+2+testInodeTableBlocks)
	}
	return img
}

func (img *testImage) allocBlock(group int) uint32 {
	block := img.next[group]
	img.next[group]++
	return block
}

func (img *testImage) writeBlock(block uint32, content []byte) {
	img.t.Helper()
	require.LessOrEqual(img.t, len(content), testBlockSize)
	off := int(block) * testBlockSize
	require.LessOrEqual(img.t, off+testBlockSize, len(img.data))
	copy(img.data[off:off+testBlockSize], make([]byte, testBlockSize))
	copy(img.data[off:], content)
}

func (img *testImage) writePointers(block uint32, pointers ...uint32) {
	img.t.Helper()
	buf := make([]byte, testBlockSize)
	for i, p := range pointers {
		binary.LittleEndian.PutUint32(buf[i*blockPointerSize:], p)
	}
	img.writeBlock(block, buf)
}

func (img *testImage) setInode(ino uint32, inode Inode) {
	img.t.Helper()
	group := (ino - 1) / testInodesPerGroup
	index := (ino - 1) % testInodesPerGroup
	var buf bytes.Buffer
	require.NoError(img.t, binary.Write(&buf, binary.LittleEndian, &inode))
	off := int(img.gds[group].InodeTable)*testBlockSize + int(index)*testInodeSize
	copy(img.data[off:], buf.Bytes())
}

// encodeDirBlock packs entries into one block; the last entry's record runs to
// the end of the block.
func encodeDirBlock(t *testing.T, entries []dirent) []byte {
	t.Helper()
	var buf bytes.Buffer
	for i, e := range entries {
		recLen := (directoryEntryHeaderSize + len(e.name) + 3) &^ 3
		if i == len(entries)-1 {
			recLen = testBlockSize - buf.Len()
		}
		entry := DirectoryEntry{
			Inode:    e.ino,
			RecLen:   uint16(recLen),
			NameLen:  uint8(len(e.name)),
			FileType: e.fileType,
			Name:     e.name,
		}
		start := buf.Len()
		require.NoError(t, struc.Pack(&buf, &entry))
		buf.Write(make([]byte, recLen-(buf.Len()-start)))
	}
	require.Equal(t, testBlockSize, buf.Len())
	return buf.Bytes()
}

// addDir creates directory ino under parent with a single data block.
func (img *testImage) addDir(ino, parent uint32, children ...dirent) uint32 {
	img.t.Helper()
	block := img.allocBlock(int((ino - 1) / testInodesPerGroup))
	entries := append([]dirent{
		{ino: ino, name: ".", fileType: FileTypeDirectory},
		{ino: parent, name: "..", fileType: FileTypeDirectory},
	}, children...)
	img.writeBlock(block, encodeDirBlock(img.t, entries))

	inode := Inode{Mode: DirectoryFlag | 0o755, LinksCount: 2, Size: testBlockSize, Blocks: 2}
	inode.Block.DirectBlock[0] = block
	img.setInode(ino, inode)
	return block
}

// addFile creates regular file ino, with one data block when content is not empty.
func (img *testImage) addFile(ino uint32, content []byte) uint32 {
	img.t.Helper()
	inode := Inode{Mode: FileFlag | 0o644, LinksCount: 1, Size: uint32(len(content))}
	var block uint32
	if len(content) > 0 {
		block = img.allocBlock(int((ino - 1) / testInodesPerGroup))
		img.writeBlock(block, content)
		inode.Block.DirectBlock[0] = block
		inode.Blocks = 2
	}
	img.setInode(ino, inode)
	return block
}

// fillBitmaps overwrites every stored bitmap with b, standing in for corruption.
func (img *testImage) fillBitmaps(b byte) {
	img.t.Helper()
	garbage := bytes.Repeat([]byte{b}, testBlockSize)
	for _, gd := range img.gds {
		img.writeBlock(gd.BlockBitmap, garbage)
		img.writeBlock(gd.InodeBitmap, garbage)
	}
}

// image serialises the superblock and descriptors over the block data.
func (img *testImage) image() []byte {
	img.t.Helper()
	data := make([]byte, len(img.data))
	copy(data, img.data)

	var buf bytes.Buffer
	require.NoError(img.t, binary.Write(&buf, binary.LittleEndian, &img.sb))
	require.Equal(img.t, SuperblockSize, buf.Len())
	copy(data[SuperblockOffset:], buf.Bytes())

	buf.Reset()
	for _, gd := range img.gds {
		require.NoError(img.t, binary.Write(&buf, binary.LittleEndian, &gd))
	}
	copy(data[2*testBlockSize:], buf.Bytes())
	return data
}

func (img *testImage) open(opts ...Option) (*FileSystem, string) {
	img.t.Helper()
	v, path := openRawVolume(img.t, img.image(), false)
	fs, err := Open(v, opts...)
	require.NoError(img.t, err)
	return fs, path
}

func openRawVolume(t *testing.T, data []byte, readOnly bool) (*Volume, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ext2.img")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	v, err := OpenVolume(path, readOnly)
	require.NoError(t, err)
	t.Cleanup(func() { v.Close() })
	return v, path
}

// readBlockFile reads block from the image file, bypassing the filesystem.
func readBlockFile(t *testing.T, path string, block uint32) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	off := int(block) * testBlockSize
	return data[off : off+testBlockSize]
}
