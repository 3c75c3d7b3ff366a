package ext2

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolumeReadWrite(t *testing.T) {
	v, _ := openRawVolume(t, make([]byte, 4096), false)

	require.NoError(t, v.WriteAt(1000, []byte("ext2")))
	got, err := v.ReadAt(998, 8)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 'e', 'x', 't', '2', 0, 0}, got)
}

func TestVolumeReadPastEnd(t *testing.T) {
	v, _ := openRawVolume(t, make([]byte, 4096), true)

	_, err := v.ReadAt(4000, 200)
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "read", ioErr.Op)
	assert.Equal(t, int64(4000), ioErr.Offset)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.False(t, IsSubtreeError(err))
	assert.True(t, IsFatal(err))
}

func TestVolumeReadOnlyRejectsWrites(t *testing.T) {
	v, _ := openRawVolume(t, make([]byte, 4096), true)

	err := v.WriteAt(0, []byte{1})
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "write", ioErr.Op)
}

func TestVolumeNegativeRange(t *testing.T) {
	v, _ := openRawVolume(t, make([]byte, 16), true)

	_, err := v.ReadAt(-1, 4)
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
}
