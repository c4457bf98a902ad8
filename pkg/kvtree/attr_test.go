package kvtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootAttr(t *testing.T) {
	attr := NewRootAttr()

	assert.True(t, attr.IsDir())
	assert.Equal(t, uint32(ModeDir|0777), attr.Mode)
	assert.Equal(t, uint64(RootInode), attr.Ino)
	assert.Equal(t, uint32(2), attr.Nlink)
	assert.Zero(t, attr.UID)
	assert.Zero(t, attr.GID)
	assert.Zero(t, attr.Atime)
	assert.Zero(t, attr.Mtime)
	assert.Zero(t, attr.Ctime)
}

func TestEncodeDecodeAttr(t *testing.T) {
	want := &NodeAttr{
		Mode:  ModeFile | 0640,
		Ino:   17,
		Nlink: 1,
		UID:   1000,
		GID:   100,
		Size:  4096,
		Atime: 1700000000,
		Mtime: 1700000001,
		Ctime: 1700000002,
	}

	blob, err := EncodeAttr(want)
	require.NoError(t, err)
	require.NotEmpty(t, blob)

	got, err := DecodeAttr(blob)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeAttrRejectsGarbage(t *testing.T) {
	_, err := DecodeAttr([]byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestIsDir(t *testing.T) {
	dir := &NodeAttr{Mode: ModeDir | 0755}
	file := &NodeAttr{Mode: ModeFile | 0644}

	assert.True(t, dir.IsDir())
	assert.False(t, file.IsDir())
}
