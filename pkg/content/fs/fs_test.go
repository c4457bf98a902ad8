package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treefs/treefs/pkg/content"
)

func newTestStore(t *testing.T) *FSStore {
	t.Helper()

	s, err := NewFSStore(context.Background(), t.TempDir())
	require.NoError(t, err)
	return s
}

func TestWriteReadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	data := []byte("payload bytes")
	require.NoError(t, s.Write(ctx, "alpha/dir/file.txt", data))

	got, err := s.Read(ctx, "alpha/dir/file.txt")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// Overwrites replace the previous payload.
	require.NoError(t, s.Write(ctx, "alpha/dir/file.txt", []byte("v2")))
	got, err = s.Read(ctx, "alpha/dir/file.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}

func TestReadNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Read(context.Background(), "ghost/file")
	require.Error(t, err)

	var cerr *content.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, content.ErrNotFound, cerr.Code)
}

func TestPathTraversalRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []content.ID{"../escape", "a/../../escape", "/absolute"} {
		err := s.Write(ctx, id, []byte("x"))
		assert.Error(t, err, "id %q must be rejected", id)
	}
}

func TestRemoveAllPurgesFilesystemDir(t *testing.T) {
	base := t.TempDir()
	s, err := NewFSStore(context.Background(), base)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "alpha/a.txt", []byte("1")))
	require.NoError(t, s.Write(ctx, "alpha/sub/b.txt", []byte("2")))
	require.NoError(t, s.Write(ctx, "beta/c.txt", []byte("3")))

	require.NoError(t, s.RemoveAll(ctx, "alpha"))

	_, err = os.Stat(filepath.Join(base, "alpha"))
	assert.True(t, os.IsNotExist(err))

	got, err := s.Read(ctx, "beta/c.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), got)
}

func TestHealthcheck(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Healthcheck(context.Background()))
	assert.NoError(t, s.Close())
}
