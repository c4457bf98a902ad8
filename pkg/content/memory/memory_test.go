package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treefs/treefs/pkg/content"
)

func TestWriteReadRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	data := []byte("hello payload")
	require.NoError(t, s.Write(ctx, "alpha/file.txt", data))

	got, err := s.Read(ctx, "alpha/file.txt")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// The store holds its own copy; mutating the original is invisible.
	data[0] = 'X'
	got, err = s.Read(ctx, "alpha/file.txt")
	require.NoError(t, err)
	assert.Equal(t, byte('h'), got[0])
}

func TestReadNotFound(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Read(context.Background(), "ghost")
	require.Error(t, err)

	var cerr *content.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, content.ErrNotFound, cerr.Code)
}

func TestRemove(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "alpha/file.txt", []byte("x")))
	require.NoError(t, s.Remove(ctx, "alpha/file.txt"))

	var cerr *content.Error
	err := s.Remove(ctx, "alpha/file.txt")
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, content.ErrNotFound, cerr.Code)
}

func TestRemoveAllPurgesOnlyPrefix(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "alpha/a.txt", []byte("1")))
	require.NoError(t, s.Write(ctx, "alpha/b.txt", []byte("2")))
	require.NoError(t, s.Write(ctx, "alphabet/c.txt", []byte("3")))
	require.NoError(t, s.Write(ctx, "beta/d.txt", []byte("4")))

	require.NoError(t, s.RemoveAll(ctx, "alpha"))

	// Only "alpha/" entries are gone; "alphabet/" is a different
	// filesystem despite the shared name prefix.
	assert.Equal(t, 2, s.Count())
	_, err := s.Read(ctx, "alphabet/c.txt")
	assert.NoError(t, err)
	_, err = s.Read(ctx, "beta/d.txt")
	assert.NoError(t, err)
}

func TestHealthcheck(t *testing.T) {
	s := NewMemoryStore()
	assert.NoError(t, s.Healthcheck(context.Background()))
	assert.NoError(t, s.Close())
}
