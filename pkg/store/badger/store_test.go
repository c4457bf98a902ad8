package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treefs/treefs/pkg/kvtree"
	"github.com/treefs/treefs/pkg/store"
	storetesting "github.com/treefs/treefs/pkg/store/testing"
)

// TestBadgerBackend runs the shared backend contract suite against a
// BadgerDB store rooted in a per-test temporary directory.
func TestBadgerBackend(t *testing.T) {
	suite := &storetesting.BackendTestSuite{
		NewBackend: func(t *testing.T) store.Backend {
			s, err := NewStore(context.Background(), Config{DBPath: t.TempDir()})
			require.NoError(t, err)
			return s
		},
	}
	suite.Run(t)
}

// TestBadgerBackendInMemory runs the same suite with the database held
// entirely in memory.
func TestBadgerBackendInMemory(t *testing.T) {
	suite := &storetesting.BackendTestSuite{
		NewBackend: func(t *testing.T) store.Backend {
			s, err := NewStore(context.Background(), Config{InMemory: true})
			require.NoError(t, err)
			return s
		},
	}
	suite.Run(t)
}

// TestBadgerPersistence verifies that records survive a close and reopen
// cycle, which the contract suite cannot cover.
func TestBadgerPersistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewStore(ctx, Config{DBPath: dir})
	require.NoError(t, err)

	ns, err := s.AllocateNamespace(ctx, "durable")
	require.NoError(t, err)

	tree, err := s.CreateTree(ctx, ns.FID, kvtree.NewRootAttr())
	require.NoError(t, err)
	require.NoError(t, s.CloseTree(tree))

	_, err = s.CreateTenant(ctx, "durable", ns.ID, "rw", []byte("handle"))
	require.NoError(t, err)

	require.NoError(t, s.Close())

	reopened, err := NewStore(ctx, Config{DBPath: dir})
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	nss, err := reopened.EnumerateNamespaces(ctx)
	require.NoError(t, err)
	require.Len(t, nss, 1)
	assert.Equal(t, "durable", nss[0].Name)

	tns, err := reopened.EnumerateTenants(ctx)
	require.NoError(t, err)
	require.Len(t, tns, 1)
	assert.Equal(t, "durable", tns[0].Name)
	assert.Equal(t, []byte("handle"), tns[0].Info)
}
