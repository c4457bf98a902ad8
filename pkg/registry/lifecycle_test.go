package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treefs/treefs/pkg/kvtree"
	storeMemory "github.com/treefs/treefs/pkg/store/memory"
)

func TestInitRebuildsFromStores(t *testing.T) {
	backend := storeMemory.NewStore()

	// First instance creates state and shuts down.
	first := New(backend, backend, backend)
	require.NoError(t, first.Init(testContext()))
	require.NoError(t, first.Create(testContext(), "alpha"))
	require.NoError(t, first.Create(testContext(), "beta"))
	require.NoError(t, first.EndpointCreate(testContext(), "beta", "rw"))
	first.Fini(testContext())

	// A second instance over the same backend sees everything.
	second := New(backend, backend, backend)
	require.NoError(t, second.Init(testContext()))
	assert.Equal(t, 2, second.Count())

	exported := make(map[string]bool)
	require.NoError(t, second.Scan(func(e Entry) error {
		exported[e.Name] = e.Exported
		return nil
	}))
	assert.Equal(t, map[string]bool{"alpha": false, "beta": true}, exported)

	// Rebuilt entries are fully functional.
	fs, err := second.Open(testContext(), "alpha")
	require.NoError(t, err)
	attr, err := fs.Tree().GetAttr(testContext(), fs.Tree().Root())
	require.NoError(t, err)
	assert.True(t, attr.IsDir())
}

func TestInitTwice(t *testing.T) {
	r, _ := newTestRegistry(t)

	err := r.Init(testContext())
	require.Error(t, err)
	assert.Equal(t, ErrInvalidState, CodeOf(err))
}

func TestInitOrphanTenantFails(t *testing.T) {
	backend := storeMemory.NewStore()

	// A tenant record without a matching namespace record means the two
	// stores disagree.
	_, err := backend.CreateTenant(testContext(), "ghost", 7, "rw", nil)
	require.NoError(t, err)

	r := New(backend, backend, backend)
	err = r.Init(testContext())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInconsistentStores)
	assert.Equal(t, ErrBackendFailure, CodeOf(err))

	// The registry stays unusable after the failed init.
	err = r.Create(testContext(), "alpha")
	require.Error(t, err)
	assert.Equal(t, ErrInvalidState, CodeOf(err))
	assert.Equal(t, 0, r.Count())
}

func TestDetachEndpointsKeepsPersistedBindings(t *testing.T) {
	backend := storeMemory.NewStore()
	r := New(backend, backend, backend)
	require.NoError(t, r.Init(testContext()))

	require.NoError(t, r.Create(testContext(), "alpha"))
	require.NoError(t, r.EndpointCreate(testContext(), "alpha", "rw"))

	r.DetachEndpoints()

	// Detached in memory, still persisted.
	info, err := r.EndpointInfo("alpha")
	require.NoError(t, err)
	assert.Nil(t, info)

	recs, err := backend.EnumerateTenants(testContext())
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	// A restart re-attaches the surviving binding with its handle.
	r.Fini(testContext())
	require.NoError(t, r.Init(testContext()))

	require.NoError(t, r.Scan(func(e Entry) error {
		assert.True(t, e.Exported)
		assert.NotEmpty(t, e.EndpointInfo)
		return nil
	}))

	info, err = r.EndpointInfo("alpha")
	require.NoError(t, err)
	assert.NotEmpty(t, info)
}

func TestFiniReleasesHandlesAndResets(t *testing.T) {
	backend := storeMemory.NewStore()
	r := New(backend, backend, backend)
	require.NoError(t, r.Init(testContext()))

	require.NoError(t, r.Create(testContext(), "alpha"))
	fs, err := r.Open(testContext(), "alpha")
	require.NoError(t, err)
	tree := fs.Tree()
	require.NotNil(t, tree)

	r.Fini(testContext())

	// The open handle was released during teardown.
	_, err = tree.HasChildren(testContext(), tree.Root())
	assert.ErrorIs(t, err, kvtree.ErrTreeClosed)

	// Runtime operations are refused after Fini.
	err = r.Create(testContext(), "beta")
	require.Error(t, err)
	assert.Equal(t, ErrInvalidState, CodeOf(err))

	// Fini is idempotent and Init works again.
	r.Fini(testContext())
	require.NoError(t, r.Init(testContext()))
	assert.Equal(t, 1, r.Count())
}

// TestFullLifecycleScenario drives one filesystem through its complete
// life: create, export, populate, unexport, empty, delete.
func TestFullLifecycleScenario(t *testing.T) {
	r, backend := newTestRegistry(t)

	require.NoError(t, r.Create(testContext(), "tank"))
	require.NoError(t, r.EndpointCreate(testContext(), "tank", "rw,async"))

	fs, err := r.Open(testContext(), "tank")
	require.NoError(t, err)
	tree := fs.Tree()

	dirID, err := tree.AddChild(testContext(), tree.Root(), "projects", &kvtree.NodeAttr{Mode: kvtree.ModeDir | 0755})
	require.NoError(t, err)
	_, err = tree.AddChild(testContext(), dirID, "readme.md", &kvtree.NodeAttr{Mode: kvtree.ModeFile | 0644, Size: 42})
	require.NoError(t, err)

	// Deletion is blocked twice: exported, then non-empty.
	err = r.Delete(testContext(), "tank")
	assert.Equal(t, ErrInvalidState, CodeOf(err))

	require.NoError(t, r.EndpointDelete(testContext(), "tank"))

	err = r.Delete(testContext(), "tank")
	assert.Equal(t, ErrNotEmpty, CodeOf(err))

	require.NoError(t, tree.RemoveChild(testContext(), dirID, "readme.md"))
	require.NoError(t, tree.RemoveChild(testContext(), tree.Root(), "projects"))
	r.Close(fs)

	require.NoError(t, r.Delete(testContext(), "tank"))
	assert.Equal(t, 0, r.Count())

	// Nothing persisted survives.
	nss, err := backend.EnumerateNamespaces(testContext())
	require.NoError(t, err)
	assert.Empty(t, nss)
	recs, err := backend.EnumerateTenants(testContext())
	require.NoError(t, err)
	assert.Empty(t, recs)
}
