package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treefs/treefs/pkg/content"
	contentMemory "github.com/treefs/treefs/pkg/content/memory"
	"github.com/treefs/treefs/pkg/kvtree"
	"github.com/treefs/treefs/pkg/namespace"
	storeMemory "github.com/treefs/treefs/pkg/store/memory"
)

func testContext() context.Context {
	return context.Background()
}

// newTestRegistry builds an initialized registry over a fresh in-memory
// backend.
func newTestRegistry(t *testing.T) (*Registry, *storeMemory.Store) {
	t.Helper()

	backend := storeMemory.NewStore()
	r := New(backend, backend, backend)
	require.NoError(t, r.Init(testContext()))
	return r, backend
}

func TestCreateAndLookup(t *testing.T) {
	r, _ := newTestRegistry(t)

	require.NoError(t, r.Create(testContext(), "alpha"))

	fs, err := r.Lookup("alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", fs.Name())
	assert.NotZero(t, fs.NamespaceID())
	assert.Nil(t, fs.EndpointInfo())
	assert.Nil(t, fs.Tree(), "tree must stay closed until the filesystem is opened")
	assert.Equal(t, 1, r.Count())
}

func TestCreateInvalidName(t *testing.T) {
	r, _ := newTestRegistry(t)

	long := make([]byte, namespace.MaxNameLen+1)
	for i := range long {
		long[i] = 'a'
	}

	for _, name := range []string{"", "a/b", "a\x00b", string(long)} {
		err := r.Create(testContext(), name)
		require.Error(t, err)
		assert.Equal(t, ErrInvalidArgument, CodeOf(err), "name %q", name)
	}
	assert.Equal(t, 0, r.Count())
}

func TestCreateDuplicate(t *testing.T) {
	r, _ := newTestRegistry(t)

	require.NoError(t, r.Create(testContext(), "alpha"))

	err := r.Create(testContext(), "alpha")
	require.Error(t, err)
	assert.Equal(t, ErrAlreadyExists, CodeOf(err))
	assert.Equal(t, 1, r.Count())
}

func TestCreateBeforeInit(t *testing.T) {
	backend := storeMemory.NewStore()
	r := New(backend, backend, backend)

	err := r.Create(testContext(), "alpha")
	require.Error(t, err)
	assert.Equal(t, ErrInvalidState, CodeOf(err))
}

// failingTreeStore wraps a tree store and fails selected operations on
// demand.
type failingTreeStore struct {
	kvtree.Store
	failCreate     bool
	failDeleteTree bool
}

func (s *failingTreeStore) CreateTree(ctx context.Context, nsFID uint64, root *kvtree.NodeAttr) (kvtree.Tree, error) {
	if s.failCreate {
		return nil, errors.New("injected tree creation failure")
	}
	return s.Store.CreateTree(ctx, nsFID, root)
}

func (s *failingTreeStore) DeleteTree(ctx context.Context, nsFID uint64) error {
	if s.failDeleteTree {
		return errors.New("injected tree deletion failure")
	}
	return s.Store.DeleteTree(ctx, nsFID)
}

func TestCreateRollsBackNamespaceOnTreeFailure(t *testing.T) {
	backend := storeMemory.NewStore()
	trees := &failingTreeStore{Store: backend, failCreate: true}
	r := New(backend, backend, trees)
	require.NoError(t, r.Init(testContext()))

	err := r.Create(testContext(), "alpha")
	require.Error(t, err)
	assert.Equal(t, ErrBackendFailure, CodeOf(err))

	// The failed create must leave no trace anywhere.
	_, err = r.Lookup("alpha")
	assert.Equal(t, ErrNotFound, CodeOf(err))

	nss, err := backend.EnumerateNamespaces(testContext())
	require.NoError(t, err)
	assert.Empty(t, nss, "namespace allocation must be rolled back")

	// The name is usable again once the backend recovers.
	trees.failCreate = false
	require.NoError(t, r.Create(testContext(), "alpha"))
}

// failingNamespaceStore simulates namespace id exhaustion.
type failingNamespaceStore struct {
	namespace.Store
}

func (s *failingNamespaceStore) AllocateNamespace(ctx context.Context, name string) (*namespace.Namespace, error) {
	return nil, namespace.ErrIDExhausted
}

func TestCreateReportsIDExhaustion(t *testing.T) {
	backend := storeMemory.NewStore()
	r := New(&failingNamespaceStore{Store: backend}, backend, backend)
	require.NoError(t, r.Init(testContext()))

	err := r.Create(testContext(), "alpha")
	require.Error(t, err)
	assert.Equal(t, ErrResourceExhausted, CodeOf(err))
	assert.ErrorIs(t, err, namespace.ErrIDExhausted)
}

func TestDeleteNotFound(t *testing.T) {
	r, _ := newTestRegistry(t)

	err := r.Delete(testContext(), "ghost")
	require.Error(t, err)
	assert.Equal(t, ErrNotFound, CodeOf(err))
}

func TestDeleteWhileExported(t *testing.T) {
	r, _ := newTestRegistry(t)

	require.NoError(t, r.Create(testContext(), "alpha"))
	require.NoError(t, r.EndpointCreate(testContext(), "alpha", "rw"))

	err := r.Delete(testContext(), "alpha")
	require.Error(t, err)
	assert.Equal(t, ErrInvalidState, CodeOf(err))

	// The entry survives the refused delete.
	_, err = r.Lookup("alpha")
	assert.NoError(t, err)

	// Once the endpoint is gone the delete goes through.
	require.NoError(t, r.EndpointDelete(testContext(), "alpha"))
	require.NoError(t, r.Delete(testContext(), "alpha"))
	assert.Equal(t, 0, r.Count())
}

func TestDeleteNotEmpty(t *testing.T) {
	r, _ := newTestRegistry(t)

	require.NoError(t, r.Create(testContext(), "alpha"))

	fs, err := r.Open(testContext(), "alpha")
	require.NoError(t, err)
	tree := fs.Tree()
	require.NotNil(t, tree)

	_, err = tree.AddChild(testContext(), tree.Root(), "data", &kvtree.NodeAttr{Mode: kvtree.ModeFile | 0644})
	require.NoError(t, err)

	err = r.Delete(testContext(), "alpha")
	require.Error(t, err)
	assert.Equal(t, ErrNotEmpty, CodeOf(err))

	// Emptying the tree unblocks the delete.
	require.NoError(t, tree.RemoveChild(testContext(), tree.Root(), "data"))
	r.Close(fs)
	require.NoError(t, r.Delete(testContext(), "alpha"))
}

func TestDeleteRemovesPersistedState(t *testing.T) {
	r, backend := newTestRegistry(t)

	require.NoError(t, r.Create(testContext(), "alpha"))

	fs, err := r.Lookup("alpha")
	require.NoError(t, err)
	fid := uint64(fs.NamespaceID())

	require.NoError(t, r.Delete(testContext(), "alpha"))

	nss, err := backend.EnumerateNamespaces(testContext())
	require.NoError(t, err)
	assert.Empty(t, nss)

	_, err = backend.OpenTree(testContext(), fid)
	assert.ErrorIs(t, err, kvtree.ErrTreeNotFound)
}

func TestDeleteRetryAfterPartialFailure(t *testing.T) {
	backend := storeMemory.NewStore()
	trees := &failingTreeStore{Store: backend, failDeleteTree: true}
	r := New(backend, backend, trees)
	require.NoError(t, r.Init(testContext()))

	require.NoError(t, r.Create(testContext(), "alpha"))

	fs, err := r.Lookup("alpha")
	require.NoError(t, err)
	fid := uint64(fs.NamespaceID())

	// The first attempt removes the root record and then fails dropping
	// the remaining tree records. The entry must survive for a retry.
	err = r.Delete(testContext(), "alpha")
	require.Error(t, err)
	assert.Equal(t, ErrBackendFailure, CodeOf(err))

	_, err = r.Lookup("alpha")
	require.NoError(t, err)

	// The half-deleted tree is no longer openable.
	_, err = backend.OpenTree(testContext(), fid)
	assert.ErrorIs(t, err, kvtree.ErrTreeNotFound)

	// Once the backend recovers, the retry resumes past the missing root
	// and completes.
	trees.failDeleteTree = false
	require.NoError(t, r.Delete(testContext(), "alpha"))
	assert.Equal(t, 0, r.Count())

	nss, err := backend.EnumerateNamespaces(testContext())
	require.NoError(t, err)
	assert.Empty(t, nss)
}

func TestDeletePurgesPayloads(t *testing.T) {
	r, _ := newTestRegistry(t)

	payloads := contentMemory.NewMemoryStore()
	r.SetContentStore(payloads)

	require.NoError(t, r.Create(testContext(), "alpha"))
	require.NoError(t, r.Create(testContext(), "beta"))

	require.NoError(t, payloads.Write(testContext(), content.ID("alpha/report.txt"), []byte("x")))
	require.NoError(t, payloads.Write(testContext(), content.ID("alpha/notes.txt"), []byte("y")))
	require.NoError(t, payloads.Write(testContext(), content.ID("beta/data.bin"), []byte("z")))

	require.NoError(t, r.Delete(testContext(), "alpha"))

	// Only the deleted filesystem's payloads are purged.
	assert.Equal(t, 1, payloads.Count())
	_, err := payloads.Read(testContext(), content.ID("beta/data.bin"))
	assert.NoError(t, err)
}

func TestOpenCloseLifecycle(t *testing.T) {
	r, _ := newTestRegistry(t)

	require.NoError(t, r.Create(testContext(), "alpha"))

	fs, err := r.Open(testContext(), "alpha")
	require.NoError(t, err)
	require.NotNil(t, fs.Tree())

	// Reopening returns the same entry with the tree still attached.
	again, err := r.Open(testContext(), "alpha")
	require.NoError(t, err)
	assert.Same(t, fs, again)

	attr, err := fs.Tree().GetAttr(testContext(), fs.Tree().Root())
	require.NoError(t, err)
	assert.True(t, attr.IsDir())
	assert.Equal(t, uint64(kvtree.RootInode), attr.Ino)
	assert.Equal(t, uint32(2), attr.Nlink)

	r.Close(fs)
	assert.Nil(t, fs.Tree())

	// Close is idempotent and nil-safe.
	r.Close(fs)
	r.Close(nil)

	// The entry itself survives a close.
	_, err = r.Lookup("alpha")
	assert.NoError(t, err)
}

func TestOpenNotFound(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Open(testContext(), "ghost")
	require.Error(t, err)
	assert.Equal(t, ErrNotFound, CodeOf(err))
}

func TestScanOrderAndErrorPropagation(t *testing.T) {
	r, _ := newTestRegistry(t)

	for _, name := range []string{"charlie", "alpha", "bravo"} {
		require.NoError(t, r.Create(testContext(), name))
	}

	var seen []string
	require.NoError(t, r.Scan(func(e Entry) error {
		seen = append(seen, e.Name)
		return nil
	}))
	assert.Equal(t, []string{"charlie", "alpha", "bravo"}, seen, "scan follows insertion order")

	// A visitor error stops the scan and propagates unchanged.
	boom := errors.New("stop")
	count := 0
	err := r.Scan(func(e Entry) error {
		count++
		if count == 2 {
			return boom
		}
		return nil
	})
	assert.Same(t, boom, err)
	assert.Equal(t, 2, count)
}
