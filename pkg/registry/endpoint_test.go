package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storeMemory "github.com/treefs/treefs/pkg/store/memory"
)

// hookRecorder records export hook invocations and optionally fails them.
// A non-nil handle is returned from OnCreateExport as the protocol handle.
type hookRecorder struct {
	created []string
	deleted []string
	nsIDs   []uint16
	options []string
	handle  []byte
	fail    error
}

func (h *hookRecorder) OnCreateExport(ctx context.Context, name string, nsID uint16, options string) ([]byte, error) {
	if h.fail != nil {
		return nil, h.fail
	}
	h.created = append(h.created, name)
	h.nsIDs = append(h.nsIDs, nsID)
	h.options = append(h.options, options)
	return h.handle, nil
}

func (h *hookRecorder) OnDeleteExport(ctx context.Context, name string, nsID uint16, options string) error {
	if h.fail != nil {
		return h.fail
	}
	h.deleted = append(h.deleted, name)
	return nil
}

func TestEndpointCreateAndInfo(t *testing.T) {
	r, backend := newTestRegistry(t)

	require.NoError(t, r.Create(testContext(), "alpha"))
	require.NoError(t, r.EndpointCreate(testContext(), "alpha", "rw,no_root_squash"))

	// The binding is persisted with the filesystem's namespace id and a
	// non-empty endpoint handle.
	recs, err := backend.EnumerateTenants(testContext())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "alpha", recs[0].Name)
	assert.Equal(t, "rw,no_root_squash", recs[0].Options)
	assert.NotEmpty(t, recs[0].Info)

	fs, err := r.Lookup("alpha")
	require.NoError(t, err)
	assert.Equal(t, recs[0].NamespaceID, fs.NamespaceID())

	// Without a protocol hook a default handle is stored, so a bound
	// endpoint is always distinguishable from an unbound one.
	info, err := r.EndpointInfo("alpha")
	require.NoError(t, err)
	assert.Equal(t, recs[0].Info, info)
	assert.Equal(t, info, fs.EndpointInfo())

	require.NoError(t, r.Scan(func(e Entry) error {
		assert.True(t, e.Exported)
		assert.NotEmpty(t, e.EndpointInfo)
		return nil
	}))
}

func TestEndpointCreateDuplicate(t *testing.T) {
	r, backend := newTestRegistry(t)

	require.NoError(t, r.Create(testContext(), "alpha"))
	require.NoError(t, r.EndpointCreate(testContext(), "alpha", "rw"))

	err := r.EndpointCreate(testContext(), "alpha", "ro")
	require.Error(t, err)
	assert.Equal(t, ErrAlreadyExists, CodeOf(err))

	// The original binding is untouched.
	recs, err := backend.EnumerateTenants(testContext())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "rw", recs[0].Options)
}

func TestEndpointCreateMissingFilesystem(t *testing.T) {
	r, backend := newTestRegistry(t)

	err := r.EndpointCreate(testContext(), "ghost", "rw")
	require.Error(t, err)
	assert.Equal(t, ErrNotFound, CodeOf(err))

	// The failed create must not leave a tenant record behind.
	recs, err := backend.EnumerateTenants(testContext())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestEndpointDelete(t *testing.T) {
	r, backend := newTestRegistry(t)

	require.NoError(t, r.Create(testContext(), "alpha"))
	require.NoError(t, r.EndpointCreate(testContext(), "alpha", "rw"))
	require.NoError(t, r.EndpointDelete(testContext(), "alpha"))

	recs, err := backend.EnumerateTenants(testContext())
	require.NoError(t, err)
	assert.Empty(t, recs)

	// Deleting again reports NotFound: the filesystem has no binding.
	err = r.EndpointDelete(testContext(), "alpha")
	require.Error(t, err)
	assert.Equal(t, ErrNotFound, CodeOf(err))

	// And so does deleting the endpoint of a nonexistent filesystem.
	err = r.EndpointDelete(testContext(), "ghost")
	require.Error(t, err)
	assert.Equal(t, ErrNotFound, CodeOf(err))
}

func TestEndpointRecreateAfterDelete(t *testing.T) {
	r, _ := newTestRegistry(t)

	require.NoError(t, r.Create(testContext(), "alpha"))
	require.NoError(t, r.EndpointCreate(testContext(), "alpha", "rw"))
	require.NoError(t, r.EndpointDelete(testContext(), "alpha"))
	require.NoError(t, r.EndpointCreate(testContext(), "alpha", "ro"))

	require.NoError(t, r.Scan(func(e Entry) error {
		assert.True(t, e.Exported)
		return nil
	}))
}

func TestEndpointHooksInvoked(t *testing.T) {
	backend := storeMemory.NewStore()
	r := New(backend, backend, backend)
	hooks := &hookRecorder{handle: []byte("proto-handle")}
	r.SetExportHooks(hooks)
	require.NoError(t, r.Init(testContext()))

	require.NoError(t, r.Create(testContext(), "alpha"))
	require.NoError(t, r.EndpointCreate(testContext(), "alpha", "rw"))

	// The hook-supplied handle is what the info accessors return.
	info, err := r.EndpointInfo("alpha")
	require.NoError(t, err)
	assert.Equal(t, []byte("proto-handle"), info)

	require.NoError(t, r.EndpointDelete(testContext(), "alpha"))

	assert.Equal(t, []string{"alpha"}, hooks.created)
	assert.Equal(t, []string{"alpha"}, hooks.deleted)
	assert.Equal(t, []string{"rw"}, hooks.options)

	fs, err := r.Lookup("alpha")
	require.NoError(t, err)
	assert.Equal(t, []uint16{fs.NamespaceID()}, hooks.nsIDs)
}

func TestEndpointCreateHookFailure(t *testing.T) {
	backend := storeMemory.NewStore()
	r := New(backend, backend, backend)
	hooks := &hookRecorder{fail: errors.New("protocol refused export")}
	r.SetExportHooks(hooks)
	require.NoError(t, r.Init(testContext()))

	require.NoError(t, r.Create(testContext(), "alpha"))

	err := r.EndpointCreate(testContext(), "alpha", "rw")
	require.Error(t, err)
	assert.Equal(t, ErrBackendFailure, CodeOf(err))

	// The hook runs before persistence, so a failing hook leaves no
	// binding behind.
	recs, err := backend.EnumerateTenants(testContext())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestEndpointInfoNotFound(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.EndpointInfo("ghost")
	require.Error(t, err)
	assert.Equal(t, ErrNotFound, CodeOf(err))

	// An unexported filesystem yields a nil handle without error.
	require.NoError(t, r.Create(testContext(), "alpha"))
	info, err := r.EndpointInfo("alpha")
	require.NoError(t, err)
	assert.Nil(t, info)
}
