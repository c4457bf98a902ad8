package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treefs/treefs/pkg/namespace"
)

// RunNamespaceTests executes the namespace store contract tests.
func (suite *BackendTestSuite) RunNamespaceTests(t *testing.T) {
	t.Run("Enumerate_Empty", suite.testEnumerateNamespacesEmpty)
	t.Run("Allocate_AssignsIdentity", suite.testAllocateAssignsIdentity)
	t.Run("Allocate_Duplicate", suite.testAllocateDuplicate)
	t.Run("Allocate_IdsAreUnique", suite.testAllocateIdsAreUnique)
	t.Run("Release_RemovesRecord", suite.testReleaseRemovesRecord)
	t.Run("Update_PersistsDescriptor", suite.testUpdatePersistsDescriptor)
}

func (suite *BackendTestSuite) testEnumerateNamespacesEmpty(t *testing.T) {
	backend := suite.newBackend(t)

	records, err := backend.EnumerateNamespaces(testContext())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func (suite *BackendTestSuite) testAllocateAssignsIdentity(t *testing.T) {
	backend := suite.newBackend(t)

	ns, err := backend.AllocateNamespace(testContext(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", ns.Name)
	assert.NotZero(t, ns.ID)
	assert.NotZero(t, ns.FID)

	records, err := backend.EnumerateNamespaces(testContext())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, *ns, records[0])
}

func (suite *BackendTestSuite) testAllocateDuplicate(t *testing.T) {
	backend := suite.newBackend(t)

	_, err := backend.AllocateNamespace(testContext(), "alpha")
	require.NoError(t, err)

	_, err = backend.AllocateNamespace(testContext(), "alpha")
	assert.Error(t, err)
}

func (suite *BackendTestSuite) testAllocateIdsAreUnique(t *testing.T) {
	backend := suite.newBackend(t)

	seen := make(map[uint16]bool)
	for _, name := range []string{"alpha", "beta", "gamma"} {
		ns, err := backend.AllocateNamespace(testContext(), name)
		require.NoError(t, err)
		assert.False(t, seen[ns.ID], "id %d assigned twice", ns.ID)
		seen[ns.ID] = true
	}
}

func (suite *BackendTestSuite) testReleaseRemovesRecord(t *testing.T) {
	backend := suite.newBackend(t)

	ns, err := backend.AllocateNamespace(testContext(), "alpha")
	require.NoError(t, err)

	require.NoError(t, backend.ReleaseNamespace(testContext(), ns))

	records, err := backend.EnumerateNamespaces(testContext())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func (suite *BackendTestSuite) testUpdatePersistsDescriptor(t *testing.T) {
	backend := suite.newBackend(t)

	ns, err := backend.AllocateNamespace(testContext(), "alpha")
	require.NoError(t, err)

	ns.RootDescriptor = []byte{0xde, 0xad, 0xbe, 0xef}
	require.NoError(t, backend.UpdateNamespace(testContext(), ns))

	records, err := backend.EnumerateNamespaces(testContext())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, ns.RootDescriptor, records[0].RootDescriptor)

	// Updating a released namespace must fail.
	other := &namespace.Namespace{Name: "ghost", ID: 99}
	assert.Error(t, backend.UpdateNamespace(testContext(), other))
}
