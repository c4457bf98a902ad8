package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunTenantTests executes the tenant store contract tests.
func (suite *BackendTestSuite) RunTenantTests(t *testing.T) {
	t.Run("Enumerate_Empty", suite.testEnumerateTenantsEmpty)
	t.Run("Create_PersistsBinding", suite.testCreateTenantPersists)
	t.Run("Create_Duplicate", suite.testCreateTenantDuplicate)
	t.Run("Delete_RemovesBinding", suite.testDeleteTenantRemoves)
}

func (suite *BackendTestSuite) testEnumerateTenantsEmpty(t *testing.T) {
	backend := suite.newBackend(t)

	records, err := backend.EnumerateTenants(testContext())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func (suite *BackendTestSuite) testCreateTenantPersists(t *testing.T) {
	backend := suite.newBackend(t)

	rec, err := backend.CreateTenant(testContext(), "alpha", 7, "rw,no_root_squash", []byte("handle-7"))
	require.NoError(t, err)
	assert.Equal(t, "alpha", rec.Name)
	assert.Equal(t, uint16(7), rec.NamespaceID)
	assert.Equal(t, "rw,no_root_squash", rec.Options)
	assert.Equal(t, []byte("handle-7"), rec.Info)

	records, err := backend.EnumerateTenants(testContext())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, *rec, records[0])
}

func (suite *BackendTestSuite) testCreateTenantDuplicate(t *testing.T) {
	backend := suite.newBackend(t)

	_, err := backend.CreateTenant(testContext(), "alpha", 1, "", nil)
	require.NoError(t, err)

	_, err = backend.CreateTenant(testContext(), "alpha", 2, "", nil)
	assert.Error(t, err)
}

func (suite *BackendTestSuite) testDeleteTenantRemoves(t *testing.T) {
	backend := suite.newBackend(t)

	rec, err := backend.CreateTenant(testContext(), "alpha", 1, "", nil)
	require.NoError(t, err)

	require.NoError(t, backend.DeleteTenant(testContext(), rec))

	records, err := backend.EnumerateTenants(testContext())
	require.NoError(t, err)
	assert.Empty(t, records)
}
