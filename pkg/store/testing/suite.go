// Package testing provides a reusable contract test suite for store.Backend
// implementations.
package testing

import (
	"context"
	"testing"

	"github.com/treefs/treefs/pkg/store"
)

// BackendTestSuite is a test suite for store.Backend implementations.
// It tests the interface contract, not implementation details, so the same
// suite runs against the BadgerDB and the in-memory backend.
//
// Usage:
//
//	func TestMyBackend(t *testing.T) {
//	    suite := &testing.BackendTestSuite{
//	        NewBackend: func(t *testing.T) store.Backend {
//	            return mystore.NewStore()
//	        },
//	    }
//	    suite.Run(t)
//	}
type BackendTestSuite struct {
	// NewBackend creates a fresh backend for each test. The suite closes
	// it via t.Cleanup, so factories only need to build the instance.
	NewBackend func(t *testing.T) store.Backend
}

// Run executes all tests in the suite.
func (suite *BackendTestSuite) Run(t *testing.T) {
	t.Run("Namespaces", suite.RunNamespaceTests)
	t.Run("Tenants", suite.RunTenantTests)
	t.Run("Trees", suite.RunTreeTests)
}

// newBackend builds a backend and registers its teardown.
func (suite *BackendTestSuite) newBackend(t *testing.T) store.Backend {
	t.Helper()

	backend := suite.NewBackend(t)
	t.Cleanup(func() {
		if err := backend.Close(); err != nil {
			t.Errorf("failed to close backend: %v", err)
		}
	})
	return backend
}

// testContext returns a standard test context.
func testContext() context.Context {
	return context.Background()
}
