package memory

import (
	"testing"

	"github.com/treefs/treefs/pkg/store"
	storetesting "github.com/treefs/treefs/pkg/store/testing"
)

// TestMemoryBackend runs the shared backend contract suite against the
// in-memory store.
func TestMemoryBackend(t *testing.T) {
	suite := &storetesting.BackendTestSuite{
		NewBackend: func(t *testing.T) store.Backend {
			return NewStore()
		},
	}
	suite.Run(t)
}
