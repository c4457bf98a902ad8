// Package store composes the persisted store capabilities consumed by the
// filesystem registry.
package store

import (
	"github.com/treefs/treefs/pkg/kvtree"
	"github.com/treefs/treefs/pkg/namespace"
	"github.com/treefs/treefs/pkg/tenant"
)

// Backend bundles the namespace, tenant and tree stores over a single
// key-value database. Implementations share one database so allocation and
// enumeration stay consistent across the three record kinds.
type Backend interface {
	namespace.Store
	tenant.Store
	kvtree.Store

	// Close releases the underlying database.
	Close() error
}
