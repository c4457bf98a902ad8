// Package tenant defines the persisted export binding records.
//
// A tenant record makes a filesystem reachable through a protocol endpoint.
// The record is owned by the tenant store; the filesystem registry only holds
// a non-owning reference to it while the binding is attached.
package tenant

import "context"

// Record is one persisted endpoint binding.
//
// By convention the record name equals the name of the filesystem it exports,
// so the registry attaches records to filesystems by name.
type Record struct {
	// Name is the endpoint name (equal to the exported filesystem name)
	Name string `json:"name"`

	// NamespaceID is a copy of the bound namespace's id
	NamespaceID uint16 `json:"namespace_id"`

	// Options is the opaque protocol configuration blob supplied at
	// endpoint creation (for NFS this is the export option string)
	Options string `json:"options"`

	// Info is the opaque endpoint handle handed out through the registry
	// info accessors; the store never interprets it
	Info []byte `json:"info,omitempty"`
}

// Store is the consumed tenant-store capability.
type Store interface {
	// EnumerateTenants returns every persisted endpoint binding.
	// Used at startup to re-attach bindings to registry entries.
	EnumerateTenants(ctx context.Context) ([]Record, error)

	// CreateTenant persists a new endpoint binding carrying the opaque
	// endpoint handle info.
	CreateTenant(ctx context.Context, name string, nsID uint16, options string, info []byte) (*Record, error)

	// DeleteTenant removes a persisted endpoint binding.
	DeleteTenant(ctx context.Context, rec *Record) error
}
