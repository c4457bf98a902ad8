// Package namespace defines the durable identity of a registered filesystem.
//
// A Namespace is allocated by the metadata backend when a filesystem is
// created and persists until the filesystem is deleted. It carries the
// backend-assigned 16-bit namespace id, the immutable filesystem name, the
// backend tree identifier (FID) and an opaque root descriptor blob owned by
// the tree backend.
package namespace

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// MaxNameLen is the maximum length in bytes of a namespace name.
//
// Names are stored with an explicit length prefix bounded at 255 bytes, the
// standard Unix filename limit.
const MaxNameLen = 255

// ErrIDExhausted is returned by AllocateNamespace when the 16-bit namespace
// id space has been used up.
var ErrIDExhausted = errors.New("namespace id space exhausted")

// Namespace is the durable identity of one registered filesystem.
//
// Name and ID are immutable after allocation. RootDescriptor is an opaque
// blob produced by the tree backend when the filesystem's metadata tree is
// materialized; the namespace store treats it as raw bytes.
type Namespace struct {
	// ID is the unique 16-bit namespace identifier assigned by the backend
	ID uint16 `json:"id"`

	// Name is the filesystem name (immutable, at most MaxNameLen bytes)
	Name string `json:"name"`

	// FID is the backend identifier of the filesystem's metadata tree
	FID uint64 `json:"fid"`

	// RootDescriptor is the opaque root record blob written by the tree
	// backend when the metadata tree root is created
	RootDescriptor []byte `json:"root_descriptor,omitempty"`
}

// Store is the consumed namespace-store capability.
//
// Implementations persist namespace records in the key-value backend. All
// methods surface backend failures to the caller unchanged; no retries are
// performed at this layer.
type Store interface {
	// EnumerateNamespaces returns every durable namespace record.
	// Used at startup to rebuild the in-memory filesystem registry.
	EnumerateNamespaces(ctx context.Context) ([]Namespace, error)

	// AllocateNamespace creates a new namespace record for name with a
	// backend-assigned id and tree identifier. The name must already have
	// been validated with CheckName.
	AllocateNamespace(ctx context.Context, name string) (*Namespace, error)

	// ReleaseNamespace deletes the namespace record. Called both on
	// filesystem deletion and to roll back a failed creation.
	ReleaseNamespace(ctx context.Context, ns *Namespace) error

	// UpdateNamespace rewrites an existing record, typically to persist
	// the root descriptor once the metadata tree has been materialized.
	UpdateNamespace(ctx context.Context, ns *Namespace) error
}

// CheckName validates a filesystem name: non-empty, at most MaxNameLen
// bytes, no path separators and no NUL bytes.
func CheckName(name string) error {
	if name == "" {
		return fmt.Errorf("namespace name cannot be empty")
	}
	if len(name) > MaxNameLen {
		return fmt.Errorf("namespace name exceeds %d bytes: %d", MaxNameLen, len(name))
	}
	if strings.ContainsAny(name, "/\x00") {
		return fmt.Errorf("namespace name %q contains invalid characters", name)
	}
	return nil
}

// IsExhausted reports whether err indicates namespace id exhaustion.
func IsExhausted(err error) bool {
	return errors.Is(err, ErrIDExhausted)
}
