// Package content defines the payload store abstraction.
//
// File payloads are stored flat, keyed by ContentID; the metadata layer
// never interprets the bytes. ContentIDs are namespaced by filesystem name
// ("<fsname>/<path>") so a whole filesystem's payloads can be purged by
// prefix when the filesystem is deleted.
package content

import "context"

// ID identifies one stored payload.
type ID string

// Store is the payload store capability.
type Store interface {
	// Write stores data under id, replacing any previous payload.
	Write(ctx context.Context, id ID, data []byte) error

	// Read returns the payload stored under id.
	Read(ctx context.Context, id ID) ([]byte, error)

	// Remove deletes the payload stored under id. Removing a missing id
	// is an error.
	Remove(ctx context.Context, id ID) error

	// RemoveAll deletes every payload whose id starts with fsName + "/".
	// Used when a filesystem is deleted. Removing from an empty prefix
	// is a no-op.
	RemoveAll(ctx context.Context, fsName string) error

	// Healthcheck verifies the store is reachable and writable.
	Healthcheck(ctx context.Context) error

	// Close releases store resources.
	Close() error
}

// Error is a typed content store error.
type Error struct {
	Code    ErrorCode
	Message string
	ID      ID
}

func (e *Error) Error() string {
	if e.ID != "" {
		return e.Message + ": " + string(e.ID)
	}
	return e.Message
}

// ErrorCode is the category of a content store error.
type ErrorCode int

const (
	// ErrNotFound indicates the payload doesn't exist
	ErrNotFound ErrorCode = iota

	// ErrIOError indicates a read or write failure in the backing store
	ErrIOError
)
