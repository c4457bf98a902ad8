// Package kvtree defines the metadata tree backend capability.
//
// A metadata tree is the KV-backed hierarchy of directory and file records
// rooted at a filesystem's root inode. The tree backend materializes, opens,
// closes and deletes whole trees; the registry layer drives it and never
// touches backend keys directly.
package kvtree

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// RootInode is the well-known inode number of every tree root directory.
const RootInode = 2

// Sentinel errors shared by every tree backend. Backends wrap these with
// operation context; callers match with errors.Is.
var (
	// ErrTreeNotFound is returned by OpenTree when no tree exists for the
	// requested identifier.
	ErrTreeNotFound = errors.New("metadata tree not found")

	// ErrTreeExists is returned by CreateTree when a tree already exists
	// for the requested identifier.
	ErrTreeExists = errors.New("metadata tree already exists")

	// ErrNodeNotFound is returned when a node or directory entry does not
	// exist.
	ErrNodeNotFound = errors.New("tree node not found")

	// ErrEntryExists is returned by AddChild when the parent already has
	// an entry with the requested name.
	ErrEntryExists = errors.New("directory entry already exists")

	// ErrNotEmpty is returned by RemoveChild and DeleteRoot when the
	// target directory still has entries.
	ErrNotEmpty = errors.New("directory not empty")

	// ErrTreeClosed is returned by operations on a released tree handle.
	ErrTreeClosed = errors.New("tree handle is closed")
)

// NodeID identifies one node of a metadata tree.
type NodeID = uuid.UUID

// Tree is an in-memory handle to an open metadata tree.
//
// A Tree is distinct from the persisted tree it refers to: closing the handle
// releases in-memory and backend-open resources only, it never destroys
// persisted records. Handles are owned by their registry entry and must be
// released exactly once.
type Tree interface {
	// FID returns the backend identifier of this tree.
	FID() uint64

	// Root returns the node id of the root directory.
	Root() NodeID

	// HasChildren reports whether node has at least one child entry.
	HasChildren(ctx context.Context, node NodeID) (bool, error)

	// AddChild creates a child node under parent with the given name and
	// attributes and links it into the hierarchy.
	AddChild(ctx context.Context, parent NodeID, name string, attr *NodeAttr) (NodeID, error)

	// Lookup resolves name under parent.
	Lookup(ctx context.Context, parent NodeID, name string) (NodeID, *NodeAttr, error)

	// Children returns the name to node id mapping of parent's entries.
	Children(ctx context.Context, parent NodeID) (map[string]NodeID, error)

	// RemoveChild unlinks and deletes the named child of parent.
	// The child must itself be childless.
	RemoveChild(ctx context.Context, parent NodeID, name string) error

	// GetAttr returns the attributes of node.
	GetAttr(ctx context.Context, node NodeID) (*NodeAttr, error)
}

// Store is the consumed tree-backend capability.
type Store interface {
	// CreateTree materializes a new metadata tree for ns with root as the
	// root directory record. The operation is atomic from the caller's
	// point of view: either the root exists afterwards or the operation
	// reports failure and no partial root exists.
	CreateTree(ctx context.Context, nsFID uint64, root *NodeAttr) (Tree, error)

	// OpenTree opens the existing metadata tree identified by nsFID.
	OpenTree(ctx context.Context, nsFID uint64) (Tree, error)

	// CloseTree releases the open handle. Idempotent per handle; persisted
	// records are untouched.
	CloseTree(t Tree) error

	// DeleteRoot removes the root directory record of t. Fails if the root
	// still has children.
	DeleteRoot(ctx context.Context, t Tree) error

	// DeleteTree removes every remaining record of the tree identified by
	// nsFID from the backend. Called after DeleteRoot; it takes the
	// identifier rather than a handle so a delete interrupted between
	// DeleteRoot and DeleteTree can be resumed when the root record is
	// already gone.
	DeleteTree(ctx context.Context, nsFID uint64) error
}
