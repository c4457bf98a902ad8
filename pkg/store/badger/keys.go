package badger

import (
	"fmt"

	"github.com/google/uuid"
)

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a key-value store, so we use prefixed keys to organize the
// different record kinds into logical namespaces. This design:
//   - Prevents key collisions between record kinds
//   - Enables efficient range scans (enumeration, directory listings)
//   - Makes the database structure self-documenting
//
// Key Namespace Prefixes:
//
// Record Kind          Prefix   Key Format                       Value Type
// ===========================================================================
// Namespace Records    "ns:"    ns:<name>                        Namespace (JSON)
// Endpoint Bindings    "tn:"    tn:<name>                        tenant.Record (JSON)
// Namespace Sequence   "seq:"   seq:ns                           uint64 (binary)
// Tree Root            "t:"     t:<fid>:root                     rootRecord (JSON)
// Tree Nodes           "t:"     t:<fid>:n:<uuid>                 NodeAttr (XDR)
// Tree Children        "t:"     t:<fid>:c:<parentUUID>:<name>    childUUID (bytes)
// Tree Parents         "t:"     t:<fid>:p:<childUUID>            parentUUID (bytes)
// Tree Inode Sequence  "t:"     t:<fid>:seq                      uint64 (binary)
//
// Tree keys embed the namespace FID as fixed-width hex so that every record
// of one tree shares a single prefix. Deleting a tree is then one prefix
// drop, and no tree can ever collide with another.
//
// The children namespace is denormalized: one entry per child rather than
// one map per directory. Listing a directory is a range scan over
// "t:<fid>:c:<parentUUID>:" and checking emptiness stops at the first hit.

const (
	// prefixNamespace is the key prefix for namespace records
	prefixNamespace = "ns:"

	// prefixTenant is the key prefix for endpoint binding records
	prefixTenant = "tn:"

	// keySequence is the singleton key holding the last allocated
	// namespace id
	keySequence = "seq:ns"

	// prefixTree is the key prefix shared by all per-tree records
	prefixTree = "t:"
)

// keyNamespace generates a key for a namespace record.
//
// Format: "ns:<name>"
func keyNamespace(name string) []byte {
	return []byte(prefixNamespace + name)
}

// keyTenant generates a key for an endpoint binding record.
//
// Format: "tn:<name>"
func keyTenant(name string) []byte {
	return []byte(prefixTenant + name)
}

// keyNamespaceSequence generates the singleton key for the namespace id
// sequence.
func keyNamespaceSequence() []byte {
	return []byte(keySequence)
}

// treePrefix generates the key prefix shared by every record of one tree.
//
// Format: "t:<fid>:" with fid as fixed-width hex, so range scans never
// bleed into a neighboring tree.
func treePrefix(fid uint64) []byte {
	return []byte(fmt.Sprintf("%s%016x:", prefixTree, fid))
}

// keyTreeRoot generates the key for a tree's root record.
//
// Format: "t:<fid>:root"
func keyTreeRoot(fid uint64) []byte {
	return append(treePrefix(fid), "root"...)
}

// keyTreeNode generates the key for a node record.
//
// Format: "t:<fid>:n:<uuid>"
func keyTreeNode(fid uint64, id uuid.UUID) []byte {
	return append(treePrefix(fid), "n:"+id.String()...)
}

// keyTreeChild generates the key for a child entry in a directory.
//
// Format: "t:<fid>:c:<parentUUID>:<childName>"
func keyTreeChild(fid uint64, parent uuid.UUID, name string) []byte {
	return append(treePrefix(fid), "c:"+parent.String()+":"+name...)
}

// keyTreeChildPrefix generates the key prefix for range scanning the
// children of a directory.
//
// Format: "t:<fid>:c:<parentUUID>:"
func keyTreeChildPrefix(fid uint64, parent uuid.UUID) []byte {
	return append(treePrefix(fid), "c:"+parent.String()+":"...)
}

// keyTreeParent generates the key for a child's parent link.
//
// Format: "t:<fid>:p:<childUUID>"
func keyTreeParent(fid uint64, child uuid.UUID) []byte {
	return append(treePrefix(fid), "p:"+child.String()...)
}

// keyTreeInodeSequence generates the key for a tree's inode number sequence.
//
// Format: "t:<fid>:seq"
func keyTreeInodeSequence(fid uint64) []byte {
	return append(treePrefix(fid), "seq"...)
}
