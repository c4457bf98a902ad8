package kvtree

import (
	"bytes"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// Mode bits for NodeAttr.Mode, matching the POSIX stat encoding.
const (
	ModeDir  = 0040000
	ModeFile = 0100000
)

// NodeAttr is the stat-like record stored for every tree node.
//
// Timestamps are Unix seconds. The root directory record is created with
// zeroed timestamps and uid/gid 0; regular nodes carry whatever the caller
// supplies.
type NodeAttr struct {
	Mode  uint32
	Ino   uint64
	Nlink uint32
	UID   uint32
	GID   uint32
	Size  uint64
	Atime int64
	Mtime int64
	Ctime int64
}

// IsDir reports whether the attributes describe a directory.
func (a *NodeAttr) IsDir() bool {
	return a.Mode&ModeDir != 0
}

// NewRootAttr returns the canonical root directory record for a freshly
// created metadata tree: directory mode 0777, the well-known root inode,
// link count 2 ("." plus the filesystem reference), owned by root, zeroed
// timestamps.
func NewRootAttr() *NodeAttr {
	return &NodeAttr{
		Mode:  ModeDir | 0777,
		Ino:   RootInode,
		Nlink: 2,
		UID:   0,
		GID:   0,
	}
}

// EncodeAttr serializes a node record to its opaque on-disk form.
//
// Records are XDR-encoded so the blob layout is fixed-width and
// language-neutral; the same bytes serve as the namespace root descriptor.
func EncodeAttr(attr *NodeAttr) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, attr); err != nil {
		return nil, fmt.Errorf("failed to encode node record: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeAttr deserializes a node record blob produced by EncodeAttr.
func DecodeAttr(blob []byte) (*NodeAttr, error) {
	var attr NodeAttr
	if _, err := xdr.Unmarshal(bytes.NewReader(blob), &attr); err != nil {
		return nil, fmt.Errorf("failed to decode node record: %w", err)
	}
	return &attr, nil
}
