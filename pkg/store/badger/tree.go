package badger

import (
	"context"
	"fmt"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/treefs/treefs/pkg/kvtree"
)

// tree is an open handle to one metadata tree.
//
// The handle carries no backend resources of its own (the database is
// shared), so closing only marks the handle unusable. The closed flag is
// atomic because handles escape the registry lock once handed out.
type tree struct {
	s      *Store
	fid    uint64
	root   uuid.UUID
	closed atomic.Bool
}

var _ kvtree.Tree = (*tree)(nil)

// FID returns the backend identifier of this tree.
func (t *tree) FID() uint64 {
	return t.fid
}

// Root returns the node id of the root directory.
func (t *tree) Root() kvtree.NodeID {
	return t.root
}

// check guards every operation against closed handles and cancelled
// contexts.
func (t *tree) check(ctx context.Context) error {
	if t.closed.Load() {
		return kvtree.ErrTreeClosed
	}
	return ctx.Err()
}

// HasChildren reports whether node has at least one child entry.
//
// This is a range scan that stops at the first hit; values are not
// prefetched.
func (t *tree) HasChildren(ctx context.Context, node kvtree.NodeID) (bool, error) {
	if err := t.check(ctx); err != nil {
		return false, err
	}

	var found bool
	err := t.s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyTreeChildPrefix(t.fid, node)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		it.Rewind()
		found = it.Valid()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to scan children of node %s: %w", node, err)
	}
	return found, nil
}

// AddChild creates a child node under parent and links it into the
// hierarchy.
//
// The existence check, inode assignment and the three record writes run in
// one transaction. When attr.Ino is zero an inode number is assigned from
// the tree's sequence.
func (t *tree) AddChild(ctx context.Context, parent kvtree.NodeID, name string, attr *kvtree.NodeAttr) (kvtree.NodeID, error) {
	if err := t.check(ctx); err != nil {
		return uuid.Nil, err
	}

	id := uuid.New()

	err := t.s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(keyTreeNode(t.fid, parent)); err != nil {
			if err == badger.ErrKeyNotFound {
				return fmt.Errorf("parent node %s: %w", parent, kvtree.ErrNodeNotFound)
			}
			return err
		}

		if _, err := txn.Get(keyTreeChild(t.fid, parent, name)); err == nil {
			return fmt.Errorf("entry %q: %w", name, kvtree.ErrEntryExists)
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		stored := *attr
		if stored.Ino == 0 {
			ino, err := t.s.readCounter(txn, keyTreeInodeSequence(t.fid))
			if err != nil {
				return err
			}
			stored.Ino = ino
			if err := txn.Set(keyTreeInodeSequence(t.fid), encodeCounter(ino+1)); err != nil {
				return err
			}
		}

		blob, err := kvtree.EncodeAttr(&stored)
		if err != nil {
			return err
		}
		if err := txn.Set(keyTreeNode(t.fid, id), blob); err != nil {
			return err
		}
		if err := txn.Set(keyTreeChild(t.fid, parent, name), encodeNodeID(id)); err != nil {
			return err
		}
		return txn.Set(keyTreeParent(t.fid, id), encodeNodeID(parent))
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to add child %q under %s: %w", name, parent, err)
	}

	return id, nil
}

// Lookup resolves name under parent.
func (t *tree) Lookup(ctx context.Context, parent kvtree.NodeID, name string) (kvtree.NodeID, *kvtree.NodeAttr, error) {
	if err := t.check(ctx); err != nil {
		return uuid.Nil, nil, err
	}

	var (
		id   uuid.UUID
		attr *kvtree.NodeAttr
	)

	err := t.s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyTreeChild(t.fid, parent, name))
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("entry %q: %w", name, kvtree.ErrNodeNotFound)
		}
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			var derr error
			id, derr = decodeNodeID(val)
			return derr
		}); err != nil {
			return err
		}

		attr, err = t.getAttrTxn(txn, id)
		return err
	})
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("failed to look up %q under %s: %w", name, parent, err)
	}

	return id, attr, nil
}

// Children returns the name to node id mapping of parent's entries.
func (t *tree) Children(ctx context.Context, parent kvtree.NodeID) (map[string]kvtree.NodeID, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}

	prefix := keyTreeChildPrefix(t.fid, parent)
	children := make(map[string]kvtree.NodeID)

	err := t.s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			name := string(item.Key()[len(prefix):])
			err := item.Value(func(val []byte) error {
				id, derr := decodeNodeID(val)
				if derr != nil {
					return derr
				}
				children[name] = id
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list children of node %s: %w", parent, err)
	}

	return children, nil
}

// RemoveChild unlinks and deletes the named child of parent. The child
// must itself be childless.
func (t *tree) RemoveChild(ctx context.Context, parent kvtree.NodeID, name string) error {
	if err := t.check(ctx); err != nil {
		return err
	}

	err := t.s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(keyTreeChild(t.fid, parent, name))
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("entry %q: %w", name, kvtree.ErrNodeNotFound)
		}
		if err != nil {
			return err
		}

		var id uuid.UUID
		if err := item.Value(func(val []byte) error {
			var derr error
			id, derr = decodeNodeID(val)
			return derr
		}); err != nil {
			return err
		}

		if hasChildrenTxn(txn, t.fid, id) {
			return fmt.Errorf("entry %q: %w", name, kvtree.ErrNotEmpty)
		}

		if err := txn.Delete(keyTreeNode(t.fid, id)); err != nil {
			return err
		}
		if err := txn.Delete(keyTreeParent(t.fid, id)); err != nil {
			return err
		}
		return txn.Delete(keyTreeChild(t.fid, parent, name))
	})
	if err != nil {
		return fmt.Errorf("failed to remove child %q under %s: %w", name, parent, err)
	}
	return nil
}

// GetAttr returns the attributes of node.
func (t *tree) GetAttr(ctx context.Context, node kvtree.NodeID) (*kvtree.NodeAttr, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}

	var attr *kvtree.NodeAttr
	err := t.s.db.View(func(txn *badger.Txn) error {
		var gerr error
		attr, gerr = t.getAttrTxn(txn, node)
		return gerr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read node %s: %w", node, err)
	}
	return attr, nil
}

// getAttrTxn reads and decodes a node record inside an open transaction.
func (t *tree) getAttrTxn(txn *badger.Txn, node uuid.UUID) (*kvtree.NodeAttr, error) {
	item, err := txn.Get(keyTreeNode(t.fid, node))
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("node %s: %w", node, kvtree.ErrNodeNotFound)
	}
	if err != nil {
		return nil, err
	}

	var attr *kvtree.NodeAttr
	err = item.Value(func(val []byte) error {
		var derr error
		attr, derr = kvtree.DecodeAttr(val)
		return derr
	})
	return attr, err
}

// hasChildrenTxn checks emptiness inside an open transaction.
func hasChildrenTxn(txn *badger.Txn, fid uint64, node uuid.UUID) bool {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = keyTreeChildPrefix(fid, node)
	opts.PrefetchValues = false

	it := txn.NewIterator(opts)
	defer it.Close()

	it.Rewind()
	return it.Valid()
}

// CreateTree materializes a new metadata tree for nsFID with root as the
// root directory record.
//
// The root record and the root node are written in one transaction, so a
// failed create leaves no partial tree behind. The tree's inode sequence
// starts right above the well-known root inode.
func (s *Store) CreateTree(ctx context.Context, nsFID uint64, root *kvtree.NodeAttr) (kvtree.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rootID := uuid.New()

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(keyTreeRoot(nsFID)); err == nil {
			return kvtree.ErrTreeExists
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		blob, err := kvtree.EncodeAttr(root)
		if err != nil {
			return err
		}

		data, err := encodeRootRecord(&rootRecord{Root: rootID, Attr: blob})
		if err != nil {
			return err
		}
		if err := txn.Set(keyTreeRoot(nsFID), data); err != nil {
			return err
		}
		if err := txn.Set(keyTreeNode(nsFID, rootID), blob); err != nil {
			return err
		}
		return txn.Set(keyTreeInodeSequence(nsFID), encodeCounter(kvtree.RootInode+1))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tree for fid %d: %w", nsFID, err)
	}

	return &tree{s: s, fid: nsFID, root: rootID}, nil
}

// OpenTree opens the existing metadata tree identified by nsFID.
func (s *Store) OpenTree(ctx context.Context, nsFID uint64) (kvtree.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *rootRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyTreeRoot(nsFID))
		if err == badger.ErrKeyNotFound {
			return kvtree.ErrTreeNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var derr error
			rec, derr = decodeRootRecord(val)
			return derr
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open tree for fid %d: %w", nsFID, err)
	}

	return &tree{s: s, fid: nsFID, root: rec.Root}, nil
}

// CloseTree releases the open handle. Idempotent per handle.
func (s *Store) CloseTree(th kvtree.Tree) error {
	t, ok := th.(*tree)
	if !ok {
		return fmt.Errorf("foreign tree handle %T", th)
	}
	t.closed.Store(true)
	return nil
}

// DeleteRoot removes the root directory record of the tree. Fails with
// ErrNotEmpty if the root still has children.
func (s *Store) DeleteRoot(ctx context.Context, th kvtree.Tree) error {
	t, ok := th.(*tree)
	if !ok {
		return fmt.Errorf("foreign tree handle %T", th)
	}
	if err := t.check(ctx); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(keyTreeRoot(t.fid)); err != nil {
			if err == badger.ErrKeyNotFound {
				return kvtree.ErrTreeNotFound
			}
			return err
		}
		if hasChildrenTxn(txn, t.fid, t.root) {
			return kvtree.ErrNotEmpty
		}
		if err := txn.Delete(keyTreeNode(t.fid, t.root)); err != nil {
			return err
		}
		return txn.Delete(keyTreeRoot(t.fid))
	})
	if err != nil {
		return fmt.Errorf("failed to delete tree root for fid %d: %w", t.fid, err)
	}
	return nil
}

// DeleteTree removes every remaining record of the tree in one prefix
// drop. Called after DeleteRoot; a missing root record is not an error
// here, so an interrupted delete can be resumed.
func (s *Store) DeleteTree(ctx context.Context, nsFID uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.db.DropPrefix(treePrefix(nsFID)); err != nil {
		return fmt.Errorf("failed to drop tree records for fid %d: %w", nsFID, err)
	}
	return nil
}
