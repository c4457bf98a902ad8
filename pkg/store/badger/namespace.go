package badger

import (
	"context"
	"fmt"
	"math"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/treefs/treefs/pkg/namespace"
)

// EnumerateNamespaces returns every persisted namespace record in key order.
func (s *Store) EnumerateNamespaces(ctx context.Context) ([]namespace.Namespace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []namespace.Namespace

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixNamespace)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				ns, err := decodeNamespace(val)
				if err != nil {
					return err
				}
				records = append(records, *ns)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate namespaces: %w", err)
	}

	return records, nil
}

// AllocateNamespace creates a new namespace record for name.
//
// The record id comes from a monotonic sequence persisted under a singleton
// key; ids are never reused, so the 16-bit id space is exhausted after
// 65535 allocations over the database's lifetime. The sequence read, the
// duplicate check and the record write run in one transaction.
func (s *Store) AllocateNamespace(ctx context.Context, name string) (*namespace.Namespace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ns *namespace.Namespace

	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(keyNamespace(name))
		if err == nil {
			return fmt.Errorf("namespace %q already exists", name)
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		last, err := s.readCounter(txn, keyNamespaceSequence())
		if err != nil {
			return err
		}
		next := last + 1
		if next > math.MaxUint16 {
			return namespace.ErrIDExhausted
		}

		ns = &namespace.Namespace{
			ID:   uint16(next),
			Name: name,
			FID:  next,
		}

		data, err := encodeNamespace(ns)
		if err != nil {
			return err
		}
		if err := txn.Set(keyNamespaceSequence(), encodeCounter(next)); err != nil {
			return err
		}
		return txn.Set(keyNamespace(name), data)
	})
	if err != nil {
		if namespace.IsExhausted(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to allocate namespace %q: %w", name, err)
	}

	return ns, nil
}

// ReleaseNamespace deletes the namespace record.
func (s *Store) ReleaseNamespace(ctx context.Context, ns *namespace.Namespace) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(keyNamespace(ns.Name))
	})
	if err != nil {
		return fmt.Errorf("failed to release namespace %q: %w", ns.Name, err)
	}
	return nil
}

// UpdateNamespace rewrites the persisted record, typically to store the
// root descriptor after the metadata tree has been materialized.
func (s *Store) UpdateNamespace(ctx context.Context, ns *namespace.Namespace) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(keyNamespace(ns.Name)); err != nil {
			return err
		}
		data, err := encodeNamespace(ns)
		if err != nil {
			return err
		}
		return txn.Set(keyNamespace(ns.Name), data)
	})
	if err != nil {
		return fmt.Errorf("failed to update namespace %q: %w", ns.Name, err)
	}
	return nil
}

// readCounter reads a big-endian uint64 counter, defaulting to zero when
// the key does not exist yet.
func (s *Store) readCounter(txn *badger.Txn, key []byte) (uint64, error) {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var n uint64
	err = item.Value(func(val []byte) error {
		var cerr error
		n, cerr = decodeCounter(val)
		return cerr
	})
	return n, err
}
