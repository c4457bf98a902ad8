package badger

import (
	"context"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/treefs/treefs/pkg/tenant"
)

// EnumerateTenants returns every persisted endpoint binding in key order.
func (s *Store) EnumerateTenants(ctx context.Context) ([]tenant.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []tenant.Record

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixTenant)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				rec, err := decodeTenant(val)
				if err != nil {
					return err
				}
				records = append(records, *rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate tenants: %w", err)
	}

	return records, nil
}

// CreateTenant persists a new endpoint binding.
//
// The duplicate check and the write run in one transaction. The binding
// name equals the exported filesystem's name by convention, so one
// filesystem can carry at most one binding.
func (s *Store) CreateTenant(ctx context.Context, name string, nsID uint16, options string, info []byte) (*tenant.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec := &tenant.Record{
		Name:        name,
		NamespaceID: nsID,
		Options:     options,
		Info:        info,
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(keyTenant(name))
		if err == nil {
			return fmt.Errorf("tenant %q already exists", name)
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		data, err := encodeTenant(rec)
		if err != nil {
			return err
		}
		return txn.Set(keyTenant(name), data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant %q: %w", name, err)
	}

	return rec, nil
}

// DeleteTenant removes a persisted endpoint binding.
func (s *Store) DeleteTenant(ctx context.Context, rec *tenant.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(keyTenant(rec.Name))
	})
	if err != nil {
		return fmt.Errorf("failed to delete tenant %q: %w", rec.Name, err)
	}
	return nil
}
