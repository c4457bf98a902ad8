// Package badger implements the persisted store backend on BadgerDB.
//
// A single embedded database holds all three record kinds consumed by the
// filesystem registry: namespace records, endpoint bindings and metadata
// trees. Prefixed keys keep the kinds apart (see keys.go for the schema).
package badger

import (
	"context"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// Store implements store.Backend using BadgerDB for persistence.
//
// This implementation is suitable for production deployments: records
// survive restarts and crashes (WAL-based recovery), allocation runs in
// ACID transactions and range scans make enumeration and directory
// listings efficient.
//
// Thread Safety:
// BadgerDB transactions provide isolation internally, so the store itself
// carries no locks. Cross-record invariants (name uniqueness against the
// in-memory registry, endpoint attachment) are owned by the registry layer,
// which serializes mutating operations.
type Store struct {
	// db is the BadgerDB database handle (thread-safe, uses internal MVCC)
	db *badger.DB
}

// Config contains configuration for creating a BadgerDB store.
type Config struct {
	// DBPath is the directory where BadgerDB will store its files
	DBPath string `mapstructure:"db_path"`

	// InMemory runs the database entirely in memory. Useful for tests
	// and ephemeral deployments; DBPath is ignored when set.
	InMemory bool `mapstructure:"in_memory"`

	// BlockCacheSizeMB is BadgerDB's block cache size in MB (default: 64)
	BlockCacheSizeMB int64 `mapstructure:"block_cache_size_mb"`

	// IndexCacheSizeMB is BadgerDB's index cache size in MB (default: 32)
	IndexCacheSizeMB int64 `mapstructure:"index_cache_size_mb"`
}

// NewStore opens (or creates) a BadgerDB database at the configured path
// and returns a store ready for use.
//
// The metadata workload is small records with frequent point lookups, so
// compression is disabled and cache sizes default low. The returned store
// is safe for concurrent use.
func NewStore(ctx context.Context, config Config) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(config.DBPath)
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}

	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithCompression(options.None)

	blockCacheMB := config.BlockCacheSizeMB
	if blockCacheMB == 0 {
		blockCacheMB = 64
	}
	indexCacheMB := config.IndexCacheSizeMB
	if indexCacheMB == 0 {
		indexCacheMB = 32
	}

	opts = opts.WithBlockCacheSize(blockCacheMB << 20)
	opts = opts.WithIndexCacheSize(indexCacheMB << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	return &Store{db: db}, nil
}

// Close closes the database and releases all resources. The store must not
// be used afterwards.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}
