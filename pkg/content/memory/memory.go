// Package memory implements an in-memory payload store, used in tests and
// for throwaway deployments.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/treefs/treefs/pkg/content"
)

// MemoryStore keeps payloads in a map guarded by a read-write mutex.
type MemoryStore struct {
	mu       sync.RWMutex
	payloads map[content.ID][]byte
}

// NewMemoryStore creates an empty in-memory payload store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{payloads: make(map[content.ID][]byte)}
}

// Write stores a copy of data under id.
func (s *MemoryStore) Write(ctx context.Context, id content.ID, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads[id] = append([]byte(nil), data...)
	return nil
}

// Read returns a copy of the payload stored under id.
func (s *MemoryStore) Read(ctx context.Context, id content.ID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.payloads[id]
	if !ok {
		return nil, &content.Error{Code: content.ErrNotFound, Message: "payload not found", ID: id}
	}
	return append([]byte(nil), data...), nil
}

// Remove deletes the payload stored under id.
func (s *MemoryStore) Remove(ctx context.Context, id content.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.payloads[id]; !ok {
		return &content.Error{Code: content.ErrNotFound, Message: "payload not found", ID: id}
	}
	delete(s.payloads, id)
	return nil
}

// RemoveAll deletes every payload belonging to fsName.
func (s *MemoryStore) RemoveAll(ctx context.Context, fsName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	prefix := fsName + "/"

	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.payloads {
		if strings.HasPrefix(string(id), prefix) {
			delete(s.payloads, id)
		}
	}
	return nil
}

// Count returns the number of stored payloads. Test helper.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.payloads)
}

// Healthcheck always succeeds for the in-memory store.
func (s *MemoryStore) Healthcheck(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
