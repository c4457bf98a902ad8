// Package fs implements a local filesystem payload store.
package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/treefs/treefs/pkg/content"
)

// FSStore stores payloads as files under a base directory.
//
// The ContentID maps directly to a relative path, so the directory mirrors
// the logical layout ("<fsname>/<path>"). Writes go through a temp file and
// rename so readers never observe partial payloads.
type FSStore struct {
	base string
}

// NewFSStore creates a filesystem payload store rooted at base, creating
// the directory if needed.
func NewFSStore(ctx context.Context, base string) (*FSStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if base == "" {
		return nil, fmt.Errorf("content store path is required")
	}
	if err := os.MkdirAll(base, 0755); err != nil {
		return nil, fmt.Errorf("failed to create content directory %s: %w", base, err)
	}
	return &FSStore{base: base}, nil
}

// path resolves id below the base directory, rejecting traversal.
func (s *FSStore) path(id content.ID) (string, error) {
	rel := filepath.Clean(string(id))
	if rel == "" || rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return "", &content.Error{Code: content.ErrIOError, Message: "invalid content id", ID: id}
	}
	return filepath.Join(s.base, rel), nil
}

// Write stores data under id, replacing any previous payload.
func (s *FSStore) Write(ctx context.Context, id content.ID, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("failed to create content directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".treefs-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write payload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to publish payload: %w", err)
	}
	return nil
}

// Read returns the payload stored under id.
func (s *FSStore) Read(ctx context.Context, id content.ID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, &content.Error{Code: content.ErrNotFound, Message: "payload not found", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	return data, nil
}

// Remove deletes the payload stored under id.
func (s *FSStore) Remove(ctx context.Context, id content.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := s.path(id)
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if os.IsNotExist(err) {
		return &content.Error{Code: content.ErrNotFound, Message: "payload not found", ID: id}
	}
	if err != nil {
		return fmt.Errorf("failed to remove payload: %w", err)
	}
	return nil
}

// RemoveAll deletes every payload belonging to fsName.
func (s *FSStore) RemoveAll(ctx context.Context, fsName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := s.path(content.ID(fsName))
	if err != nil {
		return err
	}
	if err := os.RemoveAll(p); err != nil {
		return fmt.Errorf("failed to purge payloads for %s: %w", fsName, err)
	}
	return nil
}

// Healthcheck verifies the base directory is writable.
func (s *FSStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.CreateTemp(s.base, ".treefs-health-*")
	if err != nil {
		return fmt.Errorf("content directory not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// Close is a no-op for the filesystem store.
func (s *FSStore) Close() error {
	return nil
}
