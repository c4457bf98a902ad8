package config

import (
	"context"
	"fmt"

	"github.com/treefs/treefs/internal/logger"
	"github.com/treefs/treefs/pkg/registry"
)

// MaterializeFilesystems creates the declared filesystems and their
// endpoint bindings in the registry.
//
// The operation is idempotent: filesystems and endpoints that already exist
// are skipped, so repeatedly starting a server with the same declaration
// list converges instead of failing.
func MaterializeFilesystems(ctx context.Context, reg *registry.Registry, decls []FilesystemConfig) error {
	for _, decl := range decls {
		err := reg.Create(ctx, decl.Name)
		switch {
		case err == nil:
			logger.Info("materialized filesystem %q", decl.Name)
		case registry.CodeOf(err) == registry.ErrAlreadyExists:
			logger.Debug("filesystem %q already exists, skipping", decl.Name)
		default:
			return fmt.Errorf("failed to materialize filesystem %q: %w", decl.Name, err)
		}

		if !decl.Export {
			continue
		}

		err = reg.EndpointCreate(ctx, decl.Name, decl.ExportOptions)
		switch {
		case err == nil:
			logger.Info("materialized endpoint %q", decl.Name)
		case registry.CodeOf(err) == registry.ErrAlreadyExists:
			logger.Debug("endpoint %q already exists, skipping", decl.Name)
		default:
			return fmt.Errorf("failed to materialize endpoint %q: %w", decl.Name, err)
		}
	}
	return nil
}
