package registry

import (
	"context"
	"encoding/json"

	"github.com/treefs/treefs/internal/logger"
)

// ExportHooks is the optional protocol-specific export hook.
//
// When a frontend (e.g. an NFS server plugin) needs to react to export
// lifecycle changes it registers an implementation with SetExportHooks.
// When no hooks are registered the corresponding step degrades to a logged
// warning, never a failure.
type ExportHooks interface {
	// OnCreateExport is invoked after the export precondition checks pass
	// and before the binding is persisted. The returned handle is stored
	// with the binding and handed out through the info accessors; when it
	// is nil a default endpoint descriptor is stored instead.
	OnCreateExport(ctx context.Context, name string, nsID uint16, options string) ([]byte, error)

	// OnDeleteExport is invoked before the persisted binding is removed.
	OnDeleteExport(ctx context.Context, name string, nsID uint16, options string) error
}

// endpointInfo is the default endpoint handle persisted when no protocol
// hook supplies one.
type endpointInfo struct {
	Name        string `json:"name"`
	NamespaceID uint16 `json:"namespace_id"`
	Options     string `json:"options"`
}

// EndpointCreate exports the filesystem named name with the given protocol
// options.
//
// Fails with NotFound if no such filesystem exists and with AlreadyExists
// if the filesystem already has a binding. The persisted tenant record is
// created only after the protocol hook (if any) succeeds, and the binding
// is attached to the entry last.
func (r *Registry) EndpointCreate(ctx context.Context, name, options string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireReady(); err != nil {
		return err
	}

	fs, ok := r.entries[name]
	if !ok {
		logger.Warn("cannot create endpoint for nonexistent filesystem %q", name)
		return &Error{Code: ErrNotFound, Message: "filesystem not found", Name: name}
	}

	if fs.tenant != nil {
		logger.Warn("filesystem %q is already exported", name)
		return &Error{Code: ErrAlreadyExists, Message: "filesystem is already exported", Name: name}
	}

	nsID := fs.ns.ID

	var info []byte
	if r.hooks != nil {
		var err error
		info, err = r.hooks.OnCreateExport(ctx, name, nsID, options)
		if err != nil {
			return backendErr(name, "export creation hook failed", err)
		}
	} else {
		logger.Warn("no protocol hook registered, export %q created without protocol-specific setup", name)
	}

	// Every binding carries a non-empty handle so an exported filesystem
	// is observable through the info accessors even without a protocol.
	if len(info) == 0 {
		data, err := json.Marshal(endpointInfo{Name: name, NamespaceID: nsID, Options: options})
		if err != nil {
			return backendErr(name, "failed to encode endpoint info", err)
		}
		info = data
	}

	rec, err := r.tenants.CreateTenant(ctx, name, nsID, options, info)
	if err != nil {
		return backendErr(name, "failed to create tenant record", err)
	}

	fs.tenant = rec
	r.metrics.EndpointCreated()

	logger.Info("endpoint %q created (ns_id=%d options=%q)", name, nsID, options)
	return nil
}

// EndpointDelete removes the export binding of the filesystem named name.
//
// Fails with NotFound both when the filesystem is absent and when it has no
// binding. The persisted tenant record is deleted before the in-memory
// detach so a backend failure leaves the binding attached and retryable.
//
// There is no check that the filesystem is currently mounted by a client;
// the registry has no view of client sessions.
func (r *Registry) EndpointDelete(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireReady(); err != nil {
		return err
	}

	fs, ok := r.entries[name]
	if !ok {
		logger.Warn("cannot delete endpoint for nonexistent filesystem %q", name)
		return &Error{Code: ErrNotFound, Message: "filesystem not found", Name: name}
	}

	if fs.tenant == nil {
		logger.Warn("filesystem %q has no endpoint to delete", name)
		return &Error{Code: ErrNotFound, Message: "filesystem is not exported", Name: name}
	}

	if r.hooks != nil {
		if err := r.hooks.OnDeleteExport(ctx, name, fs.ns.ID, fs.tenant.Options); err != nil {
			return backendErr(name, "export deletion hook failed", err)
		}
	} else {
		logger.Warn("no protocol hook registered, export %q deleted without protocol-specific teardown", name)
	}

	if err := r.tenants.DeleteTenant(ctx, fs.tenant); err != nil {
		return backendErr(name, "failed to delete tenant record", err)
	}

	fs.tenant = nil
	r.metrics.EndpointDeleted()

	logger.Info("endpoint %q deleted", name)
	return nil
}

// EndpointInfo returns the protocol-specific endpoint handle of the named
// filesystem, or nil if the filesystem exists but is not exported.
// Pure read, no side effects.
func (r *Registry) EndpointInfo(name string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fs, ok := r.entries[name]
	if !ok {
		return nil, &Error{Code: ErrNotFound, Message: "filesystem not found", Name: name}
	}
	if fs.tenant == nil {
		return nil, nil
	}
	return fs.tenant.Info, nil
}
