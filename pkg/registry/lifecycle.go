package registry

import (
	"context"
	"fmt"

	"github.com/treefs/treefs/internal/logger"
)

// state tracks the registry's position in the startup/shutdown sequence.
//
// Startup:  uninitialized -> namespaces loaded -> endpoints loaded -> ready.
// Shutdown: ready -> endpoints detached -> uninitialized (namespaces
// released and the map emptied in the final transition).
type state int

const (
	stateUninitialized state = iota
	stateNamespacesLoaded
	stateEndpointsLoaded
	stateReady
	stateEndpointsDetached
)

// Init populates the registry from the persisted stores.
//
// Namespace records become registry entries with no open tree handles
// (trees are opened lazily). Persisted endpoint bindings are then attached
// to their entries by name; a tenant record with no matching entry means
// the two persisted stores disagree, which is unrecoverable: Init fails
// with an error wrapping ErrInconsistentStores and the registry stays
// unusable.
func (r *Registry) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != stateUninitialized {
		return &Error{Code: ErrInvalidState, Message: "registry is already initialized"}
	}

	nss, err := r.namespaces.EnumerateNamespaces(ctx)
	if err != nil {
		return backendErr("", "failed to enumerate namespaces", err)
	}

	for i := range nss {
		ns := nss[i]
		r.insertLocked(&Filesystem{r: r, ns: &ns})
	}
	r.state = stateNamespacesLoaded
	logger.Debug("loaded %d filesystems from namespace store", len(nss))

	recs, err := r.tenants.EnumerateTenants(ctx)
	if err != nil {
		r.resetLocked()
		return backendErr("", "failed to enumerate tenants", err)
	}

	for i := range recs {
		rec := recs[i]
		fs, ok := r.entries[rec.Name]
		if !ok {
			r.resetLocked()
			logger.Error("tenant record %q has no matching filesystem", rec.Name)
			return &Error{
				Code:    ErrBackendFailure,
				Message: "orphan tenant record",
				Name:    rec.Name,
				Err:     fmt.Errorf("%w: tenant %q has no namespace", ErrInconsistentStores, rec.Name),
			}
		}
		if fs.tenant != nil {
			r.resetLocked()
			logger.Error("duplicate tenant record for filesystem %q", rec.Name)
			return &Error{
				Code:    ErrBackendFailure,
				Message: "duplicate tenant record",
				Name:    rec.Name,
				Err:     fmt.Errorf("%w: two tenants for %q", ErrInconsistentStores, rec.Name),
			}
		}
		fs.tenant = &rec
	}
	r.state = stateEndpointsLoaded
	logger.Debug("attached %d endpoint bindings", len(recs))

	r.state = stateReady
	r.metrics.SetFilesystems(len(r.entries))
	r.metrics.SetEndpoints(len(recs))

	logger.Info("registry initialized: %d filesystems, %d endpoints", len(r.entries), len(recs))
	return nil
}

// DetachEndpoints unbinds every endpoint in memory.
//
// Detaching is not deletion: the persisted tenant records survive and are
// re-attached on the next Init. Part of the shutdown sequence, runs before
// entries are released.
func (r *Registry) DetachEndpoints() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detachEndpointsLocked()
}

func (r *Registry) detachEndpointsLocked() {
	detached := 0
	for _, fs := range r.entries {
		if fs.tenant != nil {
			fs.tenant = nil
			detached++
		}
	}
	if r.state == stateReady {
		r.state = stateEndpointsDetached
	}
	logger.Debug("detached %d endpoint bindings", detached)
}

// Fini tears the registry down in dependency order: endpoint bindings are
// detached first, then every entry's open tree handle is released and the
// registry is emptied. Persisted state is untouched. After Fini the
// registry is back in its uninitialized state.
func (r *Registry) Fini(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == stateUninitialized {
		return
	}

	r.detachEndpointsLocked()

	for _, name := range r.order {
		fs := r.entries[name]
		if fs.tree != nil {
			if err := r.trees.CloseTree(fs.tree); err != nil {
				logger.Warn("failed to close tree handle for %q during shutdown: %v", name, err)
			}
			fs.tree = nil
		}
	}

	count := len(r.entries)
	r.resetLocked()
	r.metrics.SetFilesystems(0)
	r.metrics.SetEndpoints(0)

	logger.Info("registry finalized, released %d filesystems", count)
}

// resetLocked drops all entries and returns to the uninitialized state.
// Caller holds the write lock.
func (r *Registry) resetLocked() {
	r.entries = make(map[string]*Filesystem)
	r.order = nil
	r.state = stateUninitialized
}
