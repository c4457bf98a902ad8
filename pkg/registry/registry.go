// Package registry implements the in-memory registry of active filesystems.
//
// The registry is the core of the metadata layer: it owns every filesystem
// entry, drives the tree backend when filesystems are created and deleted,
// and manages the endpoint bindings that make filesystems reachable through
// protocol frontends. All durable state lives in the consumed stores
// (namespace, tenant, tree); the registry itself is rebuilt from them at
// startup.
//
// Thread safety: a single read-write mutex guards the name to entry mapping
// and the mutable fields of each entry. Create and Delete hold the write
// lock across their whole sequence so partially-constructed entries are
// never visible to concurrent Lookup or Scan.
package registry

import (
	"context"
	"errors"
	"sync"

	"github.com/treefs/treefs/internal/logger"
	"github.com/treefs/treefs/pkg/content"
	"github.com/treefs/treefs/pkg/kvtree"
	"github.com/treefs/treefs/pkg/metrics"
	"github.com/treefs/treefs/pkg/namespace"
	"github.com/treefs/treefs/pkg/tenant"
)

// Registry is the in-memory collection of active filesystems, keyed by name.
//
// A Registry must be initialized with Init before use and torn down with
// Fini. It exclusively owns all Filesystem entries and their namespaces;
// endpoint bindings are owned by the tenant store and only referenced here.
type Registry struct {
	mu sync.RWMutex

	state state

	// entries maps filesystem name to its registry entry; order preserves
	// insertion order for Scan enumeration only
	entries map[string]*Filesystem
	order   []string

	namespaces namespace.Store
	tenants    tenant.Store
	trees      kvtree.Store

	// hooks is the optional protocol-specific export hook; nil degrades
	// hook invocations to a logged warning
	hooks ExportHooks

	// payloads is the optional content store; a filesystem's payload
	// prefix is purged after a successful durable delete
	payloads content.Store

	metrics *metrics.RegistryMetrics
}

// Filesystem is one registry entry and doubles as the handle returned to
// consumers. The namespace identity is immutable; the tree handle and the
// endpoint binding are mutable and guarded by the owning registry's mutex.
type Filesystem struct {
	r      *Registry
	ns     *namespace.Namespace
	tree   kvtree.Tree
	tenant *tenant.Record
}

// Name returns the filesystem name.
func (fs *Filesystem) Name() string {
	return fs.ns.Name
}

// NamespaceID returns the 16-bit namespace id of the filesystem.
func (fs *Filesystem) NamespaceID() uint16 {
	return fs.ns.ID
}

// EndpointInfo returns the protocol-specific endpoint handle if the
// filesystem is exported, or nil if it has no binding.
func (fs *Filesystem) EndpointInfo() []byte {
	fs.r.mu.RLock()
	defer fs.r.mu.RUnlock()

	if fs.tenant == nil {
		return nil
	}
	return fs.tenant.Info
}

// Tree returns the open metadata tree handle, or nil if the filesystem has
// not been opened.
func (fs *Filesystem) Tree() kvtree.Tree {
	fs.r.mu.RLock()
	defer fs.r.mu.RUnlock()
	return fs.tree
}

// Entry is the read-only view of a registry entry produced by Scan.
type Entry struct {
	// Name is the filesystem name
	Name string

	// Exported reports whether the filesystem has an endpoint binding
	Exported bool

	// EndpointInfo is the opaque endpoint handle, nil when the filesystem
	// is not exported
	EndpointInfo []byte
}

// New creates an uninitialized registry over the given stores.
//
// All three stores are required. Optional collaborators (export hooks,
// payload store, metrics) are attached with the Set methods before Init.
func New(namespaces namespace.Store, tenants tenant.Store, trees kvtree.Store) *Registry {
	if namespaces == nil || tenants == nil || trees == nil {
		panic("registry stores cannot be nil")
	}
	return &Registry{
		state:      stateUninitialized,
		entries:    make(map[string]*Filesystem),
		namespaces: namespaces,
		tenants:    tenants,
		trees:      trees,
	}
}

// SetExportHooks attaches the optional protocol-specific export hooks.
// Must be called before Init.
func (r *Registry) SetExportHooks(hooks ExportHooks) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = hooks
}

// SetContentStore attaches an optional payload store whose per-filesystem
// prefix is purged when a filesystem is deleted. Must be called before Init.
func (r *Registry) SetContentStore(store content.Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = store
}

// SetMetrics attaches optional Prometheus instruments. Must be called
// before Init.
func (r *Registry) SetMetrics(m *metrics.RegistryMetrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = m
}

// Lookup returns the filesystem registered under name.
//
// Returns a NotFound error if no such filesystem exists. Callers that only
// need an existence check can ignore the returned handle.
func (r *Registry) Lookup(name string) (*Filesystem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fs, ok := r.entries[name]
	if !ok {
		return nil, &Error{Code: ErrNotFound, Message: "filesystem not found", Name: name}
	}
	return fs, nil
}

// Create makes a new filesystem named name.
//
// The sequence is: allocate a namespace identity, build the canonical root
// directory record and materialize the tree root, then publish the entry.
// On any failure after namespace allocation the namespace is released again
// so no partial entry is ever left behind, in memory or in the backend.
func (r *Registry) Create(ctx context.Context, name string) error {
	if err := namespace.CheckName(name); err != nil {
		return &Error{Code: ErrInvalidArgument, Message: "invalid filesystem name", Name: name, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireReady(); err != nil {
		return err
	}

	if _, exists := r.entries[name]; exists {
		logger.Warn("filesystem %q already exists", name)
		return &Error{Code: ErrAlreadyExists, Message: "filesystem already exists", Name: name}
	}

	ns, err := r.namespaces.AllocateNamespace(ctx, name)
	if err != nil {
		return wrapAllocErr(name, err)
	}

	// Root record: directory mode 0777, well-known root inode, nlink 2,
	// uid/gid 0, zeroed timestamps.
	rootAttr := kvtree.NewRootAttr()

	tree, err := r.trees.CreateTree(ctx, ns.FID, rootAttr)
	if err != nil {
		// Roll back the namespace so the failed create leaves no trace.
		if relErr := r.namespaces.ReleaseNamespace(ctx, ns); relErr != nil {
			logger.Error("failed to roll back namespace %q after tree creation failure: %v", name, relErr)
		}
		return backendErr(name, "failed to create metadata tree", err)
	}

	// The tree handle stays closed until the filesystem is opened.
	if err := r.trees.CloseTree(tree); err != nil {
		logger.Warn("failed to close tree handle for %q after creation: %v", name, err)
	}

	// Persisting the descriptor is best-effort: it can always be rebuilt
	// from the root record.
	if blob, encErr := kvtree.EncodeAttr(rootAttr); encErr == nil {
		ns.RootDescriptor = blob
		if updErr := r.namespaces.UpdateNamespace(ctx, ns); updErr != nil {
			logger.Warn("failed to persist root descriptor for %q: %v", name, updErr)
		}
	}

	r.insertLocked(&Filesystem{r: r, ns: ns})
	r.metrics.FilesystemCreated()

	logger.Info("filesystem %q created (ns_id=%d fid=%d)", name, ns.ID, ns.FID)
	return nil
}

// Delete removes the filesystem named name from the registry and the
// backend.
//
// The delete is refused while an endpoint binding is attached
// (InvalidState) and while the metadata tree still has entries besides its
// root (NotEmpty). Backend operations run in a fixed order: delete the tree
// root, delete the tree, release the namespace, and only then remove the
// entry from the registry. A failure at any backend step leaves the entry
// registered rather than silently orphaning it.
func (r *Registry) Delete(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireReady(); err != nil {
		return err
	}

	fs, ok := r.entries[name]
	if !ok {
		logger.Warn("cannot delete filesystem %q: not found", name)
		return &Error{Code: ErrNotFound, Message: "filesystem not found", Name: name}
	}

	if fs.tenant != nil {
		logger.Warn("cannot delete filesystem %q: still exported", name)
		return &Error{Code: ErrInvalidState, Message: "filesystem is exported, delete the endpoint first", Name: name}
	}

	// The emptiness check needs an open tree handle; open one transiently
	// if the filesystem was never opened. A missing root record means an
	// earlier delete removed it and failed before the tree records were
	// dropped, so the delete resumes from there.
	tree := fs.tree
	transient := false
	rootGone := false
	if tree == nil {
		var err error
		tree, err = r.trees.OpenTree(ctx, fs.ns.FID)
		switch {
		case errors.Is(err, kvtree.ErrTreeNotFound):
			logger.Warn("tree root for filesystem %q already deleted, resuming delete", name)
			tree = nil
			rootGone = true
		case err != nil:
			return backendErr(name, "failed to open metadata tree", err)
		default:
			transient = true
		}
	}

	if !rootGone {
		hasChildren, err := tree.HasChildren(ctx, tree.Root())
		if err != nil {
			r.closeTransient(tree, transient, name)
			return backendErr(name, "failed to check tree emptiness", err)
		}
		if hasChildren {
			r.closeTransient(tree, transient, name)
			logger.Warn("cannot delete filesystem %q: not empty", name)
			return &Error{Code: ErrNotEmpty, Message: "filesystem is not empty", Name: name}
		}

		if err := r.trees.DeleteRoot(ctx, tree); err != nil {
			// The root vanishing under an open handle means a previous
			// attempt already removed it; keep going.
			if !errors.Is(err, kvtree.ErrTreeNotFound) {
				r.closeTransient(tree, transient, name)
				return backendErr(name, "failed to delete tree root", err)
			}
		}
	}

	if err := r.trees.DeleteTree(ctx, fs.ns.FID); err != nil {
		r.closeTransient(tree, transient, name)
		return backendErr(name, "failed to delete metadata tree", err)
	}
	if tree != nil {
		if err := r.trees.CloseTree(tree); err != nil {
			logger.Warn("failed to close tree handle for deleted filesystem %q: %v", name, err)
		}
	}
	fs.tree = nil

	if err := r.namespaces.ReleaseNamespace(ctx, fs.ns); err != nil {
		return backendErr(name, "failed to release namespace", err)
	}

	r.removeLocked(name)
	r.metrics.FilesystemDeleted()

	// Payload cleanup is best-effort: the filesystem is already gone from
	// the metadata layer, orphaned payloads only waste space.
	if r.payloads != nil {
		if err := r.payloads.RemoveAll(ctx, name); err != nil {
			logger.Warn("failed to purge payloads for deleted filesystem %q: %v", name, err)
		}
	}

	logger.Info("filesystem %q deleted", name)
	return nil
}

// Open returns a handle to the filesystem named name, lazily opening its
// metadata tree on first use.
func (r *Registry) Open(ctx context.Context, name string) (*Filesystem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireReady(); err != nil {
		return nil, err
	}

	fs, ok := r.entries[name]
	if !ok {
		logger.Warn("cannot open filesystem %q: not found", name)
		return nil, &Error{Code: ErrNotFound, Message: "filesystem not found", Name: name}
	}

	if fs.tree == nil {
		tree, err := r.trees.OpenTree(ctx, fs.ns.FID)
		if err != nil {
			return nil, backendErr(name, "failed to open metadata tree", err)
		}
		fs.tree = tree
	}

	return fs, nil
}

// Close releases the filesystem's open tree handle.
//
// Idempotent: closing an already-closed filesystem is a no-op. The entry
// stays registered and persisted data is untouched.
func (r *Registry) Close(fs *Filesystem) {
	if fs == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if fs.tree == nil {
		return
	}
	if err := r.trees.CloseTree(fs.tree); err != nil {
		logger.Warn("failed to close tree handle for %q: %v", fs.ns.Name, err)
	}
	fs.tree = nil
}

// Scan invokes visit with a read-only view of every registry entry, in
// insertion order. Scanning stops at the first error the visitor returns
// and propagates it unchanged.
func (r *Registry) Scan(visit func(Entry) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		fs := r.entries[name]
		e := Entry{Name: fs.ns.Name}
		if fs.tenant != nil {
			e.Exported = true
			e.EndpointInfo = fs.tenant.Info
		}
		if err := visit(e); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of registered filesystems.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// closeTransient closes a tree handle that was opened only for the duration
// of a delete attempt.
func (r *Registry) closeTransient(tree kvtree.Tree, transient bool, name string) {
	if !transient {
		return
	}
	if err := r.trees.CloseTree(tree); err != nil {
		logger.Warn("failed to close transient tree handle for %q: %v", name, err)
	}
}

// insertLocked publishes a fully-constructed entry. Caller holds the write
// lock.
func (r *Registry) insertLocked(fs *Filesystem) {
	r.entries[fs.ns.Name] = fs
	r.order = append(r.order, fs.ns.Name)
}

// removeLocked drops an entry from the map and the enumeration order.
// Caller holds the write lock.
func (r *Registry) removeLocked(name string) {
	delete(r.entries, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// requireReady guards runtime operations against use before Init or after
// Fini. Caller holds the lock.
func (r *Registry) requireReady() *Error {
	if r.state != stateReady {
		return &Error{Code: ErrInvalidState, Message: "registry is not initialized"}
	}
	return nil
}

// wrapAllocErr classifies a namespace allocation failure. Id space
// exhaustion surfaces as ResourceExhausted, everything else as a backend
// failure.
func wrapAllocErr(name string, err error) *Error {
	if namespace.IsExhausted(err) {
		return &Error{Code: ErrResourceExhausted, Message: "namespace id space exhausted", Name: name, Err: err}
	}
	return backendErr(name, "failed to allocate namespace", err)
}
