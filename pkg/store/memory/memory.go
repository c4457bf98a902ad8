// Package memory implements the persisted store backend in process memory.
//
// It mirrors the BadgerDB backend's semantics exactly (same sentinel errors,
// same allocation behavior) but keeps every record in Go maps. Intended for
// tests and ephemeral deployments; nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/treefs/treefs/pkg/kvtree"
	"github.com/treefs/treefs/pkg/namespace"
	"github.com/treefs/treefs/pkg/tenant"
)

// Store implements store.Backend with in-memory maps.
//
// A single read-write mutex guards all record kinds. That is coarser than
// BadgerDB's MVCC but the registry serializes mutating operations anyway.
type Store struct {
	mu sync.RWMutex

	// lastID is the last allocated namespace id; ids are never reused
	lastID uint64

	namespaces map[string]*namespace.Namespace
	tenants    map[string]*tenant.Record
	trees      map[uint64]*treeData
}

// treeData is the persisted state of one metadata tree.
type treeData struct {
	root     uuid.UUID
	nodes    map[uuid.UUID]*kvtree.NodeAttr
	children map[uuid.UUID]map[string]uuid.UUID
	parents  map[uuid.UUID]uuid.UUID
	nextIno  uint64
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		namespaces: make(map[string]*namespace.Namespace),
		tenants:    make(map[string]*tenant.Record),
		trees:      make(map[uint64]*treeData),
	}
}

// Close releases the store. A no-op for the in-memory backend.
func (s *Store) Close() error {
	return nil
}

// EnumerateNamespaces returns every namespace record.
func (s *Store) EnumerateNamespaces(ctx context.Context) ([]namespace.Namespace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]namespace.Namespace, 0, len(s.namespaces))
	for _, ns := range s.namespaces {
		records = append(records, *ns)
	}
	return records, nil
}

// AllocateNamespace creates a new namespace record for name.
func (s *Store) AllocateNamespace(ctx context.Context, name string) (*namespace.Namespace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.namespaces[name]; exists {
		return nil, fmt.Errorf("namespace %q already exists", name)
	}
	if s.lastID+1 > math.MaxUint16 {
		return nil, namespace.ErrIDExhausted
	}
	s.lastID++

	ns := &namespace.Namespace{
		ID:   uint16(s.lastID),
		Name: name,
		FID:  s.lastID,
	}
	s.namespaces[name] = ns

	out := *ns
	return &out, nil
}

// ReleaseNamespace deletes the namespace record.
func (s *Store) ReleaseNamespace(ctx context.Context, ns *namespace.Namespace) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.namespaces, ns.Name)
	return nil
}

// UpdateNamespace rewrites an existing record.
func (s *Store) UpdateNamespace(ctx context.Context, ns *namespace.Namespace) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.namespaces[ns.Name]; !exists {
		return fmt.Errorf("namespace %q does not exist", ns.Name)
	}
	out := *ns
	s.namespaces[ns.Name] = &out
	return nil
}

// EnumerateTenants returns every endpoint binding.
func (s *Store) EnumerateTenants(ctx context.Context) ([]tenant.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]tenant.Record, 0, len(s.tenants))
	for _, rec := range s.tenants {
		records = append(records, *rec)
	}
	return records, nil
}

// CreateTenant persists a new endpoint binding.
func (s *Store) CreateTenant(ctx context.Context, name string, nsID uint16, options string, info []byte) (*tenant.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tenants[name]; exists {
		return nil, fmt.Errorf("tenant %q already exists", name)
	}

	rec := &tenant.Record{
		Name:        name,
		NamespaceID: nsID,
		Options:     options,
		Info:        append([]byte(nil), info...),
	}
	s.tenants[name] = rec

	out := *rec
	return &out, nil
}

// DeleteTenant removes a persisted endpoint binding.
func (s *Store) DeleteTenant(ctx context.Context, rec *tenant.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tenants, rec.Name)
	return nil
}

// tree is an open handle to one in-memory metadata tree.
type tree struct {
	s      *Store
	fid    uint64
	root   uuid.UUID
	closed bool
}

var _ kvtree.Tree = (*tree)(nil)

func (t *tree) FID() uint64 {
	return t.fid
}

func (t *tree) Root() kvtree.NodeID {
	return t.root
}

// data returns the persisted tree state, guarding against closed handles
// and deleted trees. Caller holds the store lock.
func (t *tree) data() (*treeData, error) {
	if t.closed {
		return nil, kvtree.ErrTreeClosed
	}
	td, ok := t.s.trees[t.fid]
	if !ok {
		return nil, kvtree.ErrTreeNotFound
	}
	return td, nil
}

func (t *tree) HasChildren(ctx context.Context, node kvtree.NodeID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	td, err := t.data()
	if err != nil {
		return false, err
	}
	return len(td.children[node]) > 0, nil
}

func (t *tree) AddChild(ctx context.Context, parent kvtree.NodeID, name string, attr *kvtree.NodeAttr) (kvtree.NodeID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}

	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	td, err := t.data()
	if err != nil {
		return uuid.Nil, err
	}

	if _, ok := td.nodes[parent]; !ok {
		return uuid.Nil, fmt.Errorf("parent node %s: %w", parent, kvtree.ErrNodeNotFound)
	}
	if _, ok := td.children[parent][name]; ok {
		return uuid.Nil, fmt.Errorf("entry %q: %w", name, kvtree.ErrEntryExists)
	}

	stored := *attr
	if stored.Ino == 0 {
		stored.Ino = td.nextIno
		td.nextIno++
	}

	id := uuid.New()
	td.nodes[id] = &stored
	if td.children[parent] == nil {
		td.children[parent] = make(map[string]uuid.UUID)
	}
	td.children[parent][name] = id
	td.parents[id] = parent

	return id, nil
}

func (t *tree) Lookup(ctx context.Context, parent kvtree.NodeID, name string) (kvtree.NodeID, *kvtree.NodeAttr, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, nil, err
	}

	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	td, err := t.data()
	if err != nil {
		return uuid.Nil, nil, err
	}

	id, ok := td.children[parent][name]
	if !ok {
		return uuid.Nil, nil, fmt.Errorf("entry %q: %w", name, kvtree.ErrNodeNotFound)
	}
	attr := *td.nodes[id]
	return id, &attr, nil
}

func (t *tree) Children(ctx context.Context, parent kvtree.NodeID) (map[string]kvtree.NodeID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	td, err := t.data()
	if err != nil {
		return nil, err
	}

	out := make(map[string]kvtree.NodeID, len(td.children[parent]))
	for name, id := range td.children[parent] {
		out[name] = id
	}
	return out, nil
}

func (t *tree) RemoveChild(ctx context.Context, parent kvtree.NodeID, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	td, err := t.data()
	if err != nil {
		return err
	}

	id, ok := td.children[parent][name]
	if !ok {
		return fmt.Errorf("entry %q: %w", name, kvtree.ErrNodeNotFound)
	}
	if len(td.children[id]) > 0 {
		return fmt.Errorf("entry %q: %w", name, kvtree.ErrNotEmpty)
	}

	delete(td.nodes, id)
	delete(td.parents, id)
	delete(td.children, id)
	delete(td.children[parent], name)
	return nil
}

func (t *tree) GetAttr(ctx context.Context, node kvtree.NodeID) (*kvtree.NodeAttr, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	td, err := t.data()
	if err != nil {
		return nil, err
	}

	stored, ok := td.nodes[node]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", node, kvtree.ErrNodeNotFound)
	}
	attr := *stored
	return &attr, nil
}

// CreateTree materializes a new metadata tree for nsFID.
func (s *Store) CreateTree(ctx context.Context, nsFID uint64, root *kvtree.NodeAttr) (kvtree.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trees[nsFID]; exists {
		return nil, kvtree.ErrTreeExists
	}

	rootID := uuid.New()
	rootAttr := *root

	s.trees[nsFID] = &treeData{
		root:     rootID,
		nodes:    map[uuid.UUID]*kvtree.NodeAttr{rootID: &rootAttr},
		children: make(map[uuid.UUID]map[string]uuid.UUID),
		parents:  make(map[uuid.UUID]uuid.UUID),
		nextIno:  kvtree.RootInode + 1,
	}

	return &tree{s: s, fid: nsFID, root: rootID}, nil
}

// OpenTree opens the existing metadata tree identified by nsFID.
func (s *Store) OpenTree(ctx context.Context, nsFID uint64) (kvtree.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	td, ok := s.trees[nsFID]
	if !ok {
		return nil, kvtree.ErrTreeNotFound
	}
	// A tree whose root record was already removed by DeleteRoot cannot
	// be opened, matching the persistent backend.
	if _, ok := td.nodes[td.root]; !ok {
		return nil, kvtree.ErrTreeNotFound
	}
	return &tree{s: s, fid: nsFID, root: td.root}, nil
}

// CloseTree releases the open handle. Idempotent per handle.
func (s *Store) CloseTree(th kvtree.Tree) error {
	t, ok := th.(*tree)
	if !ok {
		return fmt.Errorf("foreign tree handle %T", th)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t.closed = true
	return nil
}

// DeleteRoot removes the root directory record. Fails with ErrNotEmpty if
// the root still has children.
func (s *Store) DeleteRoot(ctx context.Context, th kvtree.Tree) error {
	t, ok := th.(*tree)
	if !ok {
		return fmt.Errorf("foreign tree handle %T", th)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t.closed {
		return kvtree.ErrTreeClosed
	}
	td, ok := s.trees[t.fid]
	if !ok {
		return kvtree.ErrTreeNotFound
	}
	if _, ok := td.nodes[td.root]; !ok {
		return kvtree.ErrTreeNotFound
	}
	if len(td.children[td.root]) > 0 {
		return kvtree.ErrNotEmpty
	}

	delete(td.nodes, td.root)
	return nil
}

// DeleteTree removes every remaining record of the tree. Deleting a tree
// that is already gone is a no-op.
func (s *Store) DeleteTree(ctx context.Context, nsFID uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.trees, nsFID)
	return nil
}
