package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treefs/treefs/pkg/kvtree"
)

// RunTreeTests executes the tree store contract tests.
func (suite *BackendTestSuite) RunTreeTests(t *testing.T) {
	t.Run("Create_MaterializesRoot", suite.testCreateTreeMaterializesRoot)
	t.Run("Create_Duplicate", suite.testCreateTreeDuplicate)
	t.Run("Open_NotFound", suite.testOpenTreeNotFound)
	t.Run("Open_SurvivesClose", suite.testOpenTreeSurvivesClose)
	t.Run("Close_InvalidatesHandle", suite.testCloseInvalidatesHandle)
	t.Run("AddChild_Lookup", suite.testAddChildLookup)
	t.Run("AddChild_Duplicate", suite.testAddChildDuplicate)
	t.Run("AddChild_AssignsInodes", suite.testAddChildAssignsInodes)
	t.Run("Children_Listing", suite.testChildrenListing)
	t.Run("RemoveChild", suite.testRemoveChild)
	t.Run("RemoveChild_NotEmpty", suite.testRemoveChildNotEmpty)
	t.Run("DeleteRoot_NotEmpty", suite.testDeleteRootNotEmpty)
	t.Run("Delete_FullLifecycle", suite.testDeleteFullLifecycle)
	t.Run("Delete_ResumesWithoutRoot", suite.testDeleteResumesWithoutRoot)
}

func (suite *BackendTestSuite) testCreateTreeMaterializesRoot(t *testing.T) {
	backend := suite.newBackend(t)

	rootAttr := kvtree.NewRootAttr()
	tree, err := backend.CreateTree(testContext(), 1, rootAttr)
	require.NoError(t, err)
	defer func() { _ = backend.CloseTree(tree) }()

	assert.Equal(t, uint64(1), tree.FID())

	attr, err := tree.GetAttr(testContext(), tree.Root())
	require.NoError(t, err)
	assert.Equal(t, *rootAttr, *attr)
	assert.True(t, attr.IsDir())
	assert.Equal(t, uint64(kvtree.RootInode), attr.Ino)

	hasChildren, err := tree.HasChildren(testContext(), tree.Root())
	require.NoError(t, err)
	assert.False(t, hasChildren)
}

func (suite *BackendTestSuite) testCreateTreeDuplicate(t *testing.T) {
	backend := suite.newBackend(t)

	tree, err := backend.CreateTree(testContext(), 1, kvtree.NewRootAttr())
	require.NoError(t, err)
	defer func() { _ = backend.CloseTree(tree) }()

	_, err = backend.CreateTree(testContext(), 1, kvtree.NewRootAttr())
	assert.ErrorIs(t, err, kvtree.ErrTreeExists)
}

func (suite *BackendTestSuite) testOpenTreeNotFound(t *testing.T) {
	backend := suite.newBackend(t)

	_, err := backend.OpenTree(testContext(), 42)
	assert.ErrorIs(t, err, kvtree.ErrTreeNotFound)
}

func (suite *BackendTestSuite) testOpenTreeSurvivesClose(t *testing.T) {
	backend := suite.newBackend(t)

	created, err := backend.CreateTree(testContext(), 1, kvtree.NewRootAttr())
	require.NoError(t, err)

	_, err = created.AddChild(testContext(), created.Root(), "data", &kvtree.NodeAttr{Mode: kvtree.ModeFile | 0644})
	require.NoError(t, err)

	require.NoError(t, backend.CloseTree(created))

	// Closing only drops the handle; the persisted tree remains.
	reopened, err := backend.OpenTree(testContext(), 1)
	require.NoError(t, err)
	defer func() { _ = backend.CloseTree(reopened) }()

	assert.Equal(t, created.Root(), reopened.Root())

	_, _, err = reopened.Lookup(testContext(), reopened.Root(), "data")
	assert.NoError(t, err)
}

func (suite *BackendTestSuite) testCloseInvalidatesHandle(t *testing.T) {
	backend := suite.newBackend(t)

	tree, err := backend.CreateTree(testContext(), 1, kvtree.NewRootAttr())
	require.NoError(t, err)

	require.NoError(t, backend.CloseTree(tree))
	require.NoError(t, backend.CloseTree(tree), "close must be idempotent")

	_, err = tree.HasChildren(testContext(), tree.Root())
	assert.ErrorIs(t, err, kvtree.ErrTreeClosed)
}

func (suite *BackendTestSuite) testAddChildLookup(t *testing.T) {
	backend := suite.newBackend(t)

	tree, err := backend.CreateTree(testContext(), 1, kvtree.NewRootAttr())
	require.NoError(t, err)
	defer func() { _ = backend.CloseTree(tree) }()

	want := &kvtree.NodeAttr{Mode: kvtree.ModeFile | 0644, Size: 1024, UID: 1000, GID: 1000}
	id, err := tree.AddChild(testContext(), tree.Root(), "report.txt", want)
	require.NoError(t, err)

	gotID, gotAttr, err := tree.Lookup(testContext(), tree.Root(), "report.txt")
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.Equal(t, want.Mode, gotAttr.Mode)
	assert.Equal(t, want.Size, gotAttr.Size)
	assert.False(t, gotAttr.IsDir())

	_, _, err = tree.Lookup(testContext(), tree.Root(), "missing")
	assert.ErrorIs(t, err, kvtree.ErrNodeNotFound)

	// Adding under a node that does not exist must fail.
	_, err = tree.AddChild(testContext(), kvtree.NodeID{}, "orphan", want)
	assert.ErrorIs(t, err, kvtree.ErrNodeNotFound)
}

func (suite *BackendTestSuite) testAddChildDuplicate(t *testing.T) {
	backend := suite.newBackend(t)

	tree, err := backend.CreateTree(testContext(), 1, kvtree.NewRootAttr())
	require.NoError(t, err)
	defer func() { _ = backend.CloseTree(tree) }()

	attr := &kvtree.NodeAttr{Mode: kvtree.ModeFile | 0644}
	_, err = tree.AddChild(testContext(), tree.Root(), "data", attr)
	require.NoError(t, err)

	_, err = tree.AddChild(testContext(), tree.Root(), "data", attr)
	assert.ErrorIs(t, err, kvtree.ErrEntryExists)
}

func (suite *BackendTestSuite) testAddChildAssignsInodes(t *testing.T) {
	backend := suite.newBackend(t)

	tree, err := backend.CreateTree(testContext(), 1, kvtree.NewRootAttr())
	require.NoError(t, err)
	defer func() { _ = backend.CloseTree(tree) }()

	seen := make(map[uint64]bool)
	for _, name := range []string{"a", "b", "c"} {
		_, err := tree.AddChild(testContext(), tree.Root(), name, &kvtree.NodeAttr{Mode: kvtree.ModeFile | 0644})
		require.NoError(t, err)

		_, attr, err := tree.Lookup(testContext(), tree.Root(), name)
		require.NoError(t, err)
		assert.Greater(t, attr.Ino, uint64(kvtree.RootInode))
		assert.False(t, seen[attr.Ino], "inode %d assigned twice", attr.Ino)
		seen[attr.Ino] = true
	}
}

func (suite *BackendTestSuite) testChildrenListing(t *testing.T) {
	backend := suite.newBackend(t)

	tree, err := backend.CreateTree(testContext(), 1, kvtree.NewRootAttr())
	require.NoError(t, err)
	defer func() { _ = backend.CloseTree(tree) }()

	dirID, err := tree.AddChild(testContext(), tree.Root(), "docs", &kvtree.NodeAttr{Mode: kvtree.ModeDir | 0755})
	require.NoError(t, err)
	fileID, err := tree.AddChild(testContext(), tree.Root(), "readme", &kvtree.NodeAttr{Mode: kvtree.ModeFile | 0644})
	require.NoError(t, err)

	children, err := tree.Children(testContext(), tree.Root())
	require.NoError(t, err)
	assert.Equal(t, map[string]kvtree.NodeID{"docs": dirID, "readme": fileID}, children)

	// Nested children do not leak into the parent listing.
	_, err = tree.AddChild(testContext(), dirID, "nested", &kvtree.NodeAttr{Mode: kvtree.ModeFile | 0644})
	require.NoError(t, err)

	children, err = tree.Children(testContext(), tree.Root())
	require.NoError(t, err)
	assert.Len(t, children, 2)
}

func (suite *BackendTestSuite) testRemoveChild(t *testing.T) {
	backend := suite.newBackend(t)

	tree, err := backend.CreateTree(testContext(), 1, kvtree.NewRootAttr())
	require.NoError(t, err)
	defer func() { _ = backend.CloseTree(tree) }()

	id, err := tree.AddChild(testContext(), tree.Root(), "data", &kvtree.NodeAttr{Mode: kvtree.ModeFile | 0644})
	require.NoError(t, err)

	require.NoError(t, tree.RemoveChild(testContext(), tree.Root(), "data"))

	_, _, err = tree.Lookup(testContext(), tree.Root(), "data")
	assert.ErrorIs(t, err, kvtree.ErrNodeNotFound)

	_, err = tree.GetAttr(testContext(), id)
	assert.ErrorIs(t, err, kvtree.ErrNodeNotFound)

	err = tree.RemoveChild(testContext(), tree.Root(), "data")
	assert.ErrorIs(t, err, kvtree.ErrNodeNotFound)
}

func (suite *BackendTestSuite) testRemoveChildNotEmpty(t *testing.T) {
	backend := suite.newBackend(t)

	tree, err := backend.CreateTree(testContext(), 1, kvtree.NewRootAttr())
	require.NoError(t, err)
	defer func() { _ = backend.CloseTree(tree) }()

	dirID, err := tree.AddChild(testContext(), tree.Root(), "docs", &kvtree.NodeAttr{Mode: kvtree.ModeDir | 0755})
	require.NoError(t, err)
	_, err = tree.AddChild(testContext(), dirID, "nested", &kvtree.NodeAttr{Mode: kvtree.ModeFile | 0644})
	require.NoError(t, err)

	err = tree.RemoveChild(testContext(), tree.Root(), "docs")
	assert.ErrorIs(t, err, kvtree.ErrNotEmpty)

	// After the nested entry is gone the directory can be removed.
	require.NoError(t, tree.RemoveChild(testContext(), dirID, "nested"))
	require.NoError(t, tree.RemoveChild(testContext(), tree.Root(), "docs"))
}

func (suite *BackendTestSuite) testDeleteRootNotEmpty(t *testing.T) {
	backend := suite.newBackend(t)

	tree, err := backend.CreateTree(testContext(), 1, kvtree.NewRootAttr())
	require.NoError(t, err)
	defer func() { _ = backend.CloseTree(tree) }()

	_, err = tree.AddChild(testContext(), tree.Root(), "data", &kvtree.NodeAttr{Mode: kvtree.ModeFile | 0644})
	require.NoError(t, err)

	err = backend.DeleteRoot(testContext(), tree)
	assert.ErrorIs(t, err, kvtree.ErrNotEmpty)

	// The root record must be untouched by the failed delete.
	attr, err := tree.GetAttr(testContext(), tree.Root())
	require.NoError(t, err)
	assert.True(t, attr.IsDir())
}

func (suite *BackendTestSuite) testDeleteFullLifecycle(t *testing.T) {
	backend := suite.newBackend(t)

	tree, err := backend.CreateTree(testContext(), 1, kvtree.NewRootAttr())
	require.NoError(t, err)

	require.NoError(t, backend.DeleteRoot(testContext(), tree))
	require.NoError(t, backend.DeleteTree(testContext(), tree.FID()))
	require.NoError(t, backend.CloseTree(tree))

	_, err = backend.OpenTree(testContext(), 1)
	assert.ErrorIs(t, err, kvtree.ErrTreeNotFound)

	// The identifier is free for reuse after a full delete.
	recreated, err := backend.CreateTree(testContext(), 1, kvtree.NewRootAttr())
	require.NoError(t, err)
	require.NoError(t, backend.CloseTree(recreated))
}

func (suite *BackendTestSuite) testDeleteResumesWithoutRoot(t *testing.T) {
	backend := suite.newBackend(t)

	tree, err := backend.CreateTree(testContext(), 1, kvtree.NewRootAttr())
	require.NoError(t, err)

	require.NoError(t, backend.DeleteRoot(testContext(), tree))

	// With the root record gone, removing it again reports it missing
	// and the tree can no longer be opened.
	err = backend.DeleteRoot(testContext(), tree)
	assert.ErrorIs(t, err, kvtree.ErrTreeNotFound)
	require.NoError(t, backend.CloseTree(tree))

	_, err = backend.OpenTree(testContext(), 1)
	assert.ErrorIs(t, err, kvtree.ErrTreeNotFound)

	// A delete interrupted here must still be able to drop the remaining
	// records by identifier alone, and repeating the drop is harmless.
	require.NoError(t, backend.DeleteTree(testContext(), 1))
	require.NoError(t, backend.DeleteTree(testContext(), 1))

	recreated, err := backend.CreateTree(testContext(), 1, kvtree.NewRootAttr())
	require.NoError(t, err)
	require.NoError(t, backend.CloseTree(recreated))
}
