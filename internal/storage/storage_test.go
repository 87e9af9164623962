package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convsearch/convdex/internal/errors"
	"github.com/convsearch/convdex/internal/registry"
)

func setupTree(t *testing.T) (*DirManager, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "ikat", "collection"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "inscit"), 0o755))

	m, err := NewDirManager(root)
	require.NoError(t, err)
	return m, root
}

func TestNewDirManagerMissingRoot(t *testing.T) {
	_, err := NewDirManager(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.True(t, errors.IsMissingPath(err))
}

func TestResolveDatasetPath(t *testing.T) {
	m, root := setupTree(t)
	d := registry.Descriptor{Name: "ikat", RawPath: "ikat/collection"}

	path, err := m.ResolveDatasetPath(d)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "ikat", "collection"), path)

	d.RawPath = "ikat/missing"
	_, err = m.ResolveDatasetPath(d)
	require.Error(t, err)
	assert.True(t, errors.IsMissingPath(err))
}

func TestResolveIndexPathCreatesParent(t *testing.T) {
	m, root := setupTree(t)
	d := registry.Descriptor{Name: "ikat", IndexPath: "ikat/index/bm25"}

	path, err := m.ResolveIndexPath(d)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "ikat", "index", "bm25"), path)

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestStagingDirBesideIndex(t *testing.T) {
	m, root := setupTree(t)
	d := registry.Descriptor{Name: "ikat", IndexPath: "ikat/index/bm25"}

	staging, err := m.StagingDir(d)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "ikat", "index", ".bm25.staging"), staging)
}

func TestListDatasets(t *testing.T) {
	m, root := setupTree(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".staging"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))

	names, err := m.ListDatasets()
	require.NoError(t, err)
	// Sorted, directories only, hidden entries skipped.
	assert.Equal(t, []string{"ikat", "inscit"}, names)
}

func TestPublishReplacesAtomically(t *testing.T) {
	m, root := setupTree(t)
	indexPath := filepath.Join(root, "ikat", "index", "bm25")
	require.NoError(t, os.MkdirAll(indexPath, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(indexPath, "old.seg"), []byte("old"), 0o644))

	staging := filepath.Join(root, "ikat", "index", ".bm25.staging")
	require.NoError(t, os.MkdirAll(staging, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(staging, "new.seg"), []byte("new"), 0o644))

	require.NoError(t, m.Publish(staging, indexPath))

	_, err := os.Stat(filepath.Join(indexPath, "new.seg"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(indexPath, "old.seg"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(staging)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(indexPath + ".old")
	assert.True(t, os.IsNotExist(err))
}

func TestPublishMissingStaging(t *testing.T) {
	m, root := setupTree(t)
	err := m.Publish(filepath.Join(root, "nope"), filepath.Join(root, "ikat", "index"))
	require.Error(t, err)
	assert.True(t, errors.IsMissingPath(err))
}

func TestRemoveIndex(t *testing.T) {
	m, root := setupTree(t)
	d := registry.Descriptor{Name: "ikat", IndexPath: "ikat/index/bm25"}
	indexPath := filepath.Join(root, "ikat", "index", "bm25")
	require.NoError(t, os.MkdirAll(indexPath, 0o755))

	require.NoError(t, m.RemoveIndex(d))
	_, err := os.Stat(indexPath)
	assert.True(t, os.IsNotExist(err))
}

func TestCheckDiskSpace(t *testing.T) {
	// A temp dir on any sane CI machine has 500MB free.
	require.NoError(t, CheckDiskSpace(t.TempDir()))

	err := CheckDiskSpace(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}
