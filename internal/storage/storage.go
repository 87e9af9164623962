// Package storage resolves dataset and index locations on the shared
// storage tree. It owns no index state: the lifecycle manager drives
// all writes, and this package only resolves paths, enumerates what is
// on disk, and performs the atomic staging-to-canonical publish.
package storage

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/convsearch/convdex/internal/errors"
	"github.com/convsearch/convdex/internal/registry"
)

// Manager resolves storage locations. It is passed explicitly to the
// components that need it so tests can substitute their own tree.
type Manager interface {
	// ResolveDatasetPath returns the absolute raw corpus path for the
	// descriptor, failing with a missing-path error if it does not exist.
	ResolveDatasetPath(d registry.Descriptor) (string, error)

	// ResolveIndexPath returns the absolute canonical index path. The
	// index itself may not exist yet; its parent directory must.
	ResolveIndexPath(d registry.Descriptor) (string, error)

	// StagingDir returns the staging directory for a dataset's build.
	// It lives beside the canonical index path so the final rename
	// stays on one filesystem.
	StagingDir(d registry.Descriptor) (string, error)

	// ListDatasets enumerates dataset subdirectories under the storage
	// root. It never auto-registers anything and never caches: storage
	// is the source of truth.
	ListDatasets() ([]string, error)

	// Publish atomically replaces the canonical index directory with
	// the staged one.
	Publish(stagingDir, indexPath string) error

	// RemoveIndex deletes the canonical index directory and sidecar
	// artifacts for the descriptor.
	RemoveIndex(d registry.Descriptor) error
}

// DirManager is the filesystem-backed Manager. Relative descriptor
// paths are resolved against the storage root.
type DirManager struct {
	root string
}

// NewDirManager creates a manager rooted at the given directory.
func NewDirManager(root string) (*DirManager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.MissingPath(root, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, errors.MissingPath(abs, err)
	}
	return &DirManager{root: abs}, nil
}

// Root returns the absolute storage root.
func (m *DirManager) Root() string { return m.root }

func (m *DirManager) abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(m.root, path)
}

// ResolveDatasetPath implements Manager.
func (m *DirManager) ResolveDatasetPath(d registry.Descriptor) (string, error) {
	path := m.abs(d.RawPath)
	if _, err := os.Stat(path); err != nil {
		return "", errors.MissingPath(path, err).WithDataset(d.Name)
	}
	return path, nil
}

// ResolveIndexPath implements Manager. The parent directory is created
// on demand: a dataset's first build must not fail just because the
// index tree has not been laid out yet.
func (m *DirManager) ResolveIndexPath(d registry.Descriptor) (string, error) {
	path := m.abs(d.IndexPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errors.MissingPath(filepath.Dir(path), err).WithDataset(d.Name)
	}
	return path, nil
}

// StagingDir implements Manager.
func (m *DirManager) StagingDir(d registry.Descriptor) (string, error) {
	indexPath, err := m.ResolveIndexPath(d)
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(indexPath), "."+filepath.Base(indexPath)+".staging"), nil
}

// ListDatasets implements Manager.
func (m *DirManager) ListDatasets() ([]string, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, errors.MissingPath(m.root, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Publish implements Manager. The old index, if any, is moved aside
// first so a crash mid-publish leaves either the old or the new index
// complete, never a mix.
func (m *DirManager) Publish(stagingDir, indexPath string) error {
	if _, err := os.Stat(stagingDir); err != nil {
		return errors.MissingPath(stagingDir, err)
	}

	old := indexPath + ".old"
	_ = os.RemoveAll(old)
	if _, err := os.Stat(indexPath); err == nil {
		if err := os.Rename(indexPath, old); err != nil {
			return errors.Wrap(errors.ErrCodeMissingPath, err)
		}
	}
	if err := os.Rename(stagingDir, indexPath); err != nil {
		// Restore the previous index if the swap failed.
		if _, statErr := os.Stat(old); statErr == nil {
			_ = os.Rename(old, indexPath)
		}
		return errors.Wrap(errors.ErrCodeMissingPath, err)
	}
	_ = os.RemoveAll(old)
	return nil
}

// RemoveIndex implements Manager.
func (m *DirManager) RemoveIndex(d registry.Descriptor) error {
	path := m.abs(d.IndexPath)
	if err := os.RemoveAll(path); err != nil {
		return errors.Wrap(errors.ErrCodeMissingPath, err).WithDataset(d.Name)
	}
	_ = os.RemoveAll(path + ".old")
	return nil
}
