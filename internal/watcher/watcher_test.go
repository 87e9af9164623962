package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convsearch/convdex/internal/registry"
	"github.com/convsearch/convdex/internal/storage"
)

func setupWatched(t *testing.T) (*registry.Registry, *storage.DirManager, string) {
	t.Helper()
	root := t.TempDir()
	corpusDir := filepath.Join(root, "toy", "collection")
	require.NoError(t, os.MkdirAll(corpusDir, 0o755))

	reg := registry.New()
	require.NoError(t, reg.Register(registry.Descriptor{
		Name:      "toy",
		Family:    registry.FamilyPassage,
		RawPath:   filepath.Join("toy", "collection"),
		IndexPath: filepath.Join("toy", "index"),
	}))

	store, err := storage.NewDirManager(root)
	require.NoError(t, err)
	return reg, store, corpusDir
}

func TestWatcherReportsChangedDataset(t *testing.T) {
	reg, store, corpusDir := setupWatched(t)

	var mu sync.Mutex
	changed := make(map[string]int)

	w, err := New(Config{
		Registry: reg,
		Storage:  store,
		Debounce: 100 * time.Millisecond,
		OnChange: func(name string) {
			mu.Lock()
			changed[name]++
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	// A burst of writes debounces into a single notification.
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(corpusDir, "corpus.jsonl"), []byte("{}"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return changed["toy"] > 0
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	assert.Equal(t, 1, changed["toy"])
	mu.Unlock()
}

func TestWatcherRequiresOnChange(t *testing.T) {
	reg, store, _ := setupWatched(t)

	_, err := New(Config{
		Registry: reg,
		Storage:  store,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OnChange")
}

func TestWatcherSkipsMissingCorpus(t *testing.T) {
	reg, store, _ := setupWatched(t)
	require.NoError(t, reg.Register(registry.Descriptor{
		Name:    "ghost",
		RawPath: "ghost/collection",
	}))

	w, err := New(Config{
		Registry: reg,
		Storage:  store,
		OnChange: func(string) {},
	})
	require.NoError(t, err)

	// Only the resolvable dataset is watched.
	assert.Len(t, w.roots, 1)

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	cancel()
	w.Wait()
}
