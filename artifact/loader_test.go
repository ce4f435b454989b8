package artifact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"irisapi/ml"
)

func writeArtifact(t *testing.T, path string) {
	t.Helper()
	model := ml.NewDecisionTree(3)
	require.NoError(t, model.Train([][]float64{{1, 1, 1, 1}, {5, 5, 5, 5}}, []int{0, 2}))
	require.NoError(t, ml.SaveModel(model, path))
}

func TestEnsureLoaded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	writeArtifact(t, path)

	loader := NewLoader(path, nil)
	assert.Equal(t, StateUninitialized, loader.State())

	first, err := loader.EnsureLoaded()
	require.NoError(t, err)
	assert.Equal(t, StateLoaded, loader.State())

	// the file is read once; removing it does not affect a loaded classifier
	require.NoError(t, os.Remove(path))
	second, err := loader.EnsureLoaded()
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestEnsureLoadedNotFound(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "absent.json"), nil)

	_, err := loader.EnsureLoaded()
	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, NotFound, loadErr.Kind)
	assert.Equal(t, StateFailed, loader.State())
}

func TestEnsureLoadedCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte("dummy content"), 0o644))

	_, err := NewLoader(path, nil).EnsureLoaded()
	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, Corrupt, loadErr.Kind)
	assert.Contains(t, loadErr.Error(), "corrupt")
}

func TestFailureIsStickyUntilReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	loader := NewLoader(path, nil)

	_, err := loader.EnsureLoaded()
	require.Error(t, err)

	writeArtifact(t, path)
	_, err = loader.EnsureLoaded()
	require.Error(t, err, "failure must persist until reset")

	assert.True(t, loader.Reset())
	_, err = loader.EnsureLoaded()
	require.NoError(t, err)
	assert.False(t, loader.Reset(), "reset must not discard a loaded classifier")
}

func TestConcurrentFirstRequestsLoadOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	writeArtifact(t, path)

	loader := NewLoader(path, nil)
	var loads atomic.Int32
	loader.load = func(p string) (ml.MLModel, error) {
		loads.Add(1)
		return ml.LoadModel(p)
	}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := loader.EnsureLoaded()
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), loads.Load())
}

func TestWatchRecoversFailedLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	loader := NewLoader(path, nil)
	_, err := loader.EnsureLoaded()
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loader.Watch(ctx) }()

	// give the watcher time to register before the file appears
	time.Sleep(100 * time.Millisecond)
	writeArtifact(t, path)

	assert.Eventually(t, func() bool {
		return loader.State() == StateUninitialized
	}, 2*time.Second, 20*time.Millisecond)

	_, err = loader.EnsureLoaded()
	require.NoError(t, err)

	cancel()
	require.NoError(t, <-done)
}

func TestWatchMissingDirectory(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "nope", "model.json"), nil)
	assert.Error(t, loader.Watch(context.Background()))
}
