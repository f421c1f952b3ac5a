package inference

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/fiberseq/m6a-service/internal/model"
)

var cfg22Full = model.Configuration{Chemistry: model.Chemistry2_2}

func TestRegistryLoadsOnceConcurrently(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	loader := NewMockLoader()
	registry := NewRegistry(loader)

	const goroutines, calls = 16, 50
	results := make([][]*LoadedModel, goroutines)
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < calls; i++ {
				loaded, err := registry.Get(context.Background(), cfg22Full)
				if err != nil {
					t.Errorf("Get failed: %v", err)
					return
				}
				results[g] = append(results[g], loaded)
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, int64(1), loader.Loads.Load())
	assert.Equal(t, 1, registry.Loads())
	first := results[0][0]
	for _, perGoroutine := range results {
		require.Len(t, perGoroutine, calls)
		for _, loaded := range perGoroutine {
			assert.Same(t, first, loaded)
		}
	}
	assert.Equal(t, "2.2 full", first.Artifact.Label)
	assert.Equal(t, cfg22Full, first.Config)
}

func TestRegistryKeepsFirstConfiguration(t *testing.T) {
	registry := NewRegistry(NewMockLoader())
	first, err := registry.Get(context.Background(), model.Configuration{Chemistry: model.ChemistryRevio, Semi: true})
	require.NoError(t, err)
	second, err := registry.Get(context.Background(), model.Configuration{Chemistry: model.Chemistry2_0})
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, "Revio semi", second.Artifact.Label)
}

func TestRegistryFailureIsNotRetried(t *testing.T) {
	loader := NewMockLoader()
	loader.Err = errors.Wrap(ErrModelDeserialization, "corrupt artifact")
	registry := NewRegistry(loader)

	for i := 0; i < 3; i++ {
		_, err := registry.Get(context.Background(), cfg22Full)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrModelDeserialization))
	}
	assert.Equal(t, int64(1), loader.Loads.Load())
	_, ok := registry.Loaded()
	assert.False(t, ok)
}

// loaderFunc adapts a function to ArtifactLoader.
type loaderFunc func(ctx context.Context, art model.Artifact) (*LoadedModel, error)

func (f loaderFunc) Load(ctx context.Context, art model.Artifact) (*LoadedModel, error) {
	return f(ctx, art)
}

func TestRegistryRejectsInvalidChemistryWithoutLoading(t *testing.T) {
	loader := NewMockLoader()
	registry := NewRegistry(loader)

	_, err := registry.Get(context.Background(), model.Configuration{Chemistry: model.Chemistry(7)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid chemistry 7")
	assert.Equal(t, 0, registry.Loads())

	loaded, err := registry.Get(context.Background(), cfg22Full)
	require.NoError(t, err)
	assert.Equal(t, "2.2 full", loaded.Artifact.Label)
	assert.Equal(t, int64(1), loader.Loads.Load())
}

func TestRegistryIncompleteLoadFailsLaterCallers(t *testing.T) {
	for name, load := range map[string]loaderFunc{
		"panic": func(context.Context, model.Artifact) (*LoadedModel, error) {
			panic("loader exploded")
		},
		"nil model": func(context.Context, model.Artifact) (*LoadedModel, error) {
			return nil, nil
		},
	} {
		t.Run(name, func(t *testing.T) {
			registry := NewRegistry(load)
			first := func() { _, _ = registry.Get(context.Background(), cfg22Full) }
			if name == "panic" {
				assert.Panics(t, first)
			} else {
				first()
			}

			for i := 0; i < 2; i++ {
				_, err := registry.Get(context.Background(), cfg22Full)
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrModelDeserialization), "got %v", err)
			}
			assert.Equal(t, 1, registry.Loads())
			_, ok := registry.Loaded()
			assert.False(t, ok)
		})
	}
}

func TestRegistrySetLoaderAfterLoadFails(t *testing.T) {
	first := NewMockLoader()
	registry := NewRegistry(NewMockLoader())
	require.NoError(t, registry.SetLoader(first))

	_, err := registry.Get(context.Background(), cfg22Full)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Loads.Load())

	second := NewMockLoader()
	assert.Error(t, registry.SetLoader(second))
	_, err = registry.Get(context.Background(), cfg22Full)
	require.NoError(t, err)
	assert.Equal(t, int64(0), second.Loads.Load())
}

func TestRegistryLoadedDoesNotLoad(t *testing.T) {
	loader := NewMockLoader()
	registry := NewRegistry(loader)
	_, ok := registry.Loaded()
	assert.False(t, ok)
	assert.Equal(t, int64(0), loader.Loads.Load())

	_, err := registry.Get(context.Background(), cfg22Full)
	require.NoError(t, err)
	loaded, ok := registry.Loaded()
	require.True(t, ok)
	assert.Equal(t, DeviceCPU, loaded.Device)

	require.NoError(t, registry.Close())
	_, err = loaded.Model.Forward(make([]float32, model.WindowSize), 1)
	assert.True(t, errors.Is(err, ErrForwardPass))
}
