package inference

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiberseq/m6a-service/internal/model"
)

// newONNXEngine returns an engine on the real ONNX Runtime, or skips the test when
// the shared library isn't available. ONNXRUNTIME_LIB may point to it.
func newONNXEngine(t *testing.T) *Engine {
	if err := InitializeRuntime(os.Getenv("ONNXRUNTIME_LIB")); err != nil {
		t.Skipf("Skipping ONNX Runtime test: %v", err)
	}
	registry := NewRegistry(NewLoader(LoaderOptions{Device: DeviceRequestCPU, TempDir: t.TempDir()}))
	t.Cleanup(func() { _ = registry.Close() })
	return NewEngine(registry)
}

func TestONNXZeroWindow(t *testing.T) {
	engine := newONNXEngine(t)
	scores, err := engine.Predict(context.Background(), make([]float32, model.WindowSize), 1, cfg22Full)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.GreaterOrEqual(t, scores[0], float32(0))
	assert.LessOrEqual(t, scores[0], float32(1))
}

func TestONNXEveryArtifactLoads(t *testing.T) {
	if err := InitializeRuntime(os.Getenv("ONNXRUNTIME_LIB")); err != nil {
		t.Skipf("Skipping ONNX Runtime test: %v", err)
	}
	loader := NewLoader(LoaderOptions{Device: DeviceRequestCPU, TempDir: t.TempDir()})
	for _, art := range model.Artifacts() {
		loaded, err := loader.Load(context.Background(), art)
		require.NoError(t, err, art.Label)
		out, err := loaded.Model.Forward(make([]float32, 2*model.WindowSize), 2)
		require.NoError(t, err, art.Label)
		assert.Len(t, out, 2*OutputClasses)
		// Softmax output.
		assert.InDelta(t, 1, out[0]+out[1], 1e-5)
		require.NoError(t, loaded.Model.Close())
	}
}

func TestONNXBatchDeterministic(t *testing.T) {
	engine := newONNXEngine(t)
	const count = 100
	windows := make([]float32, count*model.WindowSize)
	for i := range windows {
		windows[i] = float32(i%13) / 13
	}
	first, err := engine.Predict(context.Background(), windows, count, cfg22Full)
	require.NoError(t, err)
	require.Len(t, first, count)
	again, err := engine.Predict(context.Background(), windows, count, cfg22Full)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 1, engine.Registry().Loads())
}

func TestDestroyRuntimeWithoutEnvironment(t *testing.T) {
	muRuntime.Lock()
	loaded := runtimeLoaded
	muRuntime.Unlock()
	if loaded {
		t.Skip("ONNX Runtime environment already initialized by another test")
	}
	assert.NoError(t, DestroyRuntime())
}

func TestONNXRuntimeDestroyAndReinitialize(t *testing.T) {
	lib := os.Getenv("ONNXRUNTIME_LIB")
	if err := InitializeRuntime(lib); err != nil {
		t.Skipf("Skipping ONNX Runtime test: %v", err)
	}
	require.NoError(t, DestroyRuntime())
	// A second destroy is a no-op.
	require.NoError(t, DestroyRuntime())
	require.NoError(t, InitializeRuntime(lib))

	engine := newONNXEngine(t)
	scores, err := engine.Predict(context.Background(), make([]float32, model.WindowSize), 1, cfg22Full)
	require.NoError(t, err)
	assert.Len(t, scores, 1)
}
