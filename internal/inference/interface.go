package inference

import (
	"context"

	"github.com/fiberseq/m6a-service/internal/model"
)

// Model is an executable classifier graph.
type Model interface {
	// Forward scores count windows laid out as [count, Layers, Window] and returns the
	// raw network output, OutputClasses values per window.
	Forward(windows []float32, count int) ([]float32, error)

	// Close releases the runtime resources held by the model.
	Close() error
}

// ArtifactLoader materializes an embedded artifact into a LoadedModel.
type ArtifactLoader interface {
	Load(ctx context.Context, art model.Artifact) (*LoadedModel, error)
}

// Predictor scores window batches. Engine implements it.
type Predictor interface {
	Predict(ctx context.Context, windows []float32, count int, cfg model.Configuration) ([]float32, error)
}
