package inference

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"k8s.io/klog/v2"

	"github.com/fiberseq/m6a-service/internal/metrics"
	"github.com/fiberseq/m6a-service/internal/model"
)

var tracer = otel.Tracer("github.com/fiberseq/m6a-service/internal/inference")

// Engine scores window batches with the model held by its Registry.
type Engine struct {
	registry *Registry
}

// NewEngine returns an Engine using registry.
func NewEngine(registry *Registry) *Engine {
	return &Engine{registry: registry}
}

// Registry returns the registry the engine resolves its model from.
func (e *Engine) Registry() *Registry { return e.registry }

// CheckShape returns a *ShapeMismatchError unless windows holds exactly count
// windows of model.WindowSize values.
func CheckShape(windows []float32, count int) error {
	if count < 0 || len(windows) != count*model.WindowSize {
		return &ShapeMismatchError{Count: count, Got: len(windows), Want: max(count, 0) * model.WindowSize}
	}
	return nil
}

// Predict returns P(m6A) for each of the count windows in windows, index-aligned.
// Scores are the first column of the network output, neither clamped nor calibrated.
//
// The first call loads the model for cfg; see Registry for how later
// configurations are treated.
func (e *Engine) Predict(ctx context.Context, windows []float32, count int, cfg model.Configuration) ([]float32, error) {
	if err := CheckShape(windows, count); err != nil {
		return nil, err
	}
	loaded, err := e.registry.Get(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return []float32{}, nil
	}

	_, span := tracer.Start(ctx, "inference.Predict")
	defer span.End()
	span.SetAttributes(attribute.Int("windows", count), attribute.String("model.label", loaded.Artifact.Label))

	start := time.Now()
	raw, err := loaded.Model.Forward(windows, count)
	elapsed := time.Since(start)
	metrics.RecordInferenceBatch(count)
	metrics.RecordInferenceLatency(elapsed.Seconds())
	if err == nil && len(raw) != count*OutputClasses {
		err = errors.Errorf("network returned %d values for %d windows, expected %d",
			len(raw), count, count*OutputClasses)
	}
	if err != nil {
		if !errors.Is(err, ErrForwardPass) {
			err = errors.Wrap(ErrForwardPass, err.Error())
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "forward pass failed")
		return nil, err
	}
	klog.V(2).Infof("Scored %d windows with %s CNN in %s", count, loaded.Artifact.Label, elapsed)

	// Only the probability of m6A, the first column, is kept.
	scores := make([]float32, count)
	for i := range scores {
		scores[i] = raw[i*OutputClasses]
	}
	return scores, nil
}

var (
	defaultRegistry = NewRegistry(NewLoader(LoaderOptions{}))
	defaultEngine   = NewEngine(defaultRegistry)
)

// SetDefaultLoader replaces the loader of the process-wide registry. It fails
// once the registry has started loading.
func SetDefaultLoader(loader ArtifactLoader) error {
	return defaultRegistry.SetLoader(loader)
}

// Default returns the process-wide engine.
func Default() *Engine { return defaultEngine }

// Predict scores windows with the process-wide engine.
func Predict(ctx context.Context, windows []float32, count int, cfg model.Configuration) ([]float32, error) {
	return defaultEngine.Predict(ctx, windows, count, cfg)
}
