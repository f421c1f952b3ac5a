package inference

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/fiberseq/m6a-service/internal/model"
)

// MockModel is a deterministic Model for tests and for running without the ONNX
// Runtime library. Each window scores sigmoid(mean(window)) as P(m6A).
type MockModel struct {
	// CallCount tracks the number of Forward calls.
	CallCount atomic.Int64

	mu     sync.Mutex
	err    error
	closed bool
}

// NewMock creates a new MockModel.
func NewMock() *MockModel {
	return &MockModel{}
}

// Forward implements Model.
func (m *MockModel) Forward(windows []float32, count int) ([]float32, error) {
	m.CallCount.Add(1)

	m.mu.Lock()
	err, closed := m.err, m.closed
	m.mu.Unlock()
	if closed {
		return nil, errors.Wrap(ErrForwardPass, "mock model is closed")
	}
	if err != nil {
		return nil, err
	}
	if len(windows) != count*model.WindowSize {
		return nil, errors.Wrapf(ErrForwardPass, "mock got %d values for %d windows", len(windows), count)
	}

	out := make([]float32, 0, count*OutputClasses)
	for i := 0; i < count; i++ {
		var sum float64
		for _, v := range windows[i*model.WindowSize : (i+1)*model.WindowSize] {
			sum += float64(v)
		}
		p := float32(1 / (1 + math.Exp(-sum/model.WindowSize)))
		out = append(out, p, 1-p)
	}
	return out, nil
}

// Close implements Model.
func (m *MockModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// SetError configures the mock to fail every following Forward call with err.
func (m *MockModel) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// ClearError clears any configured error.
func (m *MockModel) ClearError() {
	m.SetError(nil)
}

// MockLoader loads every artifact as the same MockModel.
type MockLoader struct {
	Model *MockModel
	// Loads tracks the number of Load calls.
	Loads atomic.Int64
	// Err, if set, is returned by Load.
	Err error
}

// NewMockLoader returns a MockLoader with a fresh MockModel.
func NewMockLoader() *MockLoader {
	return &MockLoader{Model: NewMock()}
}

// Load implements ArtifactLoader.
func (l *MockLoader) Load(_ context.Context, art model.Artifact) (*LoadedModel, error) {
	l.Loads.Add(1)
	if l.Err != nil {
		return nil, l.Err
	}
	return &LoadedModel{Model: l.Model, Device: DeviceCPU, Artifact: art}, nil
}

// Ensure the implementations match their interfaces at compile time.
var (
	_ Model          = (*MockModel)(nil)
	_ Model          = (*ortModel)(nil)
	_ ArtifactLoader = (*MockLoader)(nil)
	_ ArtifactLoader = (*Loader)(nil)
	_ Predictor      = (*Engine)(nil)
)
