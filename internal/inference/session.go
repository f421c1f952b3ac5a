package inference

import (
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/fiberseq/m6a-service/internal/model"
)

// Names of the graph's input and output tensors.
const (
	InputName  = "windows"
	OutputName = "probabilities"

	// OutputClasses is the width of the network output, [p_m6a, p_other] per window.
	OutputClasses = 2
)

// ortModel runs forward passes on an ONNX Runtime session. Forward may be called
// concurrently; Close waits for in-flight passes.
type ortModel struct {
	mu      sync.RWMutex
	session *ort.DynamicAdvancedSession
}

// newSessionOptions pins ONNX Runtime to a single thread: callers parallelize over
// batches themselves.
func newSessionOptions(device Device) (*ort.SessionOptions, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session options")
	}
	if err := opts.SetIntraOpNumThreads(1); err != nil {
		opts.Destroy()
		return nil, errors.Wrap(err, "failed to set intra-op threads")
	}
	if err := opts.SetInterOpNumThreads(1); err != nil {
		opts.Destroy()
		return nil, errors.Wrap(err, "failed to set inter-op threads")
	}
	if device == DeviceCUDA {
		cudaOpts, err := ort.NewCUDAProviderOptions()
		if err != nil {
			opts.Destroy()
			return nil, errors.Wrap(err, "CUDA execution provider unavailable")
		}
		defer cudaOpts.Destroy()
		if err := opts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
			opts.Destroy()
			return nil, errors.Wrap(err, "failed to append CUDA execution provider")
		}
	}
	return opts, nil
}

// openORTSession deserializes the ONNX file at path onto device.
func openORTSession(path string, device Device) (Model, error) {
	opts, err := newSessionOptions(device)
	if err != nil {
		return nil, err
	}
	defer opts.Destroy()
	session, err := ort.NewDynamicAdvancedSession(path, []string{InputName}, []string{OutputName}, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create ONNX session on %s", device)
	}
	return &ortModel{session: session}, nil
}

// Forward implements Model.
func (m *ortModel) Forward(windows []float32, count int) ([]float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil, errors.Wrap(ErrForwardPass, "session is closed")
	}

	input, err := ort.NewTensor(ort.NewShape(int64(count), model.Layers, model.Window), windows)
	if err != nil {
		return nil, errors.Wrapf(ErrForwardPass, "failed to create input tensor: %v", err)
	}
	defer input.Destroy()

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(int64(count), OutputClasses))
	if err != nil {
		return nil, errors.Wrapf(ErrForwardPass, "failed to create output tensor: %v", err)
	}
	defer output.Destroy()

	if err := m.session.Run([]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output}); err != nil {
		return nil, errors.Wrapf(ErrForwardPass, "inference failed: %v", err)
	}

	// The tensor's memory is released by Destroy.
	out := make([]float32, count*OutputClasses)
	copy(out, output.GetData())
	return out, nil
}

// Close implements Model.
func (m *ortModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	if err != nil {
		return errors.Wrap(err, "failed to destroy session")
	}
	return nil
}
