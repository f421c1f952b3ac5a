package inference

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/fiberseq/m6a-service/internal/model"
)

// Registry holds the one classifier of the process. The first Get loads it with the
// configuration it was given; every later Get, concurrent or not, returns that same
// model, even when asked for a different configuration.
//
// A process needing several chemistries at once would need a registry keyed by
// model.Configuration; this one deliberately isn't.
type Registry struct {
	mu      sync.Mutex
	loader  ArtifactLoader
	started bool

	once   sync.Once
	loaded *LoadedModel
	err    error

	// ready is set once loaded is, for readers that must not trigger a load.
	ready    atomic.Pointer[LoadedModel]
	loads    atomic.Int32
	mismatch sync.Once
}

// NewRegistry returns an empty registry that loads through loader.
func NewRegistry(loader ArtifactLoader) *Registry {
	return &Registry{loader: loader}
}

// Get returns the registry's model, loading it on first use. A failed load is not
// retried: the same error is returned to every caller. A configuration outside the
// enum is rejected before the load is attempted.
func (r *Registry) Get(ctx context.Context, cfg model.Configuration) (*LoadedModel, error) {
	if !cfg.Chemistry.IsAChemistry() {
		return nil, errors.Errorf("invalid chemistry %d", int(cfg.Chemistry))
	}
	r.once.Do(func() {
		// A loader that panics or returns no model must not leave r half set.
		defer func() {
			if r.loaded == nil && r.err == nil {
				r.err = errors.Wrap(ErrModelDeserialization, "model load did not complete")
			}
		}()
		r.mu.Lock()
		r.started = true
		loader := r.loader
		r.mu.Unlock()

		r.loads.Add(1)
		art := model.Select(cfg)
		loaded, err := loader.Load(ctx, art)
		if err != nil {
			r.err = err
			return
		}
		if loaded == nil || loaded.Model == nil {
			return
		}
		loaded.Config = cfg
		r.loaded = loaded
		r.ready.Store(loaded)
	})
	if r.err != nil {
		return nil, r.err
	}
	if cfg != r.loaded.Config {
		r.mismatch.Do(func() {
			klog.Warningf("Requested %s %s CNN, but the process already loaded %q for %s %s; using the loaded model",
				cfg.Chemistry.Label(), cfg.Mode(), r.loaded.Artifact.Label,
				r.loaded.Config.Chemistry.Label(), r.loaded.Config.Mode())
		})
	}
	return r.loaded, nil
}

// SetLoader replaces the loader. It fails once the first Get has started loading.
func (r *Registry) SetLoader(loader ArtifactLoader) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New("model loading already started, the loader can no longer change")
	}
	r.loader = loader
	return nil
}

// Loaded returns the model if it was already loaded successfully, without loading.
func (r *Registry) Loaded() (*LoadedModel, bool) {
	loaded := r.ready.Load()
	return loaded, loaded != nil
}

// Loads returns how many times the load sequence ran; at most 1.
func (r *Registry) Loads() int { return int(r.loads.Load()) }

// Close releases the loaded model, if any. The registry is unusable afterwards.
func (r *Registry) Close() error {
	if loaded, ok := r.Loaded(); ok {
		return loaded.Model.Close()
	}
	return nil
}
