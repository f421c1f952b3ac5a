package inference

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"k8s.io/klog/v2"

	"github.com/fiberseq/m6a-service/internal/metrics"
	"github.com/fiberseq/m6a-service/internal/model"
)

// LoadedModel is a classifier loaded into the runtime, together with what it was
// loaded from.
type LoadedModel struct {
	Model    Model
	Device   Device
	Artifact model.Artifact
	Config   model.Configuration
}

// LoaderOptions configure Loader.
type LoaderOptions struct {
	Device DeviceRequest
	// LibraryPath is the ONNX Runtime shared library; empty uses the default lookup.
	LibraryPath string
	// TempDir is where artifacts are staged; empty uses os.TempDir().
	TempDir string
}

// Loader stages embedded artifacts to a temporary file and opens them with ONNX
// Runtime, which only reads models from a path.
type Loader struct {
	opts LoaderOptions

	// initRuntime and openSession are replaced in tests.
	initRuntime func(libraryPath string) error
	openSession func(path string, device Device) (Model, error)
}

// NewLoader returns a Loader backed by ONNX Runtime.
func NewLoader(opts LoaderOptions) *Loader {
	if opts.Device == "" {
		opts.Device = DeviceAuto
	}
	return &Loader{
		opts:        opts,
		initRuntime: InitializeRuntime,
		openSession: openORTSession,
	}
}

// Load implements ArtifactLoader.
func (l *Loader) Load(ctx context.Context, art model.Artifact) (*LoadedModel, error) {
	_, span := tracer.Start(ctx, "inference.Load")
	defer span.End()
	span.SetAttributes(attribute.String("model.label", art.Label), attribute.Int("model.bytes", len(art.Bytes)))

	start := time.Now()
	loaded, err := l.load(art)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "model load failed")
		return nil, err
	}
	metrics.RecordModelLoad(art.Label, loaded.Device.String(), time.Since(start).Seconds())
	span.SetAttributes(attribute.String("model.device", loaded.Device.String()))
	return loaded, nil
}

func (l *Loader) load(art model.Artifact) (*LoadedModel, error) {
	if err := l.initRuntime(l.opts.LibraryPath); err != nil {
		return nil, err
	}
	var (
		m      Model
		device Device
	)
	err := withStagedArtifact(l.opts.TempDir, art, func(path string) error {
		var errs []string
		for _, candidate := range l.opts.Device.candidates() {
			var err error
			m, err = l.openSession(path, candidate)
			if err == nil {
				device = candidate
				return nil
			}
			klog.V(1).Infof("Unable to load %s model on %s: %v", art.Label, candidate, err)
			errs = append(errs, err.Error())
		}
		return errors.Wrapf(ErrModelDeserialization, "%s model (device %s): %s",
			art.Label, l.opts.Device, strings.Join(errs, "; "))
	})
	if err != nil {
		return nil, err
	}
	klog.Infof("Using %s for ONNX Runtime device.", device)
	return &LoadedModel{Model: m, Device: device, Artifact: art}, nil
}

// withStagedArtifact writes art to a new, uniquely named file in dir, calls fn with
// its path and removes the file before returning, whatever fn returned.
func withStagedArtifact(dir string, art model.Artifact, fn func(path string) error) error {
	f, err := os.CreateTemp(dir, "m6a-"+art.File+"-*")
	if err != nil {
		return errors.Wrapf(ErrArtifactStaging, "unable to make a temp file: %v", err)
	}
	path := f.Name()
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			klog.Warningf("Unable to remove temp model file %q: %v", path, err)
		}
	}()

	_, err = f.Write(art.Bytes)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return errors.Wrapf(ErrArtifactStaging, "unable to write model file %q: %v", path, err)
	}
	return fn(path)
}
