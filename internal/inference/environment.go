package inference

import (
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"k8s.io/klog/v2"
)

var (
	muRuntime     sync.Mutex
	runtimeLoaded bool
)

// InitializeRuntime loads the ONNX Runtime shared library. An empty libraryPath
// uses the library's default lookup. Later calls are no-ops once it succeeded.
func InitializeRuntime(libraryPath string) error {
	muRuntime.Lock()
	defer muRuntime.Unlock()
	if runtimeLoaded {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrapf(ErrModelDeserialization, "failed to initialize ONNX environment: %v", err)
	}
	runtimeLoaded = true
	klog.V(1).Infof("ONNX Runtime environment initialized (library %q)", libraryPath)
	return nil
}

// DestroyRuntime releases the ONNX Runtime environment. Models loaded before must
// not be used afterwards.
func DestroyRuntime() error {
	muRuntime.Lock()
	defer muRuntime.Unlock()
	if !runtimeLoaded {
		return nil
	}
	runtimeLoaded = false
	return ort.DestroyEnvironment()
}
