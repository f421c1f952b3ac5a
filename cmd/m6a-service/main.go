// m6a-service scores m6A feature windows with the embedded CNN classifiers.
//
// Subcommands:
//
//	serve     gRPC Scorer service, with Prometheus metrics and health endpoints over HTTP
//	predict   score little-endian float32 windows read from a file or stdin
//	tables    validate and summarize the embedded precision tables
package main

import (
	"context"
	"flag"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/fiberseq/m6a-service/internal/config"
	"github.com/fiberseq/m6a-service/internal/inference"
	"github.com/fiberseq/m6a-service/internal/model"
)

const serviceName = "m6a-service"

var configFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Score m6A feature windows with the embedded CNN classifiers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	root.PersistentFlags().AddGoFlagSet(klogFlags)

	pf := root.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Path to config file (optional)")
	pf.String("chemistry", "2.2", "Sequencing chemistry: 2.0, 2.2 or revio")
	pf.Bool("semi", false, "Use the semi-supervised CNN")
	pf.String("device", string(inference.DeviceAuto), "ONNX Runtime device: auto, cpu or cuda")
	pf.String("onnxruntime-lib", "", "Path to the ONNX Runtime shared library")
	pf.Int("batch-size", 1024, "Windows per forward pass")
	pf.Int("workers", 0, "Concurrent forward passes (default: number of CPUs)")
	pf.Bool("use-mock-inference", false, "Use a deterministic mock model instead of ONNX Runtime (for testing)")

	root.AddCommand(newServeCmd(), newPredictCmd(), newTablesCmd())
	return root
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		klog.Exitf("%s: %v", serviceName, err)
	}
}

// loadConfig reads the merged configuration of cmd and validates it.
func loadConfig(cmd *cobra.Command) (*config.Config, model.Configuration, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, model.Configuration{}, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, model.Configuration{}, errors.WithMessage(err, "invalid configuration")
	}
	mc, err := cfg.ModelConfig()
	return cfg, mc, err
}

// setupEngine points the process-wide registry at ONNX Runtime, or at the mock
// model, and loads the classifier. Load failures are fatal.
func setupEngine(ctx context.Context, cfg *config.Config, mc model.Configuration) *inference.Engine {
	var loader inference.ArtifactLoader
	if cfg.UseMockInference {
		klog.Info("Using mock inference engine")
		loader = inference.NewMockLoader()
	} else {
		opts, err := cfg.LoaderOptions()
		if err != nil {
			klog.Fatalf("Invalid loader options: %v", err)
		}
		loader = inference.NewLoader(opts)
	}
	if err := inference.SetDefaultLoader(loader); err != nil {
		klog.Warningf("Keeping the current model loader: %v", err)
	}
	engine := inference.Default()
	loaded, err := engine.Registry().Get(ctx, mc)
	if err != nil {
		klog.Fatalf("Unable to load CNN model: %+v", err)
	}
	klog.Infof("CNN model %q ready on %s", loaded.Artifact.Label, loaded.Device)
	return engine
}

// releaseEngine closes the loaded model and then the ONNX Runtime environment, in
// that order.
func releaseEngine(engine *inference.Engine) {
	if err := engine.Registry().Close(); err != nil {
		klog.Warningf("Failed to release model: %v", err)
	}
	if err := inference.DestroyRuntime(); err != nil {
		klog.Warningf("Failed to destroy ONNX Runtime environment: %v", err)
	}
}
