package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/encoding/protojson"
	"k8s.io/klog/v2"

	"github.com/fiberseq/m6a-service/internal/batch"
	"github.com/fiberseq/m6a-service/internal/cache"
	"github.com/fiberseq/m6a-service/internal/handler"
	"github.com/fiberseq/m6a-service/internal/inference"
	"github.com/fiberseq/m6a-service/internal/metrics"
	grpcmw "github.com/fiberseq/m6a-service/internal/middleware"
	"github.com/fiberseq/m6a-service/internal/model"
	"github.com/fiberseq/m6a-service/internal/scorepb"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC Scorer service",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.Int("port", 50051, "gRPC server port")
	f.Int("metrics-port", 9100, "Prometheus metrics and health port")
	f.String("redis", "", "Redis address of the score cache (disabled when empty)")
	f.Duration("cache-ttl", cache.DefaultTTL, "Expiration of cached scores")
	f.Bool("otel-enabled", false, "Enable OpenTelemetry tracing")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, mc, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	klog.Infof("Starting %s...", serviceName)
	klog.Infof("Configuration: chemistry=%s, semi=%v, device=%s, port=%d, metrics=%d, redis=%q, otel=%v",
		mc.Chemistry.Label(), mc.Semi, cfg.Device, cfg.Port, cfg.MetricsPort, cfg.Redis, cfg.OTELEnabled)

	// Initialize OpenTelemetry tracer
	var tracerShutdown func(context.Context) error
	if cfg.OTELEnabled {
		tracerShutdown, err = initTracer(cfg.OTELEndpoint)
		if err != nil {
			klog.Warningf("Failed to initialize tracer: %v", err)
		} else {
			klog.Infof("OpenTelemetry tracing enabled (endpoint: %q)", cfg.OTELEndpoint)
		}
	}

	ctx := cmd.Context()
	engine := setupEngine(ctx, cfg, mc)
	defer releaseEngine(engine)
	table, err := model.PrecisionTableFor(mc)
	if err != nil {
		klog.Fatalf("Embedded precision table is corrupt: %+v", err)
	}

	// Initialize Redis cache (optional)
	var scoreCache *cache.Cache
	if cfg.Redis != "" {
		klog.Infof("Connecting to Redis at %s...", cfg.Redis)
		scoreCache, err = cache.New(ctx, cfg.Redis, cfg.CacheTTL)
		if err != nil {
			klog.Warningf("Failed to connect to Redis: %v (continuing without cache)", err)
		} else {
			defer scoreCache.Close()
		}
	}

	healthServer := health.NewServer()
	httpServer := startHTTPServer(cfg.MetricsPort, healthServer, engine.Registry())

	interceptors := []grpc.UnaryServerInterceptor{
		grpcmw.UnaryRequestIDInterceptor(),
		grpcmw.UnaryMetricsInterceptor(),
	}
	if cfg.OTELEnabled {
		interceptors = append(interceptors, otelgrpc.UnaryServerInterceptor())
	}
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))

	scorer := batch.New(engine, mc, cfg.BatchSize, cfg.Workers)
	scorepb.RegisterScorerServer(grpcServer, handler.New(scorer, table, scoreCache))
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	addr := fmt.Sprintf(":%d", cfg.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", addr)
	}

	healthServer.SetServingStatus(scorepb.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	metrics.SetHealthy()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		klog.Infof("Received signal %v, shutting down gracefully...", sig)

		healthServer.SetServingStatus(scorepb.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		metrics.SetUnhealthy()

		// Give time for load balancers to detect unhealthy status
		time.Sleep(5 * time.Second)
		grpcServer.GracefulStop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			klog.Warningf("HTTP server shutdown: %v", err)
		}
		if tracerShutdown != nil {
			if err := tracerShutdown(shutdownCtx); err != nil {
				klog.Warningf("Tracer shutdown: %v", err)
			}
		}
	}()

	klog.Infof("gRPC server listening on %s", addr)
	if err := grpcServer.Serve(lis); err != nil {
		return errors.Wrap(err, "failed to serve")
	}
	klog.Info("Server shutdown complete")
	return nil
}

// newHTTPRouter serves /metrics, /healthz (gRPC health as JSON) and /readyz (the
// model is loaded).
func newHTTPRouter(healthServer *health.Server, registry *inference.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp, err := healthServer.Check(r.Context(), &healthpb.HealthCheckRequest{})
		if err != nil {
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}
		body, err := protojson.Marshal(resp)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if resp.Status != healthpb.HealthCheckResponse_SERVING {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_, _ = w.Write(body)
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		loaded, ok := registry.Loaded()
		if !ok {
			http.Error(w, "Not Ready", http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprintf(w, "Ready: %s on %s\n", loaded.Artifact.Label, loaded.Device)
	})
	return r
}

func startHTTPServer(port int, healthServer *health.Server, registry *inference.Registry) *http.Server {
	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{
		Addr:              addr,
		Handler:           newHTTPRouter(healthServer, registry),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		klog.Infof("HTTP server listening on %s (metrics, health)", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			klog.Errorf("HTTP server error: %v", err)
		}
	}()

	return server
}

func initTracer(endpoint string) (func(context.Context) error, error) {
	// Spans go to stdout; an OTLP exporter would use endpoint.
	if endpoint != "" {
		klog.Infof("Using stdout trace exporter (OTLP endpoint %s not wired)", endpoint)
	}
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, errors.Wrap(err, "failed to create trace exporter")
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create resource")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
