package middleware

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"k8s.io/klog/v2"

	"github.com/fiberseq/m6a-service/internal/metrics"
)

// UnaryMetricsInterceptor records the latency of every unary call by method and
// status code, and logs failed calls.
func UnaryMetricsInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		elapsed := time.Since(start)

		// status.Code maps non-status errors to Unknown.
		code := status.Code(err).String()
		metrics.RecordGRPCLatency(info.FullMethod, code, elapsed.Seconds())
		if err != nil {
			klog.V(1).Infof("[%s] %s failed with %s after %s", GetRequestID(ctx), info.FullMethod, code, elapsed)
		}
		return resp, err
	}
}
