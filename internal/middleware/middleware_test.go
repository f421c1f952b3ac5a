package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/fiberseq/m6a-service/internal/metrics"
)

var info = &grpc.UnaryServerInfo{FullMethod: "/m6a.v1.Scorer/Score"}

func TestUnaryRequestIDInterceptor_GeneratesID(t *testing.T) {
	var capturedCtx context.Context
	handler := func(ctx context.Context, req any) (any, error) {
		capturedCtx = ctx
		return "response", nil
	}

	_, err := UnaryRequestIDInterceptor()(context.Background(), nil, info, handler)
	require.NoError(t, err)

	// UUID format, 36 chars with dashes.
	assert.Len(t, GetRequestID(capturedCtx), 36)
}

func TestUnaryRequestIDInterceptor_PreservesExistingID(t *testing.T) {
	existingID := "test-request-id-12345"
	var capturedCtx context.Context
	handler := func(ctx context.Context, req any) (any, error) {
		capturedCtx = ctx
		return "response", nil
	}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(RequestIDHeader, existingID))
	_, err := UnaryRequestIDInterceptor()(ctx, nil, info, handler)
	require.NoError(t, err)
	assert.Equal(t, existingID, GetRequestID(capturedCtx))
}

func TestGetRequestID_EmptyContext(t *testing.T) {
	assert.Empty(t, GetRequestID(context.Background()))
	assert.Equal(t, "abc", GetRequestID(WithRequestID(context.Background(), "abc")))
}

func TestUnaryMetricsInterceptor_RecordsCode(t *testing.T) {
	interceptor := UnaryMetricsInterceptor()
	okBefore := testutil.CollectAndCount(metrics.GRPCServerHandlingSeconds)

	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.InvalidArgument, "bad windows")
	})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return nil, errors.New("plain error")
	})
	require.Error(t, err)

	assert.GreaterOrEqual(t, testutil.CollectAndCount(metrics.GRPCServerHandlingSeconds), okBefore+2)
}
