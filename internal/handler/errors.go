package handler

import (
	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fiberseq/m6a-service/internal/inference"
)

// grpcError maps known internal errors to appropriate gRPC status errors
func grpcError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, inference.ErrShapeMismatch):
		return status.Errorf(codes.InvalidArgument, "window shape mismatch: %v", err)

	case errors.Is(err, inference.ErrArtifactStaging), errors.Is(err, inference.ErrModelDeserialization):
		return status.Errorf(codes.FailedPrecondition, "model loading failed: %v", err)

	case errors.Is(err, inference.ErrForwardPass):
		return status.Errorf(codes.Internal, "inference execution failed: %v", err)

	default:
		return status.Errorf(codes.Internal, "internal error: %v", err)
	}
}

// invalidArgumentError creates an InvalidArgument gRPC error
func invalidArgumentError(format string, args ...any) error {
	return status.Errorf(codes.InvalidArgument, format, args...)
}

// failedPreconditionError creates a FailedPrecondition gRPC error
func failedPreconditionError(format string, args ...any) error {
	return status.Errorf(codes.FailedPrecondition, format, args...)
}
