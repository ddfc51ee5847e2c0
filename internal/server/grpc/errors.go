package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/server/services"
)

// toStatus maps engine errors onto gRPC status codes. Validation messages
// name the field only, so they are safe to return. Unknown errors are
// logged and reported as a bare internal error.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, common.ErrVersionConflict):
		return status.Error(codes.Aborted, "version conflict")
	case errors.Is(err, common.ErrDecryption):
		return status.Error(codes.PermissionDenied, "wrong master password")
	case errors.Is(err, common.ErrInvalidCode):
		return status.Error(codes.PermissionDenied, "invalid code")
	case errors.Is(err, common.ErrIntegrity):
		return status.Error(codes.DataLoss, "integrity check failed")
	case errors.Is(err, services.ErrNoArchiveStore):
		return status.Error(codes.FailedPrecondition, "archive store is not configured")
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	}

	s.logger.Error(ctx, "internal error", "error", err)
	return status.Error(codes.Internal, "internal error")
}
