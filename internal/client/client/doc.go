// Package client is the gRPC client of the vault service.
//
// VaultClient speaks the JSON codec from package api, attaches the access
// token to protected calls through a unary interceptor and maps gRPC status
// codes to sentinel errors that callers can match with errors.Is:
// ErrUnavailable, ErrUnauthorized, ErrWrongPassword, ErrNotFound,
// ErrIntegrity and ErrInvalidArgument.
package client
