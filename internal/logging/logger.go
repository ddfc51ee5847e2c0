// Package logging defines the structured logger every vault component
// receives through its constructor.
//
// Arguments after the message are key-value pairs:
//
//	log.Info(ctx, "credential updated", "credential_id", id, "version", v)
//
// Values under a sensitive key (see Sensitive) are replaced with
// Redacted by the slog-backed implementation, so an accidental
// "password", pw pair never reaches the output.
package logging

import "context"

// Logger is a context-aware, structured logger.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given pairs.
	With(args ...any) Logger
}
