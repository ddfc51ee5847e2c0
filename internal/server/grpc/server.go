// Package grpc exposes the vault engine over gRPC. Messages are carried by
// the JSON codec from package api; callers select it with
// grpc.CallContentSubtype(api.CodecName).
package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/gophvault/internal/api"
	"github.com/dmitrijs2005/gophvault/internal/archive"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/breach"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/services"
)

type credentialService interface {
	Create(ctx context.Context, userID, masterPassword string, in services.CredentialInput) (*services.CredentialSummary, error)
	Update(ctx context.Context, userID, masterPassword, credentialID string, expectedVersion int64, in services.CredentialInput) (*services.CredentialSummary, error)
	Reveal(ctx context.Context, userID, masterPassword, credentialID string) (*services.RevealedCredential, error)
	Delete(ctx context.Context, userID, credentialID string) error
	List(ctx context.Context, userID string) ([]*services.CredentialSummary, error)
	ListDeleted(ctx context.Context, userID string) ([]*services.CredentialSummary, error)
}

type ledgerService interface {
	List(ctx context.Context, userID, credentialID string) ([]*models.CredentialSnapshot, error)
	Reveal(ctx context.Context, userID, masterPassword, credentialID string, version int64) (*models.Secrets, error)
	Restore(ctx context.Context, userID, masterPassword, credentialID string, targetVersion int64) (*services.CredentialSummary, error)
}

type backupService interface {
	CreateBackup(ctx context.Context, userID, masterPassword string) (*archive.Archive, error)
	Validate(a *archive.Archive) services.ValidationResult
	RestoreBackup(ctx context.Context, a *archive.Archive, userID, masterPassword string) (*services.RestoreSummary, error)
	Export(ctx context.Context, userID, masterPassword string) (string, error)
	Import(ctx context.Context, userID, masterPassword, key string) (*services.RestoreSummary, error)
	ShareURL(ctx context.Context, userID, key string) (string, error)
}

type twoFactorService interface {
	Enroll(ctx context.Context, userID string) (*services.Enrollment, error)
	EncryptAndStore(ctx context.Context, userID, masterPassword, secret string) ([]string, error)
	ConfirmEnrollment(ctx context.Context, userID, masterPassword, code string) error
	VerifyCode(ctx context.Context, userID, masterPassword, code string, window uint) (bool, error)
	ConsumeRecoveryCode(ctx context.Context, userID, masterPassword, code string) (*services.RecoveryResult, error)
	RegenerateRecoveryCodes(ctx context.Context, userID, masterPassword string) ([]string, error)
	Disable(ctx context.Context, userID, masterPassword, code string) error
	Status(ctx context.Context, userID string) (enabled, verified bool, err error)
}

type breachChecker interface {
	CheckMany(ctx context.Context, passwords []string) []breach.Result
}

// Services bundles the engine components the server dispatches to.
type Services struct {
	Credentials credentialService
	Ledger      ledgerService
	Backup      backupService
	TwoFactor   twoFactorService
	Breach      breachChecker
}

type GRPCServer struct {
	address   string
	svc       Services
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, svc Services, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		svc:       svc,
		jwtSecret: []byte(secretKey),
	}
}

// newServer builds a gRPC server with the vault and health services
// registered.
func (s *GRPCServer) newServer() (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))

	srv.RegisterService(&vaultServiceDesc, s)

	hs := health.NewServer()
	hs.SetServingStatus(api.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	return srv, hs
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv, hs := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		hs.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
