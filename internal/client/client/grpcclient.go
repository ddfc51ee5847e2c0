package client

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/gophvault/internal/api"
	"github.com/dmitrijs2005/gophvault/internal/common"
)

type VaultClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	cc          grpc.ClientConnInterface
	health      healthpb.HealthClient
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *VaultClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if s.accessToken != "" {
		ctx = withAccessToken(ctx, s.accessToken)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// NewVaultClient prepares a connection to endpointURL. The connection is
// established lazily on the first call.
func NewVaultClient(endpointURL, accessToken string, opts ...grpc.DialOption) (*VaultClient, error) {
	c := &VaultClient{endpointURL: endpointURL, accessToken: accessToken}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(api.CodecName)),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.cc = conn
	c.health = healthpb.NewHealthClient(conn)
	return c, nil
}

func (s *VaultClient) Close() error {
	return s.conn.Close()
}

func (s *VaultClient) call(ctx context.Context, method string, req, resp any) error {
	if err := s.cc.Invoke(ctx, api.FullMethod(method), req, resp); err != nil {
		return s.mapError(err)
	}
	return nil
}

// Ping asks the health service whether the vault service is serving.
func (s *VaultClient) Ping(ctx context.Context) error {
	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: api.ServiceName}, grpc.CallContentSubtype("proto"))
	if err != nil {
		return s.mapError(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return ErrUnavailable
	}
	return nil
}

func (s *VaultClient) CheckBreach(ctx context.Context, passwords ...string) ([]api.BreachResult, error) {
	var resp api.CheckBreachResponse
	if err := s.call(ctx, api.MethodCheckBreach, &api.CheckBreachRequest{Passwords: passwords}, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (s *VaultClient) ValidateBackup(ctx context.Context, archive []byte) (*api.ValidateBackupResponse, error) {
	var resp api.ValidateBackupResponse
	if !json.Valid(archive) {
		return &api.ValidateBackupResponse{Reason: "archive is not valid JSON"}, nil
	}
	if err := s.call(ctx, api.MethodValidateBackup, &api.ValidateBackupRequest{Archive: archive}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *VaultClient) CreateBackup(ctx context.Context, masterPassword string) ([]byte, error) {
	var resp api.BackupResponse
	if err := s.call(ctx, api.MethodCreateBackup, &api.MasterPasswordRequest{MasterPassword: masterPassword}, &resp); err != nil {
		return nil, err
	}
	return resp.Archive, nil
}

func (s *VaultClient) RestoreBackup(ctx context.Context, masterPassword string, archive []byte) (*api.RestoreBackupResponse, error) {
	if !json.Valid(archive) {
		return nil, ErrIntegrity
	}
	var resp api.RestoreBackupResponse
	req := &api.RestoreBackupRequest{MasterPassword: masterPassword, Archive: archive}
	if err := s.call(ctx, api.MethodRestoreBackup, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *VaultClient) ExportBackup(ctx context.Context, masterPassword string) (string, error) {
	var resp api.ExportBackupResponse
	if err := s.call(ctx, api.MethodExportBackup, &api.MasterPasswordRequest{MasterPassword: masterPassword}, &resp); err != nil {
		return "", err
	}
	return resp.Key, nil
}

func (s *VaultClient) ShareBackup(ctx context.Context, key string) (string, error) {
	var resp api.ShareBackupResponse
	if err := s.call(ctx, api.MethodShareBackup, &api.ShareBackupRequest{Key: key}, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

func (s *VaultClient) ListCredentials(ctx context.Context, deleted bool) ([]api.Credential, error) {
	var resp api.ListCredentialsResponse
	if err := s.call(ctx, api.MethodListCredentials, &api.ListCredentialsRequest{Deleted: deleted}, &resp); err != nil {
		return nil, err
	}
	return resp.Credentials, nil
}

func (s *VaultClient) ListVersions(ctx context.Context, credentialID string) ([]api.Version, error) {
	var resp api.ListVersionsResponse
	if err := s.call(ctx, api.MethodListVersions, &api.ListVersionsRequest{CredentialID: credentialID}, &resp); err != nil {
		return nil, err
	}
	return resp.Versions, nil
}

func (s *VaultClient) TwoFactorStatus(ctx context.Context) (*api.TwoFactorStatusResponse, error) {
	var resp api.TwoFactorStatusResponse
	if err := s.call(ctx, api.MethodTwoFactorStatus, &api.Empty{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *VaultClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.PermissionDenied:
		return ErrWrongPassword
	case codes.NotFound:
		return ErrNotFound
	case codes.DataLoss:
		return ErrIntegrity
	case codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrInvalidArgument, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
