package grpc

import (
	"context"

	"github.com/dmitrijs2005/gophvault/internal/api"
	"github.com/dmitrijs2005/gophvault/internal/archive"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/services"
)

func toAPISecrets(s *models.Secrets) api.Secrets {
	if s == nil {
		return api.Secrets{}
	}
	return api.Secrets{Username: s.Username, Password: s.Password, URL: s.URL, Notes: s.Notes}
}

func toAPICredential(c *services.CredentialSummary) api.Credential {
	return api.Credential{
		ID:           c.ID,
		Title:        c.Title,
		Category:     c.Category,
		Metadata:     c.Metadata,
		Version:      c.Version,
		Status:       string(c.Status),
		LastAccessed: c.LastAccessed,
		AccessCount:  c.AccessCount,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func fromAPIInput(in api.CredentialInput) services.CredentialInput {
	return services.CredentialInput{
		Title:    in.Title,
		Category: in.Category,
		Metadata: in.Metadata,
		Secrets: models.Secrets{
			Username: in.Secrets.Username,
			Password: in.Secrets.Password,
			URL:      in.Secrets.URL,
			Notes:    in.Secrets.Notes,
		},
	}
}

func toRestoreResponse(r *services.RestoreSummary) *api.RestoreBackupResponse {
	return &api.RestoreBackupResponse{
		CredentialsRestored:       r.CredentialsRestored,
		NotesRestored:             r.NotesRestored,
		TwoFactorReenrollRequired: r.TwoFactorReenrollRequired,
	}
}

func (s *GRPCServer) CreateCredential(ctx context.Context, req *api.CreateCredentialRequest) (*api.CredentialResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	c, err := s.svc.Credentials.Create(ctx, userID, req.MasterPassword, fromAPIInput(req.Credential))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &api.CredentialResponse{Credential: toAPICredential(c)}, nil
}

func (s *GRPCServer) UpdateCredential(ctx context.Context, req *api.UpdateCredentialRequest) (*api.CredentialResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	c, err := s.svc.Credentials.Update(ctx, userID, req.MasterPassword, req.CredentialID, req.ExpectedVersion, fromAPIInput(req.Credential))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &api.CredentialResponse{Credential: toAPICredential(c)}, nil
}

func (s *GRPCServer) RevealCredential(ctx context.Context, req *api.RevealCredentialRequest) (*api.RevealCredentialResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	c, err := s.svc.Credentials.Reveal(ctx, userID, req.MasterPassword, req.CredentialID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &api.RevealCredentialResponse{
		Credential: toAPICredential(&c.CredentialSummary),
		Secrets:    toAPISecrets(&c.Secrets),
	}, nil
}

func (s *GRPCServer) DeleteCredential(ctx context.Context, req *api.DeleteCredentialRequest) (*api.Empty, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.svc.Credentials.Delete(ctx, userID, req.CredentialID); err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &api.Empty{}, nil
}

func (s *GRPCServer) ListCredentials(ctx context.Context, req *api.ListCredentialsRequest) (*api.ListCredentialsResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	list := s.svc.Credentials.List
	if req.Deleted {
		list = s.svc.Credentials.ListDeleted
	}

	items, err := list(ctx, userID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	resp := &api.ListCredentialsResponse{Credentials: make([]api.Credential, 0, len(items))}
	for _, c := range items {
		resp.Credentials = append(resp.Credentials, toAPICredential(c))
	}
	return resp, nil
}

func (s *GRPCServer) ListVersions(ctx context.Context, req *api.ListVersionsRequest) (*api.ListVersionsResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	snaps, err := s.svc.Ledger.List(ctx, userID, req.CredentialID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	resp := &api.ListVersionsResponse{Versions: make([]api.Version, 0, len(snaps))}
	for _, v := range snaps {
		resp.Versions = append(resp.Versions, api.Version{
			Version:    v.Version,
			Title:      v.Title,
			Category:   v.Category,
			Metadata:   v.Metadata,
			CapturedAt: v.CapturedAt,
		})
	}
	return resp, nil
}

func (s *GRPCServer) RevealVersion(ctx context.Context, req *api.RevealVersionRequest) (*api.RevealVersionResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	secrets, err := s.svc.Ledger.Reveal(ctx, userID, req.MasterPassword, req.CredentialID, req.Version)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &api.RevealVersionResponse{Secrets: toAPISecrets(secrets)}, nil
}

func (s *GRPCServer) RestoreVersion(ctx context.Context, req *api.RestoreVersionRequest) (*api.CredentialResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	c, err := s.svc.Ledger.Restore(ctx, userID, req.MasterPassword, req.CredentialID, req.Version)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &api.CredentialResponse{Credential: toAPICredential(c)}, nil
}

func (s *GRPCServer) CreateBackup(ctx context.Context, req *api.MasterPasswordRequest) (*api.BackupResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	a, err := s.svc.Backup.CreateBackup(ctx, userID, req.MasterPassword)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	b, err := archive.Marshal(a)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &api.BackupResponse{Archive: b}, nil
}

func (s *GRPCServer) ValidateBackup(ctx context.Context, req *api.ValidateBackupRequest) (*api.ValidateBackupResponse, error) {
	a, err := archive.Parse(req.Archive)
	if err != nil {
		return &api.ValidateBackupResponse{Reason: err.Error()}, nil
	}

	res := s.svc.Backup.Validate(a)
	return &api.ValidateBackupResponse{
		IsValid:       res.IsValid,
		Reason:        res.Reason,
		FormatVersion: res.Metadata.FormatVersion,
		CreatedAt:     res.Metadata.CreatedAt,
		PayloadSize:   res.Metadata.PayloadSize,
	}, nil
}

func (s *GRPCServer) RestoreBackup(ctx context.Context, req *api.RestoreBackupRequest) (*api.RestoreBackupResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	a, err := archive.Parse(req.Archive)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	sum, err := s.svc.Backup.RestoreBackup(ctx, a, userID, req.MasterPassword)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return toRestoreResponse(sum), nil
}

func (s *GRPCServer) ExportBackup(ctx context.Context, req *api.MasterPasswordRequest) (*api.ExportBackupResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	key, err := s.svc.Backup.Export(ctx, userID, req.MasterPassword)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &api.ExportBackupResponse{Key: key}, nil
}

func (s *GRPCServer) ImportBackup(ctx context.Context, req *api.ImportBackupRequest) (*api.RestoreBackupResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	sum, err := s.svc.Backup.Import(ctx, userID, req.MasterPassword, req.Key)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return toRestoreResponse(sum), nil
}

func (s *GRPCServer) ShareBackup(ctx context.Context, req *api.ShareBackupRequest) (*api.ShareBackupResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	url, err := s.svc.Backup.ShareURL(ctx, userID, req.Key)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &api.ShareBackupResponse{URL: url}, nil
}

func (s *GRPCServer) EnrollTwoFactor(ctx context.Context, _ *api.Empty) (*api.EnrollTwoFactorResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	e, err := s.svc.TwoFactor.Enroll(ctx, userID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &api.EnrollTwoFactorResponse{Secret: e.Secret, URI: e.URI}, nil
}

func (s *GRPCServer) StoreTwoFactor(ctx context.Context, req *api.StoreTwoFactorRequest) (*api.RecoveryCodesResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	codes, err := s.svc.TwoFactor.EncryptAndStore(ctx, userID, req.MasterPassword, req.Secret)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &api.RecoveryCodesResponse{RecoveryCodes: codes}, nil
}

func (s *GRPCServer) ConfirmTwoFactor(ctx context.Context, req *api.TwoFactorCodeRequest) (*api.Empty, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.svc.TwoFactor.ConfirmEnrollment(ctx, userID, req.MasterPassword, req.Code); err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &api.Empty{}, nil
}

func (s *GRPCServer) VerifyTwoFactor(ctx context.Context, req *api.TwoFactorCodeRequest) (*api.VerifyTwoFactorResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	ok, err := s.svc.TwoFactor.VerifyCode(ctx, userID, req.MasterPassword, req.Code, req.Window)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &api.VerifyTwoFactorResponse{Valid: ok}, nil
}

func (s *GRPCServer) ConsumeRecoveryCode(ctx context.Context, req *api.TwoFactorCodeRequest) (*api.ConsumeRecoveryCodeResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.svc.TwoFactor.ConsumeRecoveryCode(ctx, userID, req.MasterPassword, req.Code)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &api.ConsumeRecoveryCodeResponse{Valid: res.Valid, RemainingCodes: res.RemainingCodes}, nil
}

func (s *GRPCServer) RegenerateRecoveryCodes(ctx context.Context, req *api.MasterPasswordRequest) (*api.RecoveryCodesResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	codes, err := s.svc.TwoFactor.RegenerateRecoveryCodes(ctx, userID, req.MasterPassword)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &api.RecoveryCodesResponse{RecoveryCodes: codes}, nil
}

func (s *GRPCServer) DisableTwoFactor(ctx context.Context, req *api.TwoFactorCodeRequest) (*api.Empty, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.svc.TwoFactor.Disable(ctx, userID, req.MasterPassword, req.Code); err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &api.Empty{}, nil
}

func (s *GRPCServer) TwoFactorStatus(ctx context.Context, _ *api.Empty) (*api.TwoFactorStatusResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	enabled, verified, err := s.svc.TwoFactor.Status(ctx, userID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &api.TwoFactorStatusResponse{Enabled: enabled, Verified: verified}, nil
}

// CheckBreach never fails: lookups that cannot complete report not found.
func (s *GRPCServer) CheckBreach(ctx context.Context, req *api.CheckBreachRequest) (*api.CheckBreachResponse, error) {
	results := s.svc.Breach.CheckMany(ctx, req.Passwords)

	resp := &api.CheckBreachResponse{Results: make([]api.BreachResult, len(results))}
	for i, r := range results {
		resp.Results[i] = api.BreachResult{Found: r.Found, Count: r.Count}
	}
	return resp, nil
}
