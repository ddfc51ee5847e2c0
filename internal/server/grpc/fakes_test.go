package grpc

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/gophvault/internal/archive"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/auth"
	"github.com/dmitrijs2005/gophvault/internal/server/breach"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/services"
)

type nopLogger struct{}

func (n nopLogger) Debug(context.Context, string, ...any) {}
func (n nopLogger) Info(context.Context, string, ...any)  {}
func (n nopLogger) Warn(context.Context, string, ...any)  {}
func (n nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger            { return n }

func signToken(userID string, secret []byte, ttl time.Duration) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl))},
		UserID:           userID,
	}).SignedString(secret)
}

var fixedTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeCredentials struct {
	gotUserID   string
	gotPassword string
	gotInput    services.CredentialInput
	gotVersion  int64
	summary     *services.CredentialSummary
	revealed    *services.RevealedCredential
	active      []*services.CredentialSummary
	deleted     []*services.CredentialSummary
	err         error
}

func (f *fakeCredentials) Create(_ context.Context, userID, pw string, in services.CredentialInput) (*services.CredentialSummary, error) {
	f.gotUserID, f.gotPassword, f.gotInput = userID, pw, in
	return f.summary, f.err
}

func (f *fakeCredentials) Update(_ context.Context, userID, pw, _ string, expected int64, in services.CredentialInput) (*services.CredentialSummary, error) {
	f.gotUserID, f.gotPassword, f.gotInput, f.gotVersion = userID, pw, in, expected
	return f.summary, f.err
}

func (f *fakeCredentials) Reveal(_ context.Context, userID, pw, _ string) (*services.RevealedCredential, error) {
	f.gotUserID, f.gotPassword = userID, pw
	return f.revealed, f.err
}

func (f *fakeCredentials) Delete(_ context.Context, userID, _ string) error {
	f.gotUserID = userID
	return f.err
}

func (f *fakeCredentials) List(_ context.Context, userID string) ([]*services.CredentialSummary, error) {
	f.gotUserID = userID
	return f.active, f.err
}

func (f *fakeCredentials) ListDeleted(_ context.Context, userID string) ([]*services.CredentialSummary, error) {
	f.gotUserID = userID
	return f.deleted, f.err
}

type fakeLedger struct {
	snaps   []*models.CredentialSnapshot
	secrets *models.Secrets
	summary *services.CredentialSummary
	err     error
}

func (f *fakeLedger) List(context.Context, string, string) ([]*models.CredentialSnapshot, error) {
	return f.snaps, f.err
}

func (f *fakeLedger) Reveal(context.Context, string, string, string, int64) (*models.Secrets, error) {
	return f.secrets, f.err
}

func (f *fakeLedger) Restore(context.Context, string, string, string, int64) (*services.CredentialSummary, error) {
	return f.summary, f.err
}

type fakeBackup struct {
	archive  *archive.Archive
	restored *archive.Archive
	summary  *services.RestoreSummary
	key      string
	url      string
	err      error
}

func (f *fakeBackup) CreateBackup(context.Context, string, string) (*archive.Archive, error) {
	return f.archive, f.err
}

func (f *fakeBackup) Validate(a *archive.Archive) services.ValidationResult {
	res := services.ValidationResult{Metadata: a.Metadata()}
	if err := a.Verify(); err != nil {
		res.Reason = err.Error()
		return res
	}
	res.IsValid = true
	return res
}

func (f *fakeBackup) RestoreBackup(_ context.Context, a *archive.Archive, _, _ string) (*services.RestoreSummary, error) {
	f.restored = a
	return f.summary, f.err
}

func (f *fakeBackup) Export(context.Context, string, string) (string, error) {
	return f.key, f.err
}

func (f *fakeBackup) Import(context.Context, string, string, string) (*services.RestoreSummary, error) {
	return f.summary, f.err
}

func (f *fakeBackup) ShareURL(context.Context, string, string) (string, error) {
	return f.url, f.err
}

type fakeTwoFactor struct {
	enrollment *services.Enrollment
	codes      []string
	recovery   *services.RecoveryResult
	gotWindow  uint
	enabled    bool
	verified   bool
	err        error
}

func (f *fakeTwoFactor) Enroll(context.Context, string) (*services.Enrollment, error) {
	return f.enrollment, f.err
}

func (f *fakeTwoFactor) EncryptAndStore(context.Context, string, string, string) ([]string, error) {
	return f.codes, f.err
}

func (f *fakeTwoFactor) ConfirmEnrollment(context.Context, string, string, string) error {
	return f.err
}

func (f *fakeTwoFactor) VerifyCode(_ context.Context, _, _, _ string, window uint) (bool, error) {
	f.gotWindow = window
	return f.err == nil, f.err
}

func (f *fakeTwoFactor) ConsumeRecoveryCode(context.Context, string, string, string) (*services.RecoveryResult, error) {
	return f.recovery, f.err
}

func (f *fakeTwoFactor) RegenerateRecoveryCodes(context.Context, string, string) ([]string, error) {
	return f.codes, f.err
}

func (f *fakeTwoFactor) Disable(context.Context, string, string, string) error {
	return f.err
}

func (f *fakeTwoFactor) Status(context.Context, string) (bool, bool, error) {
	return f.enabled, f.verified, f.err
}

type fakeBreach struct {
	results map[string]breach.Result
}

func (f *fakeBreach) CheckMany(_ context.Context, passwords []string) []breach.Result {
	out := make([]breach.Result, len(passwords))
	for i, p := range passwords {
		out[i] = f.results[p]
	}
	return out
}

type fakes struct {
	credentials *fakeCredentials
	ledger      *fakeLedger
	backup      *fakeBackup
	twoFactor   *fakeTwoFactor
	breach      *fakeBreach
}

func newFakes() *fakes {
	return &fakes{
		credentials: &fakeCredentials{},
		ledger:      &fakeLedger{},
		backup:      &fakeBackup{},
		twoFactor:   &fakeTwoFactor{},
		breach:      &fakeBreach{results: map[string]breach.Result{}},
	}
}

func (f *fakes) services() Services {
	return Services{
		Credentials: f.credentials,
		Ledger:      f.ledger,
		Backup:      f.backup,
		TwoFactor:   f.twoFactor,
		Breach:      f.breach,
	}
}

const testSecret = "k"

func newServer(f *fakes) *GRPCServer {
	return NewGRPCServer("127.0.0.1:0", nopLogger{}, f.services(), testSecret)
}

func withUser(userID string) context.Context {
	return context.WithValue(context.Background(), UserIDKey, userID)
}
