package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/repomanager"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod = 30
	totpDigits = otp.DigitsSix

	recoveryCodeCount = 10
	recoveryCodeBytes = 10

	// maxWindow caps every skew a code is checked with, including the
	// one extra attempt with the fallback window.
	maxWindow = 3
)

var recoveryEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// TOTPConfig tunes code verification.
type TOTPConfig struct {
	Issuer         string
	Window         uint
	FallbackWindow uint
}

// Enrollment is a freshly generated, not yet stored TOTP secret.
type Enrollment struct {
	Secret string
	// URI is the otpauth:// payload for QR rendering.
	URI string
}

// RecoveryResult is the outcome of a successful recovery code use.
type RecoveryResult struct {
	Valid          bool
	RemainingCodes int
}

// TwoFactorService keeps TOTP seeds and recovery codes encrypted under the
// master password and verifies codes against them.
type TwoFactorService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	kdf         cryptox.KDFParams
	cfg         TOTPConfig
	logger      logging.Logger
	now         func() time.Time
}

func NewTwoFactorService(db *sql.DB, m repomanager.RepositoryManager, kdf cryptox.KDFParams, cfg TOTPConfig, logger logging.Logger) *TwoFactorService {
	if strings.TrimSpace(cfg.Issuer) == "" {
		cfg.Issuer = "gophvault"
	}
	if cfg.Window == 0 {
		cfg.Window = 1
	}
	cfg.Window = min(cfg.Window, maxWindow)
	cfg.FallbackWindow = min(cfg.FallbackWindow, maxWindow)
	return &TwoFactorService{
		db:          db,
		repomanager: m,
		kdf:         kdf,
		cfg:         cfg,
		logger:      logger.With("module", "twofactor"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func secretAAD(userID string) []byte   { return []byte(userID + "|totp-secret") }
func recoveryAAD(userID string) []byte { return []byte(userID + "|recovery-codes") }

// Enroll generates a new secret. Nothing is stored until EncryptAndStore.
func (s *TwoFactorService) Enroll(ctx context.Context, userID string) (*Enrollment, error) {
	if strings.TrimSpace(userID) == "" || strings.Contains(userID, ":") {
		return nil, fmt.Errorf("%w: bad account name", common.ErrInvalidInput)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.cfg.Issuer,
		AccountName: userID,
		Period:      totpPeriod,
		Digits:      totpDigits,
		Algorithm:   otp.AlgorithmSHA1,
		SecretSize:  20,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	return &Enrollment{Secret: key.Secret(), URI: key.URL()}, nil
}

// EncryptAndStore saves the secret with a fresh set of recovery codes and
// returns the codes. This is the only time they are shown in clear.
// Two-factor stays disabled until ConfirmEnrollment. A pending enrollment
// may be replaced, an enabled one must be disabled first.
func (s *TwoFactorService) EncryptAndStore(ctx context.Context, userID, masterPassword, secret string) ([]string, error) {
	if !validSecret(secret) {
		return nil, fmt.Errorf("%w: secret is not base32", common.ErrInvalidInput)
	}

	codes := generateRecoveryCodes()

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		key, err := s.totpKey(ctx, tx, userID, masterPassword, true)
		if err != nil {
			return err
		}
		defer common.WipeByteArray(key)

		repo := s.repomanager.TwoFactor(tx)
		existing, err := repo.GetForUpdate(ctx, userID)
		switch {
		case err == nil && existing.IsEnabled:
			return fmt.Errorf("%w: two-factor is already enabled", common.ErrInvalidInput)
		case err != nil && !errors.Is(err, common.ErrorNotFound):
			return err
		}

		encSecret, err := cryptox.Encrypt([]byte(secret), key, secretAAD(userID))
		if err != nil {
			return err
		}
		encCodes, err := cryptox.EncryptJSON(codes, key, recoveryAAD(userID))
		if err != nil {
			return err
		}

		now := s.now()
		return repo.Upsert(ctx, &models.TwoFactorSecret{
			UserID:                 userID,
			Method:                 models.TwoFactorMethodTOTP,
			EncryptedSecret:        encSecret,
			EncryptedRecoveryCodes: encCodes,
			CreatedAt:              now,
			UpdatedAt:              now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "two-factor secret stored", "user_id", userID)
	return codes, nil
}

// ConfirmEnrollment turns two-factor on after the first good code.
func (s *TwoFactorService) ConfirmEnrollment(ctx context.Context, userID, masterPassword, code string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		rec, key, err := s.load(ctx, tx, userID, masterPassword, true)
		if err != nil {
			return err
		}
		defer common.WipeByteArray(key)

		if err := s.verify(rec, key, code, s.cfg.Window); err != nil {
			return err
		}

		rec.IsVerified = true
		rec.IsEnabled = true
		rec.UpdatedAt = s.now()
		return s.repomanager.TwoFactor(tx).Upsert(ctx, rec)
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "two-factor enabled", "user_id", userID)
	return nil
}

// VerifyCode checks a TOTP code within window steps of now (zero means the
// configured default, anything above maxWindow is capped). A miss yields
// false and common.ErrInvalidCode.
func (s *TwoFactorService) VerifyCode(ctx context.Context, userID, masterPassword, code string, window uint) (bool, error) {
	rec, key, err := s.load(ctx, s.db, userID, masterPassword, false)
	if err != nil {
		return false, err
	}
	defer common.WipeByteArray(key)

	if err := requireEnabled(rec); err != nil {
		return false, err
	}
	if window == 0 {
		window = s.cfg.Window
	}
	window = min(window, maxWindow)
	if err := s.verify(rec, key, code, window); err != nil {
		return false, err
	}
	return true, nil
}

// verify tries the primary window and then, once, the fallback window.
func (s *TwoFactorService) verify(rec *models.TwoFactorSecret, key []byte, code string, window uint) error {
	secret, err := cryptox.Decrypt(rec.EncryptedSecret, key, secretAAD(rec.UserID))
	if err != nil {
		return common.ErrWrongMasterPassword
	}
	defer common.WipeByteArray(secret)

	now := s.now()
	if s.validate(code, string(secret), now, window) {
		return nil
	}

	fallback := min(s.cfg.FallbackWindow, maxWindow)
	if fallback > window && s.validate(code, string(secret), now, fallback) {
		return nil
	}
	return common.ErrInvalidCode
}

func (s *TwoFactorService) validate(code, secret string, at time.Time, skew uint) bool {
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), secret, at, totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      skew,
		Digits:    totpDigits,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// ConsumeRecoveryCode spends one recovery code. The remaining set is
// re-encrypted and written in the same transaction that read it, so a code
// can be used at most once. A miss writes nothing.
func (s *TwoFactorService) ConsumeRecoveryCode(ctx context.Context, userID, masterPassword, code string) (*RecoveryResult, error) {
	var res *RecoveryResult

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		rec, key, err := s.load(ctx, tx, userID, masterPassword, true)
		if err != nil {
			return err
		}
		defer common.WipeByteArray(key)

		if err := requireEnabled(rec); err != nil {
			return err
		}

		var codes []string
		if err := cryptox.DecryptJSON(rec.EncryptedRecoveryCodes, key, recoveryAAD(userID), &codes); err != nil {
			return common.ErrWrongMasterPassword
		}

		idx := matchRecoveryCode(codes, code)
		if idx < 0 {
			return common.ErrInvalidCode
		}
		codes = append(codes[:idx], codes[idx+1:]...)

		rec.EncryptedRecoveryCodes, err = cryptox.EncryptJSON(codes, key, recoveryAAD(userID))
		if err != nil {
			return err
		}
		rec.UpdatedAt = s.now()
		if err := s.repomanager.TwoFactor(tx).Upsert(ctx, rec); err != nil {
			return err
		}

		res = &RecoveryResult{Valid: true, RemainingCodes: len(codes)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "recovery code consumed", "user_id", userID, "remaining", res.RemainingCodes)
	return res, nil
}

// RegenerateRecoveryCodes replaces every recovery code.
func (s *TwoFactorService) RegenerateRecoveryCodes(ctx context.Context, userID, masterPassword string) ([]string, error) {
	codes := generateRecoveryCodes()

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		rec, key, err := s.load(ctx, tx, userID, masterPassword, true)
		if err != nil {
			return err
		}
		defer common.WipeByteArray(key)

		rec.EncryptedRecoveryCodes, err = cryptox.EncryptJSON(codes, key, recoveryAAD(userID))
		if err != nil {
			return err
		}
		rec.UpdatedAt = s.now()
		return s.repomanager.TwoFactor(tx).Upsert(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// Disable removes two-factor after checking a current code.
func (s *TwoFactorService) Disable(ctx context.Context, userID, masterPassword, code string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		rec, key, err := s.load(ctx, tx, userID, masterPassword, true)
		if err != nil {
			return err
		}
		defer common.WipeByteArray(key)

		if err := s.verify(rec, key, code, s.cfg.Window); err != nil {
			return err
		}
		return s.repomanager.TwoFactor(tx).Delete(ctx, userID)
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "two-factor disabled", "user_id", userID)
	return nil
}

// Status reports whether the user has two-factor enabled.
func (s *TwoFactorService) Status(ctx context.Context, userID string) (enabled, verified bool, err error) {
	rec, err := s.repomanager.TwoFactor(s.db).Get(ctx, userID)
	if errors.Is(err, common.ErrorNotFound) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return rec.IsEnabled, rec.IsVerified, nil
}

// requireEnabled rejects enrollments that were stored but never confirmed.
func requireEnabled(rec *models.TwoFactorSecret) error {
	if !rec.IsEnabled || !rec.IsVerified {
		return fmt.Errorf("%w: two-factor is not enabled", common.ErrorNotFound)
	}
	return nil
}

// load reads the record and derives the TOTP key. forUpdate locks the row.
func (s *TwoFactorService) load(ctx context.Context, db dbx.DBTX, userID, masterPassword string, forUpdate bool) (*models.TwoFactorSecret, []byte, error) {
	repo := s.repomanager.TwoFactor(db)

	var rec *models.TwoFactorSecret
	var err error
	if forUpdate {
		rec, err = repo.GetForUpdate(ctx, userID)
	} else {
		rec, err = repo.Get(ctx, userID)
	}
	if err != nil {
		return nil, nil, err
	}

	key, err := s.totpKey(ctx, db, userID, masterPassword, false)
	if err != nil {
		return nil, nil, err
	}
	return rec, key, nil
}

func (s *TwoFactorService) totpKey(ctx context.Context, db dbx.DBTX, userID, masterPassword string, enroll bool) ([]byte, error) {
	var kr *cryptox.Keyring
	var err error
	if enroll {
		kr, err = unlockOrEnroll(ctx, s.repomanager.Users(db), userID, masterPassword, s.kdf)
	} else {
		kr, err = unlock(ctx, s.repomanager.Users(db), userID, masterPassword, s.kdf)
	}
	if err != nil {
		return nil, err
	}
	defer kr.Wipe()

	return kr.Key(cryptox.ContextTOTP)
}

func validSecret(secret string) bool {
	s := strings.ToUpper(strings.TrimRight(strings.TrimSpace(secret), "="))
	if s == "" {
		return false
	}
	_, err := recoveryEncoding.DecodeString(s)
	return err == nil
}

// generateRecoveryCodes returns codes shaped XXXX-XXXX-XXXX-XXXX, 80 bits each.
func generateRecoveryCodes() []string {
	codes := make([]string, 0, recoveryCodeCount)
	for range recoveryCodeCount {
		raw := recoveryEncoding.EncodeToString(common.GenerateRandByteArray(recoveryCodeBytes))
		codes = append(codes, raw[0:4]+"-"+raw[4:8]+"-"+raw[8:12]+"-"+raw[12:16])
	}
	return codes
}

func normalizeRecoveryCode(code string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(code) {
		if r == '-' || r == ' ' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// matchRecoveryCode compares against every code in constant time per code
// and returns the index of the match or -1.
func matchRecoveryCode(codes []string, code string) int {
	want := []byte(normalizeRecoveryCode(code))
	idx := -1
	for i, c := range codes {
		if subtle.ConstantTimeCompare([]byte(normalizeRecoveryCode(c)), want) == 1 && idx < 0 {
			idx = i
		}
	}
	return idx
}
