package services

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

// enrollTwoFactor stores a secret and returns it with the recovery codes.
func enrollTwoFactor(t *testing.T, f *fixture) (string, []string) {
	t.Helper()
	f.twoFactor.now = func() time.Time { return fixedNow }

	e, err := f.twoFactor.Enroll(context.Background(), testUser)
	require.NoError(t, err)

	codes, err := f.twoFactor.EncryptAndStore(context.Background(), testUser, testPassword, e.Secret)
	require.NoError(t, err)
	return e.Secret, codes
}

func enableTwoFactor(t *testing.T, f *fixture) (string, []string) {
	t.Helper()
	secret, codes := enrollTwoFactor(t, f)
	require.NoError(t, f.twoFactor.ConfirmEnrollment(context.Background(), testUser, testPassword, codeAt(t, secret, fixedNow)))
	return secret, codes
}

func TestEnroll_ProducesOtpauthURI(t *testing.T) {
	f := newFixture(t, nil)

	e, err := f.twoFactor.Enroll(context.Background(), testUser)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(e.URI, "otpauth://totp/"), e.URI)
	assert.Contains(t, e.URI, "issuer=gophvault-test")
	assert.Contains(t, e.URI, "secret="+e.Secret)

	_, err = f.twoFactor.Enroll(context.Background(), "bad:name")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestEncryptAndStore_RecoveryCodes(t *testing.T) {
	f := newFixture(t, nil)
	_, codes := enrollTwoFactor(t, f)

	require.Len(t, codes, 10)
	shape := regexp.MustCompile(`^[A-Z2-7]{4}-[A-Z2-7]{4}-[A-Z2-7]{4}-[A-Z2-7]{4}$`)
	seen := map[string]bool{}
	for _, c := range codes {
		assert.Regexp(t, shape, c)
		assert.False(t, seen[c], "duplicate code")
		seen[c] = true
	}

	enabled, verified, err := f.twoFactor.Status(context.Background(), testUser)
	require.NoError(t, err)
	assert.False(t, enabled)
	assert.False(t, verified)
}

func TestEncryptAndStore_RejectsBadSecret(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.twoFactor.EncryptAndStore(context.Background(), testUser, testPassword, "not base32!")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestConfirmEnrollment(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	secret, _ := enrollTwoFactor(t, f)

	err := f.twoFactor.ConfirmEnrollment(ctx, testUser, testPassword, codeAt(t, secret, fixedNow.Add(-10*time.Minute)))
	assert.ErrorIs(t, err, common.ErrInvalidCode)

	require.NoError(t, f.twoFactor.ConfirmEnrollment(ctx, testUser, testPassword, codeAt(t, secret, fixedNow)))

	enabled, verified, err := f.twoFactor.Status(ctx, testUser)
	require.NoError(t, err)
	assert.True(t, enabled)
	assert.True(t, verified)
}

func TestVerifyCode_Windows(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	secret, _ := enableTwoFactor(t, f)

	ok, err := f.twoFactor.VerifyCode(ctx, testUser, testPassword, codeAt(t, secret, fixedNow), 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.twoFactor.VerifyCode(ctx, testUser, testPassword, codeAt(t, secret, fixedNow.Add(30*time.Second)), 1)
	require.NoError(t, err)
	assert.True(t, ok)

	// two steps away only passes through the fallback window
	ok, err = f.twoFactor.VerifyCode(ctx, testUser, testPassword, codeAt(t, secret, fixedNow.Add(-60*time.Second)), 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.twoFactor.VerifyCode(ctx, testUser, testPassword, codeAt(t, secret, fixedNow.Add(10*30*time.Second)), 1)
	assert.ErrorIs(t, err, common.ErrInvalidCode)
	assert.False(t, ok)

	ok, err = f.twoFactor.VerifyCode(ctx, testUser, testPassword, "12", 1)
	assert.ErrorIs(t, err, common.ErrInvalidCode)
	assert.False(t, ok)
}

func TestVerifyCode_CallerWindowIsCapped(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	secret, _ := enableTwoFactor(t, f)

	for _, steps := range []int{10, -10} {
		at := fixedNow.Add(time.Duration(steps) * 30 * time.Second)
		ok, err := f.twoFactor.VerifyCode(ctx, testUser, testPassword, codeAt(t, secret, at), 10)
		assert.ErrorIs(t, err, common.ErrInvalidCode, steps)
		assert.False(t, ok, steps)
	}

	ok, err := f.twoFactor.VerifyCode(ctx, testUser, testPassword, codeAt(t, secret, fixedNow.Add(3*30*time.Second)), 10)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewTwoFactorService_CapsConfiguredWindows(t *testing.T) {
	s := NewTwoFactorService(nil, nil, cryptox.TestKDFParams, TOTPConfig{Window: 50, FallbackWindow: 50}, newTestLogger())
	assert.Equal(t, uint(maxWindow), s.cfg.Window)
	assert.Equal(t, uint(maxWindow), s.cfg.FallbackWindow)
}

func TestVerifyCode_PendingEnrollment(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	secret, codes := enrollTwoFactor(t, f)

	ok, err := f.twoFactor.VerifyCode(ctx, testUser, testPassword, codeAt(t, secret, fixedNow), 0)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.False(t, ok)

	_, err = f.twoFactor.ConsumeRecoveryCode(ctx, testUser, testPassword, codes[0])
	assert.ErrorIs(t, err, common.ErrorNotFound)

	// nothing was spent while pending
	require.NoError(t, f.twoFactor.ConfirmEnrollment(ctx, testUser, testPassword, codeAt(t, secret, fixedNow)))
	res, err := f.twoFactor.ConsumeRecoveryCode(ctx, testUser, testPassword, codes[0])
	require.NoError(t, err)
	assert.Equal(t, 9, res.RemainingCodes)
}

func TestEncryptAndStore_KeepsEnabledSecret(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	secret, _ := enableTwoFactor(t, f)

	other, err := f.twoFactor.Enroll(ctx, testUser)
	require.NoError(t, err)
	_, err = f.twoFactor.EncryptAndStore(ctx, testUser, testPassword, other.Secret)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	enabled, verified, err := f.twoFactor.Status(ctx, testUser)
	require.NoError(t, err)
	assert.True(t, enabled)
	assert.True(t, verified)

	ok, err := f.twoFactor.VerifyCode(ctx, testUser, testPassword, codeAt(t, secret, fixedNow), 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEncryptAndStore_ReplacesPendingSecret(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	enrollTwoFactor(t, f)

	second, err := f.twoFactor.Enroll(ctx, testUser)
	require.NoError(t, err)
	_, err = f.twoFactor.EncryptAndStore(ctx, testUser, testPassword, second.Secret)
	require.NoError(t, err)

	require.NoError(t, f.twoFactor.ConfirmEnrollment(ctx, testUser, testPassword, codeAt(t, second.Secret, fixedNow)))
}

func TestVerifyCode_FallbackDisabled(t *testing.T) {
	f := newFixture(t, nil)
	f.twoFactor.cfg.FallbackWindow = 0
	ctx := context.Background()
	secret, _ := enableTwoFactor(t, f)

	_, err := f.twoFactor.VerifyCode(ctx, testUser, testPassword, codeAt(t, secret, fixedNow.Add(-60*time.Second)), 1)
	assert.ErrorIs(t, err, common.ErrInvalidCode)
}

func TestVerifyCode_Errors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.twoFactor.VerifyCode(ctx, testUser, testPassword, "123456", 1)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	secret, _ := enableTwoFactor(t, f)
	_, err = f.twoFactor.VerifyCode(ctx, testUser, "wrong", codeAt(t, secret, fixedNow), 1)
	assert.ErrorIs(t, err, common.ErrWrongMasterPassword)
}

func TestConsumeRecoveryCode_SingleUse(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, codes := enableTwoFactor(t, f)

	res, err := f.twoFactor.ConsumeRecoveryCode(ctx, testUser, testPassword, codes[3])
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, 9, res.RemainingCodes)

	_, err = f.twoFactor.ConsumeRecoveryCode(ctx, testUser, testPassword, codes[3])
	assert.ErrorIs(t, err, common.ErrInvalidCode)

	// a miss must not change the stored set
	_, err = f.twoFactor.ConsumeRecoveryCode(ctx, testUser, testPassword, "AAAA-AAAA-AAAA-AAAA")
	assert.ErrorIs(t, err, common.ErrInvalidCode)

	loose := strings.ToLower(strings.ReplaceAll(codes[0], "-", " "))
	res, err = f.twoFactor.ConsumeRecoveryCode(ctx, testUser, testPassword, loose)
	require.NoError(t, err)
	assert.Equal(t, 8, res.RemainingCodes)

	_, err = f.twoFactor.ConsumeRecoveryCode(ctx, testUser, "wrong", codes[1])
	assert.ErrorIs(t, err, common.ErrWrongMasterPassword)
}

func TestRegenerateRecoveryCodes(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, old := enableTwoFactor(t, f)

	fresh, err := f.twoFactor.RegenerateRecoveryCodes(ctx, testUser, testPassword)
	require.NoError(t, err)
	require.Len(t, fresh, 10)

	_, err = f.twoFactor.ConsumeRecoveryCode(ctx, testUser, testPassword, old[0])
	assert.ErrorIs(t, err, common.ErrInvalidCode)

	res, err := f.twoFactor.ConsumeRecoveryCode(ctx, testUser, testPassword, fresh[0])
	require.NoError(t, err)
	assert.Equal(t, 9, res.RemainingCodes)
}

func TestDisable(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	secret, _ := enableTwoFactor(t, f)

	assert.ErrorIs(t, f.twoFactor.Disable(ctx, testUser, testPassword, "000000"), common.ErrInvalidCode)
	require.NoError(t, f.twoFactor.Disable(ctx, testUser, testPassword, codeAt(t, secret, fixedNow)))

	enabled, _, err := f.twoFactor.Status(ctx, testUser)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestMatchRecoveryCode(t *testing.T) {
	codes := []string{"ABCD-EFGH-IJKL-MNOP", "QRST-UVWX-YZ23-4567"}
	assert.Equal(t, 1, matchRecoveryCode(codes, "qrstuvwxyz234567"))
	assert.Equal(t, 0, matchRecoveryCode(codes, " abcd efgh ijkl mnop "))
	assert.Equal(t, -1, matchRecoveryCode(codes, "ABCD-EFGH-IJKL-MNOQ"))
	assert.Equal(t, -1, matchRecoveryCode(nil, ""))
}
