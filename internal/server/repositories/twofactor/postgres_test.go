package twofactor

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func sealed(t *testing.T, s string) *cryptox.EncryptedField {
	t.Helper()
	f, err := cryptox.Encrypt([]byte(s), common.GenerateRandByteArray(cryptox.KeySize), nil)
	require.NoError(t, err)
	return f
}

var cols = []string{"user_id", "method", "secret", "recovery_codes", "is_enabled", "is_verified", "created_at", "updated_at"}

func TestGet(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	secret, _ := cryptox.MarshalField(sealed(t, "seed"))
	codes, _ := cryptox.MarshalField(sealed(t, "codes"))

	mock.ExpectQuery(`SELECT .* FROM two_factor_secrets\s+WHERE user_id = \$1\s*$`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("u1", "totp", secret, codes, true, true, now, now))

	s, err := repo.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "totp", s.Method)
	assert.True(t, s.IsEnabled)
	require.NotNil(t, s.EncryptedSecret)
	require.NotNil(t, s.EncryptedRecoveryCodes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetForUpdate_LocksRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM two_factor_secrets\s+WHERE user_id = \$1\s+FOR UPDATE`).
		WithArgs("u1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetForUpdate(context.Background(), "u1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM two_factor_secrets`).WillReturnError(errors.New("boom"))

	_, err := repo.Get(context.Background(), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error")
}

func TestUpsert(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`INSERT INTO two_factor_secrets .* ON CONFLICT \(user_id\) DO UPDATE`).
		WithArgs("u1", "totp", sqlmock.AnyArg(), sqlmock.AnyArg(), false, false, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), &models.TwoFactorSecret{
		UserID: "u1", Method: "totp",
		EncryptedSecret:        sealed(t, "seed"),
		EncryptedRecoveryCodes: sealed(t, "codes"),
		CreatedAt:              now, UpdatedAt: now,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM two_factor_secrets WHERE user_id = \$1`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM two_factor_secrets`).
		WithArgs("u2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), "u1"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "u2"), common.ErrorNotFound)
}
