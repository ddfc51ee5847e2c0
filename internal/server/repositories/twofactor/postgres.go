// Package twofactor provides the PostgreSQL-backed repository for encrypted
// TOTP secrets and recovery codes.
package twofactor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
)

const selectQuery = `
	SELECT user_id, method, secret, recovery_codes, is_enabled, is_verified, created_at, updated_at
	FROM two_factor_secrets
	WHERE user_id = $1
`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (*models.TwoFactorSecret, error) {
	return r.get(ctx, selectQuery, userID)
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, userID string) (*models.TwoFactorSecret, error) {
	return r.get(ctx, selectQuery+"FOR UPDATE", userID)
}

func (r *PostgresRepository) get(ctx context.Context, query, userID string) (*models.TwoFactorSecret, error) {
	var (
		s             models.TwoFactorSecret
		secret, codes []byte
	)
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&s.UserID, &s.Method, &secret, &codes, &s.IsEnabled, &s.IsVerified, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if s.EncryptedSecret, err = cryptox.UnmarshalField(secret); err != nil {
		return nil, err
	}
	if s.EncryptedRecoveryCodes, err = cryptox.UnmarshalField(codes); err != nil {
		return nil, err
	}
	return &s, nil
}

// Upsert inserts the record or replaces every mutable column of an existing one.
func (r *PostgresRepository) Upsert(ctx context.Context, s *models.TwoFactorSecret) error {
	secret, err := cryptox.MarshalField(s.EncryptedSecret)
	if err != nil {
		return err
	}
	codes, err := cryptox.MarshalField(s.EncryptedRecoveryCodes)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO two_factor_secrets (user_id, method, secret, recovery_codes, is_enabled, is_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			method = EXCLUDED.method,
			secret = EXCLUDED.secret,
			recovery_codes = EXCLUDED.recovery_codes,
			is_enabled = EXCLUDED.is_enabled,
			is_verified = EXCLUDED.is_verified,
			updated_at = EXCLUDED.updated_at
	`
	_, err = r.db.ExecContext(ctx, query,
		s.UserID, s.Method, secret, codes, s.IsEnabled, s.IsVerified, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM two_factor_secrets WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
