// Package credentials provides the PostgreSQL-backed repository for the live
// encrypted state of credentials.
package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/columns"
)

const selectColumns = `id, owner_id, title, category, metadata, username, password, url, notes,
		version, status, last_accessed, access_count, created_at, updated_at`

// PostgresRepository implements credential storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.Credential) error {
	meta, err := columns.EncodeMetadata(c.Metadata)
	if err != nil {
		return err
	}
	f, err := columns.EncodeFields(c.Username, c.Password, c.URL, c.Notes)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO credentials (id, owner_id, title, category, metadata, username, password, url, notes,
			version, status, access_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = r.db.ExecContext(ctx, query,
		c.ID, c.OwnerID, c.Title, c.Category, meta, f.Username, f.Password, f.URL, f.Notes,
		c.Version, string(c.Status), c.AccessCount, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByID returns the credential regardless of status; callers decide
// whether a deleted row is visible.
func (r *PostgresRepository) GetByID(ctx context.Context, ownerID, id string) (*models.Credential, error) {
	query := `SELECT ` + selectColumns + ` FROM credentials
		WHERE id = $1 AND owner_id = $2`

	c, err := scanCredential(r.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) Update(ctx context.Context, c *models.Credential, expectedVersion int64) error {
	meta, err := columns.EncodeMetadata(c.Metadata)
	if err != nil {
		return err
	}
	f, err := columns.EncodeFields(c.Username, c.Password, c.URL, c.Notes)
	if err != nil {
		return err
	}

	query := `
		UPDATE credentials SET
			title = $1, category = $2, metadata = $3,
			username = $4, password = $5, url = $6, notes = $7,
			version = $8, updated_at = $9
		WHERE id = $10 AND owner_id = $11 AND version = $12 AND status = 'active';
	`
	res, err := r.db.ExecContext(ctx, query,
		c.Title, c.Category, meta, f.Username, f.Password, f.URL, f.Notes,
		c.Version, c.UpdatedAt, c.ID, c.OwnerID, expectedVersion)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrVersionConflict
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// TouchAccess bumps the access counter and returns its new value.
func (r *PostgresRepository) TouchAccess(ctx context.Context, ownerID, id string, at time.Time) (int64, error) {
	query := `
		UPDATE credentials SET access_count = access_count + 1, last_accessed = $1
		WHERE id = $2 AND owner_id = $3
		RETURNING access_count
	`
	var count int64
	err := r.db.QueryRowContext(ctx, query, at, id, ownerID).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, ownerID, id string, at time.Time) error {
	query := `
		UPDATE credentials SET status = 'deleted', updated_at = $1
		WHERE id = $2 AND owner_id = $3 AND status = 'active'
	`
	res, err := r.db.ExecContext(ctx, query, at, id, ownerID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// SoftDeleteAll marks every active credential of the owner as deleted.
func (r *PostgresRepository) SoftDeleteAll(ctx context.Context, ownerID string, at time.Time) (int64, error) {
	query := `
		UPDATE credentials SET status = 'deleted', updated_at = $1
		WHERE owner_id = $2 AND status = 'active'
	`
	res, err := r.db.ExecContext(ctx, query, at, ownerID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string, status models.CredentialStatus) ([]*models.Credential, error) {
	query := `SELECT ` + selectColumns + ` FROM credentials
		WHERE owner_id = $1 AND status = $2
		ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, ownerID, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to select credentials: %w", err)
	}
	defer rows.Close()

	var result []*models.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCredential(s scanner) (*models.Credential, error) {
	var (
		c            models.Credential
		meta         []byte
		f            columns.Fields
		status       string
		lastAccessed sql.NullTime
	)
	if err := s.Scan(&c.ID, &c.OwnerID, &c.Title, &c.Category, &meta,
		&f.Username, &f.Password, &f.URL, &f.Notes,
		&c.Version, &status, &lastAccessed, &c.AccessCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if c.Metadata, err = columns.DecodeMetadata(meta); err != nil {
		return nil, err
	}
	if c.Username, c.Password, c.URL, c.Notes, err = f.Decode(); err != nil {
		return nil, err
	}
	c.Status = models.CredentialStatus(status)
	if lastAccessed.Valid {
		t := lastAccessed.Time
		c.LastAccessed = &t
	}
	return &c, nil
}
