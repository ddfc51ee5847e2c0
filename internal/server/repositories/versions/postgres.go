// Package versions provides the PostgreSQL-backed, append-only ledger of
// credential snapshots.
package versions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/columns"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
// It never updates or deletes rows.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append inserts a snapshot. A second snapshot for the same
// (credential, version) yields common.ErrVersionConflict.
func (r *PostgresRepository) Append(ctx context.Context, s *models.CredentialSnapshot) error {
	meta, err := columns.EncodeMetadata(s.Metadata)
	if err != nil {
		return err
	}
	f, err := columns.EncodeFields(s.Username, s.Password, s.URL, s.Notes)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO credential_versions (id, credential_id, version, title, category, metadata,
			username, password, url, notes, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.db.ExecContext(ctx, query,
		s.ID, s.CredentialID, s.Version, s.Title, s.Category, meta,
		f.Username, f.Password, f.URL, f.Notes, s.CapturedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrVersionConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// List returns all snapshots of a credential ordered by version ascending.
func (r *PostgresRepository) List(ctx context.Context, credentialID string) ([]*models.CredentialSnapshot, error) {
	query := `
		SELECT id, credential_id, version, title, category, metadata, username, password, url, notes, captured_at
		FROM credential_versions
		WHERE credential_id = $1
		ORDER BY version ASC
	`
	rows, err := r.db.QueryContext(ctx, query, credentialID)
	if err != nil {
		return nil, fmt.Errorf("failed to select versions: %w", err)
	}
	defer rows.Close()

	var result []*models.CredentialSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Get(ctx context.Context, credentialID string, version int64) (*models.CredentialSnapshot, error) {
	query := `
		SELECT id, credential_id, version, title, category, metadata, username, password, url, notes, captured_at
		FROM credential_versions
		WHERE credential_id = $1 AND version = $2
	`
	s, err := scanSnapshot(r.db.QueryRowContext(ctx, query, credentialID, version))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(sc scanner) (*models.CredentialSnapshot, error) {
	var (
		s    models.CredentialSnapshot
		meta []byte
		f    columns.Fields
	)
	if err := sc.Scan(&s.ID, &s.CredentialID, &s.Version, &s.Title, &s.Category, &meta,
		&f.Username, &f.Password, &f.URL, &f.Notes, &s.CapturedAt); err != nil {
		return nil, err
	}

	var err error
	if s.Metadata, err = columns.DecodeMetadata(meta); err != nil {
		return nil, err
	}
	if s.Username, s.Password, s.URL, s.Notes, err = f.Decode(); err != nil {
		return nil, err
	}
	return &s, nil
}
