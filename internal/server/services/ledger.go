package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/versions"
)

var errVersionOrder = fmt.Errorf("%w: snapshot out of order", common.ErrVersionConflict)

// appendSnapshot enforces strictly increasing versions per credential before
// handing the snapshot to the append-only store.
func appendSnapshot(ctx context.Context, repo versions.Repository, snap *models.CredentialSnapshot) error {
	existing, err := repo.List(ctx, snap.CredentialID)
	if err != nil {
		return err
	}
	if n := len(existing); n > 0 && existing[n-1].Version >= snap.Version {
		return fmt.Errorf("%w: version %d is not after %d", errVersionOrder, snap.Version, existing[n-1].Version)
	}
	return repo.Append(ctx, snap)
}

// VersionLedger exposes the immutable history of a credential.
type VersionLedger struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	credentials *CredentialService
	kdf         cryptox.KDFParams
	logger      logging.Logger
}

func NewVersionLedger(db *sql.DB, m repomanager.RepositoryManager, credentials *CredentialService, kdf cryptox.KDFParams, logger logging.Logger) *VersionLedger {
	return &VersionLedger{
		db:          db,
		repomanager: m,
		credentials: credentials,
		kdf:         kdf,
		logger:      logger.With("module", "ledger"),
	}
}

// Append adds a snapshot to the history of its credential.
func (l *VersionLedger) Append(ctx context.Context, snap *models.CredentialSnapshot) error {
	return appendSnapshot(ctx, l.repomanager.Versions(l.db), snap)
}

// List returns the snapshots of a credential owned by userID, oldest first.
// Deleted credentials keep their history.
func (l *VersionLedger) List(ctx context.Context, userID, credentialID string) ([]*models.CredentialSnapshot, error) {
	if _, err := l.repomanager.Credentials(l.db).GetByID(ctx, userID, credentialID); err != nil {
		return nil, err
	}
	return l.repomanager.Versions(l.db).List(ctx, credentialID)
}

func (l *VersionLedger) Get(ctx context.Context, userID, credentialID string, version int64) (*models.CredentialSnapshot, error) {
	if _, err := l.repomanager.Credentials(l.db).GetByID(ctx, userID, credentialID); err != nil {
		return nil, err
	}
	return l.repomanager.Versions(l.db).Get(ctx, credentialID, version)
}

// Reveal decrypts one historical version.
func (l *VersionLedger) Reveal(ctx context.Context, userID, masterPassword, credentialID string, version int64) (*models.Secrets, error) {
	snap, err := l.Get(ctx, userID, credentialID, version)
	if err != nil {
		return nil, err
	}

	kr, err := unlock(ctx, l.repomanager.Users(l.db), userID, masterPassword, l.kdf)
	if err != nil {
		return nil, err
	}
	defer kr.Wipe()

	keys, err := newFieldKeys(kr)
	if err != nil {
		return nil, err
	}
	defer keys.wipe()

	return keys.decryptSnapshot(snap)
}

// Restore makes the content of targetVersion current again. History is never
// rewritten: the restored state becomes a new version.
func (l *VersionLedger) Restore(ctx context.Context, userID, masterPassword, credentialID string, targetVersion int64) (*CredentialSummary, error) {
	var restored *models.Credential

	err := dbx.WithTx(ctx, l.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		kr, err := unlock(ctx, l.repomanager.Users(tx), userID, masterPassword, l.kdf)
		if err != nil {
			return err
		}
		defer kr.Wipe()

		keys, err := newFieldKeys(kr)
		if err != nil {
			return err
		}
		defer keys.wipe()

		cur, err := l.credentials.getActive(ctx, tx, userID, credentialID)
		if err != nil {
			return err
		}
		snap, err := l.repomanager.Versions(tx).Get(ctx, credentialID, targetVersion)
		if err != nil {
			return err
		}
		secrets, err := keys.decryptSnapshot(snap)
		if err != nil {
			return err
		}

		in := CredentialInput{
			Title:    snap.Title,
			Category: snap.Category,
			Metadata: snap.Metadata,
			Secrets:  *secrets,
		}
		restored, _, err = l.credentials.apply(ctx, tx, keys, cur, in, true)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info(ctx, "credential restored", "user_id", userID, "credential_id", credentialID,
		"from_version", targetVersion, "version", restored.Version)
	return summarize(restored), nil
}
