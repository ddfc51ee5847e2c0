package services

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/archive"
	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/archivestore"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/repomanager"
)

var payloadAAD = []byte("gophvault-backup-v1")

// ErrNoArchiveStore is returned by Export and Import when no store is configured.
var ErrNoArchiveStore = errors.New("archive store is not configured")

type backupCredential struct {
	Title     string            `json:"title"`
	Category  string            `json:"category,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Secrets   models.Secrets    `json:"secrets"`
	CreatedAt time.Time         `json:"createdAt"`
}

// backupPayload is the plaintext inside an archive. It never carries the
// TOTP seed, only whether two-factor was on.
type backupPayload struct {
	UserID           string             `json:"userId"`
	TwoFactorEnabled bool               `json:"twoFactorEnabled"`
	Credentials      []backupCredential `json:"credentials"`
}

// RestoreSummary reports what a restore replaced the live vault with.
type RestoreSummary struct {
	CredentialsRestored int
	NotesRestored       int
	// TwoFactorReenrollRequired is set when the backed-up vault had
	// two-factor enabled. Seeds are never restored.
	TwoFactorReenrollRequired bool
}

// ValidationResult is the key-less view of an archive.
type ValidationResult struct {
	IsValid  bool
	Reason   string
	Metadata archive.Metadata
}

// BackupService exports a whole vault into one archive and restores it.
type BackupService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	credentials *CredentialService
	store       archivestore.Store
	kdf         cryptox.KDFParams
	logger      logging.Logger
	now         func() time.Time
}

// NewBackupService builds the service. store may be nil, in which case only
// the in-memory archive operations are available.
func NewBackupService(db *sql.DB, m repomanager.RepositoryManager, credentials *CredentialService, store archivestore.Store, kdf cryptox.KDFParams, logger logging.Logger) *BackupService {
	return &BackupService{
		db:          db,
		repomanager: m,
		credentials: credentials,
		store:       store,
		kdf:         kdf,
		logger:      logger.With("module", "backup"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// backupSalt is derived from the user id so that an archive can be opened
// without the vault's own salt.
func backupSalt(userID string) []byte {
	sum := sha256.Sum256([]byte("gophvault/backup/" + userID))
	return sum[:cryptox.SaltSize]
}

func (s *BackupService) wrappingKey(userID, masterPassword string) ([]byte, error) {
	return cryptox.DeriveKey(masterPassword, backupSalt(userID), cryptox.ContextBackup, s.kdf)
}

// CreateBackup decrypts the active vault into memory, encrypts it under a
// fresh content key and wraps that key under the master password.
func (s *BackupService) CreateBackup(ctx context.Context, userID, masterPassword string) (*archive.Archive, error) {
	kr, err := unlock(ctx, s.repomanager.Users(s.db), userID, masterPassword, s.kdf)
	if err != nil {
		return nil, err
	}
	defer kr.Wipe()

	keys, err := newFieldKeys(kr)
	if err != nil {
		return nil, err
	}
	defer keys.wipe()

	items, err := s.repomanager.Credentials(s.db).ListByOwner(ctx, userID, models.StatusActive)
	if err != nil {
		return nil, err
	}

	payload := backupPayload{UserID: userID, Credentials: make([]backupCredential, 0, len(items))}
	for _, c := range items {
		secrets, err := keys.decryptCredential(c)
		if err != nil {
			return nil, err
		}
		payload.Credentials = append(payload.Credentials, backupCredential{
			Title:     c.Title,
			Category:  c.Category,
			Metadata:  c.Metadata,
			Secrets:   *secrets,
			CreatedAt: c.CreatedAt,
		})
	}

	tf, err := s.repomanager.TwoFactor(s.db).Get(ctx, userID)
	switch {
	case err == nil:
		payload.TwoFactorEnabled = tf.IsEnabled
	case !errors.Is(err, common.ErrorNotFound):
		return nil, err
	}

	contentKey := common.GenerateRandByteArray(cryptox.KeySize)
	defer common.WipeByteArray(contentKey)

	sealed, err := cryptox.EncryptJSON(payload, contentKey, payloadAAD)
	if err != nil {
		return nil, fmt.Errorf("encrypt payload: %w", err)
	}

	wk, err := s.wrappingKey(userID, masterPassword)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(wk)

	wrapped, err := cryptox.Encrypt(contentKey, wk, []byte(userID))
	if err != nil {
		return nil, fmt.Errorf("wrap content key: %w", err)
	}

	a := &archive.Archive{
		FormatVersion:     archive.FormatVersion,
		CreatedAt:         s.now(),
		WrappedContentKey: archive.EncodeWrappedKey(wrapped),
		EncryptedPayload:  archive.EncodePayload(sealed),
	}
	if err := a.Seal(); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "backup created", "user_id", userID, "credentials", len(payload.Credentials))
	return a, nil
}

// Validate checks an archive without any key.
func (s *BackupService) Validate(a *archive.Archive) ValidationResult {
	res := ValidationResult{Metadata: a.Metadata()}
	if err := a.Verify(); err != nil {
		res.Reason = err.Error()
		return res
	}
	res.IsValid = true
	return res
}

// RestoreBackup replaces the user's active credentials with the archive
// content. The checksum is verified before any key is derived and the new
// state is fully built in memory before the single write transaction.
func (s *BackupService) RestoreBackup(ctx context.Context, a *archive.Archive, userID, masterPassword string) (*RestoreSummary, error) {
	if err := a.Verify(); err != nil {
		return nil, err
	}

	payload, err := s.open(a, userID, masterPassword)
	if err != nil {
		return nil, err
	}

	inputs := make([]CredentialInput, 0, len(payload.Credentials))
	summary := &RestoreSummary{TwoFactorReenrollRequired: payload.TwoFactorEnabled}
	for i, bc := range payload.Credentials {
		in := CredentialInput{Title: bc.Title, Category: bc.Category, Metadata: bc.Metadata, Secrets: bc.Secrets}
		if err := validateInput(in); err != nil {
			return nil, fmt.Errorf("archive entry %d: %w", i, err)
		}
		inputs = append(inputs, in)
		if in.Category == models.CategoryNote {
			summary.NotesRestored++
		} else {
			summary.CredentialsRestored++
		}
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		kr, err := unlockOrEnroll(ctx, s.repomanager.Users(tx), userID, masterPassword, s.kdf)
		if err != nil {
			return err
		}
		defer kr.Wipe()

		keys, err := newFieldKeys(kr)
		if err != nil {
			return err
		}
		defer keys.wipe()

		if _, err := s.repomanager.Credentials(tx).SoftDeleteAll(ctx, userID, s.now()); err != nil {
			return err
		}
		for _, in := range inputs {
			if _, err := s.credentials.insert(ctx, tx, keys, userID, in); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "backup restored", "user_id", userID,
		"credentials", summary.CredentialsRestored, "notes", summary.NotesRestored)
	return summary, nil
}

// open unwraps the content key and decrypts the payload. A failed unwrap
// means the password (or user) does not match the archive.
func (s *BackupService) open(a *archive.Archive, userID, masterPassword string) (*backupPayload, error) {
	wrapped, err := archive.DecodeWrappedKey(a.WrappedContentKey)
	if err != nil {
		return nil, err
	}
	sealed, err := archive.DecodePayload(a.EncryptedPayload)
	if err != nil {
		return nil, err
	}

	wk, err := s.wrappingKey(userID, masterPassword)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(wk)

	contentKey, err := cryptox.Decrypt(wrapped, wk, []byte(userID))
	if err != nil {
		return nil, common.ErrWrongMasterPassword
	}
	defer common.WipeByteArray(contentKey)

	var payload backupPayload
	if err := cryptox.DecryptJSON(sealed, contentKey, payloadAAD, &payload); err != nil {
		return nil, fmt.Errorf("%w: payload", common.ErrIntegrity)
	}
	if payload.UserID != userID {
		return nil, common.ErrWrongMasterPassword
	}
	return &payload, nil
}

// Export creates a backup and hands it to the archive store. It returns the
// storage key.
func (s *BackupService) Export(ctx context.Context, userID, masterPassword string) (string, error) {
	if s.store == nil {
		return "", ErrNoArchiveStore
	}

	a, err := s.CreateBackup(ctx, userID, masterPassword)
	if err != nil {
		return "", err
	}
	b, err := archive.Marshal(a)
	if err != nil {
		return "", err
	}

	key := archivestore.StorageKey(userID, a.CreatedAt)
	if err := s.store.Put(ctx, key, b); err != nil {
		return "", err
	}

	s.logger.Info(ctx, "backup exported", "user_id", userID, "storage_key", key)
	return key, nil
}

// Import fetches an archive from the store and restores it.
func (s *BackupService) Import(ctx context.Context, userID, masterPassword, key string) (*RestoreSummary, error) {
	if s.store == nil {
		return nil, ErrNoArchiveStore
	}
	if !archivestore.OwnedBy(userID, key) {
		return nil, common.ErrorNotFound
	}

	b, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	a, err := archive.Parse(b)
	if err != nil {
		return nil, err
	}
	return s.RestoreBackup(ctx, a, userID, masterPassword)
}

// ShareURL returns a time-limited download link when the store supports it.
// Keys that belong to another user are reported as not found.
func (s *BackupService) ShareURL(ctx context.Context, userID, key string) (string, error) {
	if !archivestore.OwnedBy(userID, key) {
		return "", common.ErrorNotFound
	}
	p, ok := s.store.(archivestore.Presigner)
	if !ok {
		return "", fmt.Errorf("%w: store cannot presign", common.ErrInvalidInput)
	}
	return p.PresignGet(ctx, key)
}
