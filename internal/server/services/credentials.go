package services

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const (
	maxTitleLength    = 100
	maxCategoryLength = 50
)

// Field names used as associated data.
const (
	fieldUsername = "username"
	fieldPassword = "password"
	fieldURL      = "url"
	fieldNotes    = "notes"
)

// CredentialInput is the full desired state of a credential. Update replaces
// every field; an empty optional secret clears it.
type CredentialInput struct {
	Title    string
	Category string
	Metadata map[string]string
	Secrets  models.Secrets
}

// CredentialSummary is the non-secret view of a credential.
type CredentialSummary struct {
	ID           string
	Title        string
	Category     string
	Metadata     map[string]string
	Version      int64
	Status       models.CredentialStatus
	LastAccessed *time.Time
	AccessCount  int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RevealedCredential is a credential together with its decrypted secrets.
type RevealedCredential struct {
	CredentialSummary
	Secrets models.Secrets
}

func summarize(c *models.Credential) *CredentialSummary {
	return &CredentialSummary{
		ID:           c.ID,
		Title:        c.Title,
		Category:     c.Category,
		Metadata:     c.Metadata,
		Version:      c.Version,
		Status:       c.Status,
		LastAccessed: c.LastAccessed,
		AccessCount:  c.AccessCount,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// CredentialService keeps credentials encrypted at rest and records every
// content change in the version ledger. The master password is required on
// each call that touches ciphertext; no key outlives the call.
type CredentialService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	kdf         cryptox.KDFParams
	logger      logging.Logger
	now         func() time.Time
}

func NewCredentialService(db *sql.DB, m repomanager.RepositoryManager, kdf cryptox.KDFParams, logger logging.Logger) *CredentialService {
	return &CredentialService{
		db:          db,
		repomanager: m,
		kdf:         kdf,
		logger:      logger.With("module", "credentials"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func validateInput(in CredentialInput) error {
	n := utf8.RuneCountInString(in.Title)
	if n == 0 {
		return common.NewValidationError("title", "is required")
	}
	if n > maxTitleLength {
		return common.NewValidationError("title", fmt.Sprintf("must be at most %d characters", maxTitleLength))
	}
	if utf8.RuneCountInString(in.Category) > maxCategoryLength {
		return common.NewValidationError("category", fmt.Sprintf("must be at most %d characters", maxCategoryLength))
	}
	if in.Secrets.Password == "" && in.Category != models.CategoryNote {
		return common.NewValidationError("password", "is required")
	}
	if in.Category == models.CategoryNote && in.Secrets.Notes == "" {
		return common.NewValidationError("notes", "is required for a note")
	}
	return nil
}

// fieldKeys holds the two subkeys a credential row needs.
type fieldKeys struct {
	credential []byte
	note       []byte
}

func newFieldKeys(kr *cryptox.Keyring) (*fieldKeys, error) {
	ck, err := kr.Key(cryptox.ContextCredential)
	if err != nil {
		return nil, err
	}
	nk, err := kr.Key(cryptox.ContextNote)
	if err != nil {
		common.WipeByteArray(ck)
		return nil, err
	}
	return &fieldKeys{credential: ck, note: nk}, nil
}

func (k *fieldKeys) wipe() {
	common.WipeByteArray(k.credential)
	common.WipeByteArray(k.note)
}

func (k *fieldKeys) forField(field string) []byte {
	if field == fieldNotes {
		return k.note
	}
	return k.credential
}

type encryptedFields struct {
	username, password, url, notes *cryptox.EncryptedField
}

func (k *fieldKeys) encrypt(credentialID string, s models.Secrets) (*encryptedFields, error) {
	var out encryptedFields
	var err error
	if out.username, err = encryptString(s.Username, k.credential, fieldAAD(credentialID, fieldUsername)); err != nil {
		return nil, err
	}
	if out.password, err = encryptString(s.Password, k.credential, fieldAAD(credentialID, fieldPassword)); err != nil {
		return nil, err
	}
	if out.url, err = encryptString(s.URL, k.credential, fieldAAD(credentialID, fieldURL)); err != nil {
		return nil, err
	}
	if out.notes, err = encryptString(s.Notes, k.note, fieldAAD(credentialID, fieldNotes)); err != nil {
		return nil, err
	}
	return &out, nil
}

func (k *fieldKeys) decrypt(credentialID string, username, password, url, notes *cryptox.EncryptedField) (*models.Secrets, error) {
	var s models.Secrets
	var err error
	if s.Username, err = decryptString(username, k.credential, fieldAAD(credentialID, fieldUsername)); err != nil {
		return nil, err
	}
	if s.Password, err = decryptString(password, k.credential, fieldAAD(credentialID, fieldPassword)); err != nil {
		return nil, err
	}
	if s.URL, err = decryptString(url, k.credential, fieldAAD(credentialID, fieldURL)); err != nil {
		return nil, err
	}
	if s.Notes, err = decryptString(notes, k.note, fieldAAD(credentialID, fieldNotes)); err != nil {
		return nil, err
	}
	return &s, nil
}

func (k *fieldKeys) decryptCredential(c *models.Credential) (*models.Secrets, error) {
	return k.decrypt(c.ID, c.Username, c.Password, c.URL, c.Notes)
}

func (k *fieldKeys) decryptSnapshot(s *models.CredentialSnapshot) (*models.Secrets, error) {
	return k.decrypt(s.CredentialID, s.Username, s.Password, s.URL, s.Notes)
}

// Create encrypts the secrets and stores the credential at version 1 along
// with its first ledger entry.
func (s *CredentialService) Create(ctx context.Context, userID, masterPassword string, in CredentialInput) (*CredentialSummary, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var created *models.Credential

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
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

		created, err = s.insert(ctx, tx, keys, userID, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "credential created", "user_id", userID, "credential_id", created.ID)
	return summarize(created), nil
}

// insert writes a new credential and its version 1 snapshot.
func (s *CredentialService) insert(ctx context.Context, tx dbx.DBTX, keys *fieldKeys, userID string, in CredentialInput) (*models.Credential, error) {
	now := s.now()
	c := &models.Credential{
		ID:        uuid.NewString(),
		OwnerID:   userID,
		Title:     in.Title,
		Category:  in.Category,
		Metadata:  maps.Clone(in.Metadata),
		Version:   1,
		Status:    models.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	enc, err := keys.encrypt(c.ID, in.Secrets)
	if err != nil {
		return nil, err
	}
	c.Username, c.Password, c.URL, c.Notes = enc.username, enc.password, enc.url, enc.notes

	if err := s.repomanager.Credentials(tx).Create(ctx, c); err != nil {
		return nil, fmt.Errorf("error creating credential: %w", err)
	}
	if err := appendSnapshot(ctx, s.repomanager.Versions(tx), models.SnapshotOf(uuid.NewString(), c, now)); err != nil {
		return nil, err
	}
	return c, nil
}

// Update replaces the credential content. expectedVersion is the version the
// caller last saw; zero skips the check against the caller's view but the
// write is still guarded against concurrent updates. An update that changes
// nothing returns the current state without a new version.
func (s *CredentialService) Update(ctx context.Context, userID, masterPassword, credentialID string, expectedVersion int64, in CredentialInput) (*CredentialSummary, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var updated *models.Credential
	var changed bool

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		kr, err := unlock(ctx, s.repomanager.Users(tx), userID, masterPassword, s.kdf)
		if err != nil {
			return err
		}
		defer kr.Wipe()

		keys, err := newFieldKeys(kr)
		if err != nil {
			return err
		}
		defer keys.wipe()

		cur, err := s.getActive(ctx, tx, userID, credentialID)
		if err != nil {
			return err
		}
		if expectedVersion != 0 && cur.Version != expectedVersion {
			return common.ErrVersionConflict
		}

		updated, changed, err = s.apply(ctx, tx, keys, cur, in, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logger.Info(ctx, "credential updated", "user_id", userID, "credential_id", credentialID, "version", updated.Version)
	}
	return summarize(updated), nil
}

// apply is the shared update path: it re-encrypts changed fields, bumps the
// version, guards the write with the current version and appends the
// post-update snapshot. force creates a version even if nothing changed.
func (s *CredentialService) apply(ctx context.Context, tx dbx.DBTX, keys *fieldKeys, cur *models.Credential, in CredentialInput, force bool) (*models.Credential, bool, error) {
	old, err := keys.decryptCredential(cur)
	if err != nil {
		return nil, false, err
	}

	next := *cur
	next.Title = in.Title
	next.Category = in.Category
	next.Metadata = maps.Clone(in.Metadata)

	changed := cur.Title != in.Title || cur.Category != in.Category || !maps.Equal(cur.Metadata, in.Metadata)

	fields := []struct {
		name     string
		old, new string
		slot     **cryptox.EncryptedField
	}{
		{fieldUsername, old.Username, in.Secrets.Username, &next.Username},
		{fieldPassword, old.Password, in.Secrets.Password, &next.Password},
		{fieldURL, old.URL, in.Secrets.URL, &next.URL},
		{fieldNotes, old.Notes, in.Secrets.Notes, &next.Notes},
	}
	for _, f := range fields {
		if f.old == f.new {
			continue
		}
		changed = true
		enc, err := encryptString(f.new, keys.forField(f.name), fieldAAD(cur.ID, f.name))
		if err != nil {
			return nil, false, err
		}
		*f.slot = enc
	}

	if !changed && !force {
		return cur, false, nil
	}

	now := s.now()
	next.Version = cur.Version + 1
	next.UpdatedAt = now

	if err := s.repomanager.Credentials(tx).Update(ctx, &next, cur.Version); err != nil {
		return nil, false, err
	}
	if err := appendSnapshot(ctx, s.repomanager.Versions(tx), models.SnapshotOf(uuid.NewString(), &next, now)); err != nil {
		return nil, false, err
	}
	return &next, true, nil
}

// Reveal decrypts the credential and records the access. It is the only
// call that returns plaintext secrets.
func (s *CredentialService) Reveal(ctx context.Context, userID, masterPassword, credentialID string) (*RevealedCredential, error) {
	var out *RevealedCredential

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		kr, err := unlock(ctx, s.repomanager.Users(tx), userID, masterPassword, s.kdf)
		if err != nil {
			return err
		}
		defer kr.Wipe()

		keys, err := newFieldKeys(kr)
		if err != nil {
			return err
		}
		defer keys.wipe()

		c, err := s.getActive(ctx, tx, userID, credentialID)
		if err != nil {
			return err
		}
		secrets, err := keys.decryptCredential(c)
		if err != nil {
			return err
		}

		now := s.now()
		count, err := s.repomanager.Credentials(tx).TouchAccess(ctx, userID, credentialID, now)
		if err != nil {
			return err
		}
		c.AccessCount = count
		c.LastAccessed = &now

		out = &RevealedCredential{CredentialSummary: *summarize(c), Secrets: *secrets}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "credential revealed", "user_id", userID, "credential_id", credentialID)
	return out, nil
}

// Delete marks the credential deleted. Its ledger is kept.
func (s *CredentialService) Delete(ctx context.Context, userID, credentialID string) error {
	if err := s.repomanager.Credentials(s.db).SoftDelete(ctx, userID, credentialID, s.now()); err != nil {
		return err
	}
	s.logger.Info(ctx, "credential deleted", "user_id", userID, "credential_id", credentialID)
	return nil
}

// List returns active credentials without any secret material.
func (s *CredentialService) List(ctx context.Context, userID string) ([]*CredentialSummary, error) {
	return s.list(ctx, userID, models.StatusActive)
}

// ListDeleted returns soft-deleted credentials for audit.
func (s *CredentialService) ListDeleted(ctx context.Context, userID string) ([]*CredentialSummary, error) {
	return s.list(ctx, userID, models.StatusDeleted)
}

func (s *CredentialService) list(ctx context.Context, userID string, status models.CredentialStatus) ([]*CredentialSummary, error) {
	items, err := s.repomanager.Credentials(s.db).ListByOwner(ctx, userID, status)
	if err != nil {
		return nil, err
	}
	out := make([]*CredentialSummary, 0, len(items))
	for _, c := range items {
		out = append(out, summarize(c))
	}
	return out, nil
}

func (s *CredentialService) getActive(ctx context.Context, tx dbx.DBTX, userID, credentialID string) (*models.Credential, error) {
	c, err := s.repomanager.Credentials(tx).GetByID(ctx, userID, credentialID)
	if err != nil {
		return nil, err
	}
	if c.Status != models.StatusActive {
		return nil, common.ErrorNotFound
	}
	return c, nil
}
