// Package models defines server-side data models persisted in the database.
package models

import (
	"time"

	"github.com/dmitrijs2005/gophvault/internal/cryptox"
)

// CredentialStatus is the lifecycle tag of a credential. Deleted rows are
// kept for audit and restore.
type CredentialStatus string

const (
	StatusActive  CredentialStatus = "active"
	StatusDeleted CredentialStatus = "deleted"
)

// CategoryNote marks a credential that is a secure note.
const CategoryNote = "note"

// Credential is the live, encrypted state of a stored secret.
type Credential struct {
	ID       string
	OwnerID  string
	Title    string
	Category string
	// Metadata is non-secret and stored in clear.
	Metadata map[string]string

	Username *cryptox.EncryptedField
	Password *cryptox.EncryptedField
	URL      *cryptox.EncryptedField
	Notes    *cryptox.EncryptedField

	Version      int64
	Status       CredentialStatus
	LastAccessed *time.Time
	AccessCount  int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsNote reports whether the credential is a secure note.
func (c *Credential) IsNote() bool {
	return c.Category == CategoryNote
}

// CredentialSnapshot is an immutable copy of a credential's encrypted state
// at a given version.
type CredentialSnapshot struct {
	ID           string
	CredentialID string
	Version      int64
	Title        string
	Category     string
	Metadata     map[string]string

	Username *cryptox.EncryptedField
	Password *cryptox.EncryptedField
	URL      *cryptox.EncryptedField
	Notes    *cryptox.EncryptedField

	CapturedAt time.Time
}

// SnapshotOf copies the encrypted state of c.
func SnapshotOf(id string, c *Credential, at time.Time) *CredentialSnapshot {
	return &CredentialSnapshot{
		ID:           id,
		CredentialID: c.ID,
		Version:      c.Version,
		Title:        c.Title,
		Category:     c.Category,
		Metadata:     copyMetadata(c.Metadata),
		Username:     c.Username.Clone(),
		Password:     c.Password.Clone(),
		URL:          c.URL.Clone(),
		Notes:        c.Notes.Clone(),
		CapturedAt:   at,
	}
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Secrets is the decrypted, operation-scoped view of a credential's fields.
type Secrets struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	URL      string `json:"url,omitempty"`
	Notes    string `json:"notes,omitempty"`
}
