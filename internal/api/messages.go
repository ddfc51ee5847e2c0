package api

import (
	"encoding/json"
	"time"
)

// Secrets are the sensitive fields of a credential. They only ever appear
// in requests that store them and in reveal responses.
type Secrets struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	URL      string `json:"url,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// Credential is the non-secret view of a stored credential.
type Credential struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Category     string            `json:"category,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Version      int64             `json:"version"`
	Status       string            `json:"status"`
	LastAccessed *time.Time        `json:"lastAccessed,omitempty"`
	AccessCount  int64             `json:"accessCount"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

type CredentialInput struct {
	Title    string            `json:"title"`
	Category string            `json:"category,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Secrets  Secrets           `json:"secrets"`
}

type CreateCredentialRequest struct {
	MasterPassword string          `json:"masterPassword"`
	Credential     CredentialInput `json:"credential"`
}

type UpdateCredentialRequest struct {
	MasterPassword string `json:"masterPassword"`
	CredentialID   string `json:"credentialId"`
	// ExpectedVersion enables optimistic locking when non-zero.
	ExpectedVersion int64           `json:"expectedVersion,omitempty"`
	Credential      CredentialInput `json:"credential"`
}

type CredentialResponse struct {
	Credential Credential `json:"credential"`
}

type RevealCredentialRequest struct {
	MasterPassword string `json:"masterPassword"`
	CredentialID   string `json:"credentialId"`
}

type RevealCredentialResponse struct {
	Credential Credential `json:"credential"`
	Secrets    Secrets    `json:"secrets"`
}

type DeleteCredentialRequest struct {
	CredentialID string `json:"credentialId"`
}

type ListCredentialsRequest struct {
	Deleted bool `json:"deleted,omitempty"`
}

type ListCredentialsResponse struct {
	Credentials []Credential `json:"credentials"`
}

type Empty struct{}

type Version struct {
	Version    int64             `json:"version"`
	Title      string            `json:"title"`
	Category   string            `json:"category,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CapturedAt time.Time         `json:"capturedAt"`
}

type ListVersionsRequest struct {
	CredentialID string `json:"credentialId"`
}

type ListVersionsResponse struct {
	Versions []Version `json:"versions"`
}

type RevealVersionRequest struct {
	MasterPassword string `json:"masterPassword"`
	CredentialID   string `json:"credentialId"`
	Version        int64  `json:"version"`
}

type RevealVersionResponse struct {
	Secrets Secrets `json:"secrets"`
}

type RestoreVersionRequest struct {
	MasterPassword string `json:"masterPassword"`
	CredentialID   string `json:"credentialId"`
	Version        int64  `json:"version"`
}

type MasterPasswordRequest struct {
	MasterPassword string `json:"masterPassword"`
}

// BackupResponse carries a serialized archive.
type BackupResponse struct {
	Archive json.RawMessage `json:"archive"`
}

type ValidateBackupRequest struct {
	Archive json.RawMessage `json:"archive"`
}

type ValidateBackupResponse struct {
	IsValid       bool      `json:"isValid"`
	Reason        string    `json:"reason,omitempty"`
	FormatVersion int       `json:"formatVersion,omitempty"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
	PayloadSize   int       `json:"payloadSize,omitempty"`
}

type RestoreBackupRequest struct {
	MasterPassword string          `json:"masterPassword"`
	Archive        json.RawMessage `json:"archive"`
}

type RestoreBackupResponse struct {
	CredentialsRestored       int  `json:"credentialsRestored"`
	NotesRestored             int  `json:"notesRestored"`
	TwoFactorReenrollRequired bool `json:"twoFactorReenrollRequired"`
}

type ExportBackupResponse struct {
	Key string `json:"key"`
}

type ImportBackupRequest struct {
	MasterPassword string `json:"masterPassword"`
	Key            string `json:"key"`
}

type ShareBackupRequest struct {
	Key string `json:"key"`
}

type ShareBackupResponse struct {
	URL string `json:"url"`
}

type EnrollTwoFactorResponse struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
}

type StoreTwoFactorRequest struct {
	MasterPassword string `json:"masterPassword"`
	Secret         string `json:"secret"`
}

type RecoveryCodesResponse struct {
	RecoveryCodes []string `json:"recoveryCodes"`
}

type TwoFactorCodeRequest struct {
	MasterPassword string `json:"masterPassword"`
	Code           string `json:"code"`
	// Window overrides the server's verification window, in 30s steps.
	Window uint `json:"window,omitempty"`
}

type VerifyTwoFactorResponse struct {
	Valid bool `json:"valid"`
}

type ConsumeRecoveryCodeResponse struct {
	Valid          bool `json:"valid"`
	RemainingCodes int  `json:"remainingCodes"`
}

type TwoFactorStatusResponse struct {
	Enabled  bool `json:"enabled"`
	Verified bool `json:"verified"`
}

type CheckBreachRequest struct {
	Passwords []string `json:"passwords"`
}

type BreachResult struct {
	Found bool `json:"found"`
	Count int  `json:"count"`
}

type CheckBreachResponse struct {
	Results []BreachResult `json:"results"`
}
