package repomanager

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/credentials"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/twofactor"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/users"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/versions"
)

// MemoryRepositoryManager keeps all state in process memory. The DBTX passed
// to the factories is ignored, so writes are not rolled back with a failed
// transaction. It backs service tests and local experiments.
type MemoryRepositoryManager struct {
	mu          sync.Mutex
	users       map[string]*models.User
	credentials map[string]*models.Credential
	versions    map[string][]*models.CredentialSnapshot
	twoFactor   map[string]*models.TwoFactorSecret
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		users:       map[string]*models.User{},
		credentials: map[string]*models.Credential{},
		versions:    map[string][]*models.CredentialSnapshot{},
		twoFactor:   map[string]*models.TwoFactorSecret{},
	}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *MemoryRepositoryManager) Users(dbx.DBTX) users.Repository { return memUsers{m} }

func (m *MemoryRepositoryManager) Credentials(dbx.DBTX) credentials.Repository {
	return memCredentials{m}
}

func (m *MemoryRepositoryManager) Versions(dbx.DBTX) versions.Repository { return memVersions{m} }

func (m *MemoryRepositoryManager) TwoFactor(dbx.DBTX) twofactor.Repository { return memTwoFactor{m} }

type memUsers struct{ m *MemoryRepositoryManager }

func (r memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if existing, ok := r.m.users[u.ID]; ok {
		cp := *existing
		return &cp, nil
	}
	cp := *u
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	r.m.users[u.ID] = &cp
	out := cp
	return &out, nil
}

func (r memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

type memCredentials struct{ m *MemoryRepositoryManager }

func cloneCredential(c *models.Credential) *models.Credential {
	cp := *c
	cp.Metadata = cloneMap(c.Metadata)
	cp.Username = c.Username.Clone()
	cp.Password = c.Password.Clone()
	cp.URL = c.URL.Clone()
	cp.Notes = c.Notes.Clone()
	if c.LastAccessed != nil {
		t := *c.LastAccessed
		cp.LastAccessed = &t
	}
	return &cp
}

func cloneMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (r memCredentials) Create(_ context.Context, c *models.Credential) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.credentials[c.ID]; ok {
		return common.ErrVersionConflict
	}
	r.m.credentials[c.ID] = cloneCredential(c)
	return nil
}

func (r memCredentials) GetByID(_ context.Context, ownerID, id string) (*models.Credential, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.credentials[id]
	if !ok || c.OwnerID != ownerID {
		return nil, common.ErrorNotFound
	}
	return cloneCredential(c), nil
}

func (r memCredentials) Update(_ context.Context, c *models.Credential, expectedVersion int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cur, ok := r.m.credentials[c.ID]
	if !ok || cur.OwnerID != c.OwnerID || cur.Version != expectedVersion || cur.Status != models.StatusActive {
		return common.ErrVersionConflict
	}
	next := cloneCredential(c)
	next.Status = cur.Status
	next.AccessCount = cur.AccessCount
	next.LastAccessed = cur.LastAccessed
	next.CreatedAt = cur.CreatedAt
	r.m.credentials[c.ID] = next
	return nil
}

func (r memCredentials) TouchAccess(_ context.Context, ownerID, id string, at time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.credentials[id]
	if !ok || c.OwnerID != ownerID {
		return 0, common.ErrorNotFound
	}
	c.AccessCount++
	t := at
	c.LastAccessed = &t
	return c.AccessCount, nil
}

func (r memCredentials) SoftDelete(_ context.Context, ownerID, id string, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.credentials[id]
	if !ok || c.OwnerID != ownerID || c.Status != models.StatusActive {
		return common.ErrorNotFound
	}
	c.Status = models.StatusDeleted
	c.UpdatedAt = at
	return nil
}

func (r memCredentials) SoftDeleteAll(_ context.Context, ownerID string, at time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, c := range r.m.credentials {
		if c.OwnerID == ownerID && c.Status == models.StatusActive {
			c.Status = models.StatusDeleted
			c.UpdatedAt = at
			n++
		}
	}
	return n, nil
}

func (r memCredentials) ListByOwner(_ context.Context, ownerID string, status models.CredentialStatus) ([]*models.Credential, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Credential
	for _, c := range r.m.credentials {
		if c.OwnerID == ownerID && c.Status == status {
			out = append(out, cloneCredential(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

type memVersions struct{ m *MemoryRepositoryManager }

func cloneSnapshot(s *models.CredentialSnapshot) *models.CredentialSnapshot {
	cp := *s
	cp.Metadata = cloneMap(s.Metadata)
	cp.Username = s.Username.Clone()
	cp.Password = s.Password.Clone()
	cp.URL = s.URL.Clone()
	cp.Notes = s.Notes.Clone()
	return &cp
}

func (r memVersions) Append(_ context.Context, s *models.CredentialSnapshot) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.versions[s.CredentialID] {
		if existing.Version == s.Version {
			return common.ErrVersionConflict
		}
	}
	list := append(r.m.versions[s.CredentialID], cloneSnapshot(s))
	sort.Slice(list, func(i, j int) bool { return list[i].Version < list[j].Version })
	r.m.versions[s.CredentialID] = list
	return nil
}

func (r memVersions) List(_ context.Context, credentialID string) ([]*models.CredentialSnapshot, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.CredentialSnapshot
	for _, s := range r.m.versions[credentialID] {
		out = append(out, cloneSnapshot(s))
	}
	return out, nil
}

func (r memVersions) Get(_ context.Context, credentialID string, version int64) (*models.CredentialSnapshot, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, s := range r.m.versions[credentialID] {
		if s.Version == version {
			return cloneSnapshot(s), nil
		}
	}
	return nil, common.ErrorNotFound
}

type memTwoFactor struct{ m *MemoryRepositoryManager }

func cloneTwoFactor(s *models.TwoFactorSecret) *models.TwoFactorSecret {
	cp := *s
	cp.EncryptedSecret = s.EncryptedSecret.Clone()
	cp.EncryptedRecoveryCodes = s.EncryptedRecoveryCodes.Clone()
	return &cp
}

func (r memTwoFactor) Get(_ context.Context, userID string) (*models.TwoFactorSecret, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.twoFactor[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return cloneTwoFactor(s), nil
}

func (r memTwoFactor) GetForUpdate(ctx context.Context, userID string) (*models.TwoFactorSecret, error) {
	return r.Get(ctx, userID)
}

func (r memTwoFactor) Upsert(_ context.Context, s *models.TwoFactorSecret) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.twoFactor[s.UserID] = cloneTwoFactor(s)
	return nil
}

func (r memTwoFactor) Delete(_ context.Context, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.twoFactor[userID]; !ok {
		return common.ErrorNotFound
	}
	delete(r.m.twoFactor, userID)
	return nil
}
