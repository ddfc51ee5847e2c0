package services

import (
	"context"
	"path/filepath"
	"sort"
	"testing"

	"github.com/dmitrijs2005/gophvault/internal/archive"
	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/server/archivestore"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plainCredential struct {
	Title    string
	Category string
	Secrets  models.Secrets
}

// snapshotVault decrypts every active credential, sorted by title.
func snapshotVault(t *testing.T, f *fixture, userID, password string) []plainCredential {
	t.Helper()
	ctx := context.Background()

	list, err := f.credentials.List(ctx, userID)
	require.NoError(t, err)

	out := make([]plainCredential, 0, len(list))
	for _, c := range list {
		got, err := f.credentials.Reveal(ctx, userID, password, c.ID)
		require.NoError(t, err)
		out = append(out, plainCredential{Title: got.Title, Category: got.Category, Secrets: got.Secrets})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

func seedVault(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()

	_, err := f.credentials.Create(ctx, testUser, testPassword, loginInput("mail", "m-pass"))
	require.NoError(t, err)
	_, err = f.credentials.Create(ctx, testUser, testPassword, loginInput("bank", "b-pass"))
	require.NoError(t, err)
	_, err = f.credentials.Create(ctx, testUser, testPassword, CredentialInput{
		Title: "recipe", Category: models.CategoryNote, Secrets: models.Secrets{Notes: "salt, then pepper"},
	})
	require.NoError(t, err)
}

func TestBackup_RoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	seedVault(t, f)
	want := snapshotVault(t, f, testUser, testPassword)

	a, err := f.backup.CreateBackup(ctx, testUser, testPassword)
	require.NoError(t, err)
	assert.Equal(t, archive.FormatVersion, a.FormatVersion)
	assert.True(t, f.backup.Validate(a).IsValid)

	// diverge from the backup
	list, err := f.credentials.List(ctx, testUser)
	require.NoError(t, err)
	require.NoError(t, f.credentials.Delete(ctx, testUser, list[0].ID))
	_, err = f.credentials.Create(ctx, testUser, testPassword, loginInput("new", "n-pass"))
	require.NoError(t, err)

	b, err := archive.Marshal(a)
	require.NoError(t, err)
	parsed, err := archive.Parse(b)
	require.NoError(t, err)

	summary, err := f.backup.RestoreBackup(ctx, parsed, testUser, testPassword)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.CredentialsRestored)
	assert.Equal(t, 1, summary.NotesRestored)
	assert.False(t, summary.TwoFactorReenrollRequired)

	assert.Equal(t, want, snapshotVault(t, f, testUser, testPassword))
}

func TestBackup_WrongPasswordImportsNothing(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	seedVault(t, f)

	a, err := f.backup.CreateBackup(ctx, testUser, testPassword)
	require.NoError(t, err)

	_, err = f.credentials.Create(ctx, testUser, testPassword, loginInput("after", "x"))
	require.NoError(t, err)
	before := snapshotVault(t, f, testUser, testPassword)

	_, err = f.backup.RestoreBackup(ctx, a, testUser, "not the password")
	assert.ErrorIs(t, err, common.ErrWrongMasterPassword)

	_, err = f.backup.RestoreBackup(ctx, a, "other-user", testPassword)
	assert.ErrorIs(t, err, common.ErrWrongMasterPassword)

	assert.Equal(t, before, snapshotVault(t, f, testUser, testPassword))
}

func TestBackup_CreateRequiresPassword(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	seedVault(t, f)

	_, err := f.backup.CreateBackup(ctx, testUser, "wrong")
	assert.ErrorIs(t, err, common.ErrWrongMasterPassword)
}

func TestBackup_TamperedPayloadFailsIntegrity(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	seedVault(t, f)
	before := snapshotVault(t, f, testUser, testPassword)

	a, err := f.backup.CreateBackup(ctx, testUser, testPassword)
	require.NoError(t, err)

	ct := []byte(a.EncryptedPayload.Ciphertext)
	if ct[10] == 'a' {
		ct[10] = 'b'
	} else {
		ct[10] = 'a'
	}
	a.EncryptedPayload.Ciphertext = string(ct)

	res := f.backup.Validate(a)
	assert.False(t, res.IsValid)
	assert.NotEmpty(t, res.Reason)

	_, err = f.backup.RestoreBackup(ctx, a, testUser, testPassword)
	assert.ErrorIs(t, err, common.ErrIntegrity)

	assert.Equal(t, before, snapshotVault(t, f, testUser, testPassword))
}

func TestBackup_RestoreIntoFreshUser(t *testing.T) {
	src := newFixture(t, nil)
	ctx := context.Background()
	seedVault(t, src)
	want := snapshotVault(t, src, testUser, testPassword)

	a, err := src.backup.CreateBackup(ctx, testUser, testPassword)
	require.NoError(t, err)

	dst := newFixture(t, nil)
	summary, err := dst.backup.RestoreBackup(ctx, a, testUser, testPassword)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.CredentialsRestored+summary.NotesRestored)
	assert.Equal(t, want, snapshotVault(t, dst, testUser, testPassword))
}

func TestBackup_TwoFactorIsNotCarried(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	seedVault(t, f)
	enableTwoFactor(t, f)

	a, err := f.backup.CreateBackup(ctx, testUser, testPassword)
	require.NoError(t, err)

	dst := newFixture(t, nil)
	summary, err := dst.backup.RestoreBackup(ctx, a, testUser, testPassword)
	require.NoError(t, err)
	assert.True(t, summary.TwoFactorReenrollRequired)

	enabled, _, err := dst.twoFactor.Status(ctx, testUser)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestBackup_ExportImportThroughBoltStore(t *testing.T) {
	store, err := archivestore.NewBoltStore(filepath.Join(t.TempDir(), "archives.db"))
	require.NoError(t, err)
	defer store.Close()

	f := newFixture(t, store)
	ctx := context.Background()
	seedVault(t, f)
	want := snapshotVault(t, f, testUser, testPassword)

	key, err := f.backup.Export(ctx, testUser, testPassword)
	require.NoError(t, err)

	list, err := f.credentials.List(ctx, testUser)
	require.NoError(t, err)
	for _, c := range list {
		require.NoError(t, f.credentials.Delete(ctx, testUser, c.ID))
	}

	summary, err := f.backup.Import(ctx, testUser, testPassword, key)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.CredentialsRestored)
	assert.Equal(t, want, snapshotVault(t, f, testUser, testPassword))

	_, err = f.backup.Import(ctx, testUser, testPassword, "backups/"+testUser+"/missing.json")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = f.backup.Import(ctx, "someone-else", testPassword, key)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = f.backup.ShareURL(ctx, testUser, key)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = f.backup.ShareURL(ctx, "someone-else", key)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestBackup_ExportWithoutStore(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.backup.Export(context.Background(), testUser, testPassword)
	assert.ErrorIs(t, err, ErrNoArchiveStore)
}
