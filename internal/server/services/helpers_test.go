package services

import (
	"database/sql"
	"testing"

	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/archivestore"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

const (
	testUser     = "user-1"
	testPassword = "correct horse battery staple"
)

type fixture struct {
	db          *sql.DB
	rm          *repomanager.MemoryRepositoryManager
	credentials *CredentialService
	ledger      *VersionLedger
	backup      *BackupService
	twoFactor   *TwoFactorService
}

func newTestLogger() logging.Logger {
	return logging.Discard()
}

// newFixture wires every service over the in-memory repositories. The sqlite
// handle only provides transactions; no tables are touched.
func newFixture(t *testing.T, store archivestore.Store) *fixture {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rm := repomanager.NewMemoryRepositoryManager()
	log := newTestLogger()
	kdf := cryptox.TestKDFParams

	creds := NewCredentialService(db, rm, kdf, log)
	return &fixture{
		db:          db,
		rm:          rm,
		credentials: creds,
		ledger:      NewVersionLedger(db, rm, creds, kdf, log),
		backup:      NewBackupService(db, rm, creds, store, kdf, log),
		twoFactor:   NewTwoFactorService(db, rm, kdf, TOTPConfig{Issuer: "gophvault-test", Window: 1, FallbackWindow: 3}, log),
	}
}
