package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/users"
)

// unlock derives the keyring for an existing user and checks it against the
// stored verifier. The caller must Wipe the keyring.
func unlock(ctx context.Context, repo users.Repository, userID, masterPassword string, p cryptox.KDFParams) (*cryptox.Keyring, error) {
	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return openKeyring(user, masterPassword, p)
}

// unlockOrEnroll is unlock for write paths: a user seen for the first time
// gets a fresh salt and verifier bound to masterPassword.
func unlockOrEnroll(ctx context.Context, repo users.Repository, userID, masterPassword string, p cryptox.KDFParams) (*cryptox.Keyring, error) {
	user, err := repo.GetByID(ctx, userID)
	if err == nil {
		return openKeyring(user, masterPassword, p)
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	salt := cryptox.GenerateSalt()
	kr, err := cryptox.NewKeyring(masterPassword, salt, p)
	if err != nil {
		return nil, err
	}
	verifier, err := kr.Verifier()
	if err != nil {
		kr.Wipe()
		return nil, err
	}

	stored, err := repo.Create(ctx, &models.User{ID: userID, Salt: salt, Verifier: verifier})
	if err != nil {
		kr.Wipe()
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	if subtle.ConstantTimeCompare(stored.Salt, salt) == 1 {
		return kr, nil
	}

	// Lost a race with a concurrent first write; use the winner's salt.
	kr.Wipe()
	return openKeyring(stored, masterPassword, p)
}

func openKeyring(user *models.User, masterPassword string, p cryptox.KDFParams) (*cryptox.Keyring, error) {
	kr, err := cryptox.NewKeyring(masterPassword, user.Salt, p)
	if err != nil {
		return nil, err
	}
	verifier, err := kr.Verifier()
	if err != nil {
		kr.Wipe()
		return nil, err
	}
	if subtle.ConstantTimeCompare(verifier, user.Verifier) != 1 {
		kr.Wipe()
		return nil, common.ErrWrongMasterPassword
	}
	return kr, nil
}

// fieldAAD binds an encrypted value to its owner and slot so that
// ciphertexts cannot be swapped between credentials or fields.
func fieldAAD(ownerID, field string) []byte {
	return []byte(ownerID + "|" + field)
}

// decryptString maps every decryption failure to ErrWrongMasterPassword so a
// corrupted row and a wrong password look the same to the caller.
func decryptString(f *cryptox.EncryptedField, key, aad []byte) (string, error) {
	if f == nil {
		return "", nil
	}
	b, err := cryptox.Decrypt(f, key, aad)
	if err != nil {
		return "", common.ErrWrongMasterPassword
	}
	defer common.WipeByteArray(b)
	return string(b), nil
}

// encryptString returns nil for an empty value so the column stays NULL.
func encryptString(s string, key, aad []byte) (*cryptox.EncryptedField, error) {
	if s == "" {
		return nil, nil
	}
	b := []byte(s)
	defer common.WipeByteArray(b)
	return cryptox.Encrypt(b, key, aad)
}
