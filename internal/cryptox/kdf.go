// Package cryptox implements key derivation and field-level authenticated
// encryption for the vault.
//
// Keys are derived from the master password with Argon2id and then split per
// purpose with HKDF-SHA512, so a key leaked for one context (say "backup")
// is useless for another ("credential").
package cryptox

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"io"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the length of every derived and content key.
	KeySize = 32
	// SaltSize is the length of a per-user salt.
	SaltSize = 16
)

// Key contexts. Keys for different contexts are independent.
const (
	ContextCredential = "credential"
	ContextNote       = "note"
	ContextBackup     = "backup"
	ContextTOTP       = "totp"
	contextVerifier   = "verifier"
)

// KDFParams holds Argon2id cost parameters.
type KDFParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultKDFParams: 1 pass, 64 MiB, 4 lanes.
var DefaultKDFParams = KDFParams{Time: 1, Memory: 64 * 1024, Threads: 4}

// TestKDFParams are deliberately weak and must only be used in tests.
var TestKDFParams = KDFParams{Time: 1, Memory: 8, Threads: 1}

func (p KDFParams) valid() bool {
	return p.Time > 0 && p.Memory > 0 && p.Threads > 0
}

// Keyring holds the Argon2id output for one operation and hands out
// per-context subkeys. Call Wipe when the operation ends.
type Keyring struct {
	master []byte
	salt   []byte
}

// NewKeyring runs the memory-hard KDF once for (password, salt).
func NewKeyring(password string, salt []byte, p KDFParams) (*Keyring, error) {
	if password == "" {
		return nil, fmt.Errorf("%w: password is empty", common.ErrInvalidInput)
	}
	if len(salt) == 0 {
		return nil, fmt.Errorf("%w: salt is empty", common.ErrInvalidInput)
	}
	if !p.valid() {
		return nil, fmt.Errorf("%w: bad kdf params", common.ErrInvalidInput)
	}

	pw := []byte(password)
	defer common.WipeByteArray(pw)

	master := argon2.IDKey(pw, salt, p.Time, p.Memory, p.Threads, KeySize)
	s := make([]byte, len(salt))
	copy(s, salt)

	return &Keyring{master: master, salt: s}, nil
}

// Key returns the subkey for the given context.
func (k *Keyring) Key(context string) ([]byte, error) {
	if context == "" {
		return nil, fmt.Errorf("%w: context is empty", common.ErrInvalidInput)
	}
	if k.master == nil {
		return nil, fmt.Errorf("%w: keyring wiped", common.ErrInvalidInput)
	}

	r := hkdf.New(sha512.New, k.master, k.salt, []byte("gophvault/"+context))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

// Verifier returns a value that can be stored to check the master password
// later without keeping any key.
func (k *Keyring) Verifier() ([]byte, error) {
	key, err := k.Key(contextVerifier)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)
	return MakeVerifier(key), nil
}

// Wipe zeroes the master material. The keyring is unusable afterwards.
func (k *Keyring) Wipe() {
	common.WipeByteArray(k.master)
	k.master = nil
}

// DeriveKey turns (password, salt, context) into a 256-bit key.
// The same inputs always give the same key.
func DeriveKey(password string, salt []byte, context string, p KDFParams) ([]byte, error) {
	kr, err := NewKeyring(password, salt, p)
	if err != nil {
		return nil, err
	}
	defer kr.Wipe()

	return kr.Key(context)
}

// MakeVerifier hashes a key for storage.
func MakeVerifier(key []byte) []byte {
	hash := sha256.Sum256(key)
	return hash[:]
}

// GenerateSalt returns a fresh random salt of SaltSize bytes.
func GenerateSalt() []byte {
	return common.GenerateRandByteArray(SaltSize)
}
