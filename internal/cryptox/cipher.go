package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/gophvault/internal/common"
)

const (
	// IVSize is the per-encryption IV length. GCM runs with a 16-byte nonce.
	IVSize = 16
	// TagSize is the GCM authentication tag length.
	TagSize = 16
)

// EncryptedField is one encrypted value together with its IV and tag.
// KeyFingerprint identifies the key without revealing it.
type EncryptedField struct {
	Ciphertext     []byte `json:"ciphertext"`
	IV             []byte `json:"iv"`
	AuthTag        []byte `json:"tag"`
	KeyFingerprint string `json:"kfp,omitempty"`
}

// Clone returns a deep copy of f, or nil for nil.
func (f *EncryptedField) Clone() *EncryptedField {
	if f == nil {
		return nil
	}
	return &EncryptedField{
		Ciphertext:     append([]byte(nil), f.Ciphertext...),
		IV:             append([]byte(nil), f.IV...),
		AuthTag:        append([]byte(nil), f.AuthTag...),
		KeyFingerprint: f.KeyFingerprint,
	}
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", common.ErrInvalidInput, KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, IVSize)
}

// Encrypt seals plaintext with AES-256-GCM under key, binding aad.
// Every call draws a fresh random IV.
func Encrypt(plaintext, key, aad []byte) (*EncryptedField, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	iv := common.GenerateRandByteArray(IVSize)

	sealed := aead.Seal(nil, iv, plaintext, aad)
	split := len(sealed) - TagSize

	return &EncryptedField{
		Ciphertext:     sealed[:split],
		IV:             iv,
		AuthTag:        sealed[split:],
		KeyFingerprint: Fingerprint(key),
	}, nil
}

// Decrypt opens f with key and aad. Any framing problem, wrong key or
// tag mismatch yields common.ErrDecryption and no plaintext.
func Decrypt(f *EncryptedField, key, aad []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if f == nil || len(f.IV) != IVSize || len(f.AuthTag) != TagSize {
		return nil, fmt.Errorf("%w: malformed field", common.ErrDecryption)
	}
	if f.KeyFingerprint != "" && subtle.ConstantTimeCompare([]byte(f.KeyFingerprint), []byte(Fingerprint(key))) != 1 {
		return nil, common.ErrDecryption
	}

	sealed := make([]byte, 0, len(f.Ciphertext)+TagSize)
	sealed = append(sealed, f.Ciphertext...)
	sealed = append(sealed, f.AuthTag...)

	plaintext, err := aead.Open(nil, f.IV, sealed, aad)
	if err != nil {
		return nil, common.ErrDecryption
	}
	return plaintext, nil
}

// EncryptJSON serializes v to JSON and encrypts it. The serialized
// plaintext is wiped before returning.
func EncryptJSON(v any, key, aad []byte) (*EncryptedField, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(plaintext)

	return Encrypt(plaintext, key, aad)
}

// DecryptJSON decrypts f and unmarshals the JSON into v.
func DecryptJSON(f *EncryptedField, key, aad []byte, v any) error {
	plaintext, err := Decrypt(f, key, aad)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(plaintext)

	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("%w: bad payload", common.ErrDecryption)
	}
	return nil
}

// Fingerprint is the hex of the first 8 bytes of SHA-256(key).
func Fingerprint(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:8])
}

// MarshalField encodes f for storage. nil encodes to nil.
func MarshalField(f *EncryptedField) ([]byte, error) {
	if f == nil {
		return nil, nil
	}
	return json.Marshal(f)
}

// UnmarshalField decodes a stored field. Empty input decodes to nil.
func UnmarshalField(b []byte) (*EncryptedField, error) {
	if len(b) == 0 {
		return nil, nil
	}
	f := &EncryptedField{}
	if err := json.Unmarshal(b, f); err != nil {
		return nil, fmt.Errorf("decode field: %w", err)
	}
	return f, nil
}
