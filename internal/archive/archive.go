// Package archive defines the on-disk backup format: an encrypted payload, the
// wrapped content key and a SHA-256 checksum over everything else.
package archive

import (
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
)

// FormatVersion is the only format this package reads and writes.
const FormatVersion = 1

// Payload is an AEAD output with every part hex encoded.
type Payload struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	Tag        string `json:"tag"`
}

// Archive is an encrypted vault export. It is immutable once sealed.
type Archive struct {
	FormatVersion     int       `json:"formatVersion"`
	CreatedAt         time.Time `json:"createdAt"`
	WrappedContentKey string    `json:"wrappedContentKey"`
	EncryptedPayload  Payload   `json:"encryptedPayload"`
	Checksum          string    `json:"checksum"`
}

// Metadata is what can be learned about an archive without any key.
type Metadata struct {
	FormatVersion int       `json:"formatVersion"`
	CreatedAt     time.Time `json:"createdAt"`
	PayloadSize   int       `json:"payloadSize"`
}

// ComputeChecksum hashes the canonical JSON of a with the checksum blanked.
func ComputeChecksum(a *Archive) (string, error) {
	cp := *a
	cp.Checksum = ""
	b, err := json.Marshal(&cp)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Seal fills in the checksum.
func (a *Archive) Seal() error {
	sum, err := ComputeChecksum(a)
	if err != nil {
		return err
	}
	a.Checksum = sum
	return nil
}

// Verify checks the format version and the checksum. It needs no key and
// fails with common.ErrIntegrity on any mismatch.
func (a *Archive) Verify() error {
	if a.FormatVersion != FormatVersion {
		return fmt.Errorf("%w: unsupported format version %d", common.ErrIntegrity, a.FormatVersion)
	}
	sum, err := ComputeChecksum(a)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrIntegrity, err)
	}
	if subtle.ConstantTimeCompare([]byte(sum), []byte(a.Checksum)) != 1 {
		return fmt.Errorf("%w: checksum mismatch", common.ErrIntegrity)
	}
	return nil
}

func (a *Archive) Metadata() Metadata {
	return Metadata{
		FormatVersion: a.FormatVersion,
		CreatedAt:     a.CreatedAt,
		PayloadSize:   len(a.EncryptedPayload.Ciphertext) / 2,
	}
}

// Marshal renders the archive as indented JSON.
func Marshal(a *Archive) ([]byte, error) {
	return json.MarshalIndent(a, "", "  ")
}

// Parse decodes archive bytes. Unreadable input is an integrity failure, not
// an input error, since it usually means the file was damaged in transit.
func Parse(b []byte) (*Archive, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()

	var a Archive
	if err := dec.Decode(&a); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrIntegrity, err)
	}
	return &a, nil
}

// EncodePayload converts a sealed field into its archive form.
func EncodePayload(f *cryptox.EncryptedField) Payload {
	return Payload{
		Ciphertext: hex.EncodeToString(f.Ciphertext),
		IV:         hex.EncodeToString(f.IV),
		Tag:        hex.EncodeToString(f.AuthTag),
	}
}

func DecodePayload(p Payload) (*cryptox.EncryptedField, error) {
	ct, err := hex.DecodeString(p.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: payload ciphertext", common.ErrIntegrity)
	}
	iv, err := hex.DecodeString(p.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: payload iv", common.ErrIntegrity)
	}
	tag, err := hex.DecodeString(p.Tag)
	if err != nil {
		return nil, fmt.Errorf("%w: payload tag", common.ErrIntegrity)
	}
	return &cryptox.EncryptedField{Ciphertext: ct, IV: iv, AuthTag: tag}, nil
}

// EncodeWrappedKey packs a wrapped content key as hex(iv || ciphertext || tag).
func EncodeWrappedKey(f *cryptox.EncryptedField) string {
	b := make([]byte, 0, len(f.IV)+len(f.Ciphertext)+len(f.AuthTag))
	b = append(b, f.IV...)
	b = append(b, f.Ciphertext...)
	b = append(b, f.AuthTag...)
	return hex.EncodeToString(b)
}

func DecodeWrappedKey(s string) (*cryptox.EncryptedField, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) < cryptox.IVSize+cryptox.TagSize {
		return nil, fmt.Errorf("%w: wrapped content key", common.ErrIntegrity)
	}
	split := len(b) - cryptox.TagSize
	return &cryptox.EncryptedField{
		IV:         b[:cryptox.IVSize],
		Ciphertext: b[cryptox.IVSize:split],
		AuthTag:    b[split:],
	}, nil
}
