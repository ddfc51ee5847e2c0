// Package columns converts model values to and from their database column
// representation. Encrypted fields and metadata are stored as JSON.
package columns

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/gophvault/internal/cryptox"
)

// Fields is the set of encrypted columns shared by credentials and their
// version snapshots.
type Fields struct {
	Username []byte
	Password []byte
	URL      []byte
	Notes    []byte
}

// EncodeFields marshals each field; nil fields become NULL.
func EncodeFields(username, password, url, notes *cryptox.EncryptedField) (Fields, error) {
	var out Fields
	var err error
	if out.Username, err = cryptox.MarshalField(username); err != nil {
		return out, fmt.Errorf("encode username: %w", err)
	}
	if out.Password, err = cryptox.MarshalField(password); err != nil {
		return out, fmt.Errorf("encode password: %w", err)
	}
	if out.URL, err = cryptox.MarshalField(url); err != nil {
		return out, fmt.Errorf("encode url: %w", err)
	}
	if out.Notes, err = cryptox.MarshalField(notes); err != nil {
		return out, fmt.Errorf("encode notes: %w", err)
	}
	return out, nil
}

// Decode is the inverse of EncodeFields.
func (f Fields) Decode() (username, password, url, notes *cryptox.EncryptedField, err error) {
	if username, err = cryptox.UnmarshalField(f.Username); err != nil {
		return
	}
	if password, err = cryptox.UnmarshalField(f.Password); err != nil {
		return
	}
	if url, err = cryptox.UnmarshalField(f.URL); err != nil {
		return
	}
	notes, err = cryptox.UnmarshalField(f.Notes)
	return
}

// EncodeMetadata returns nil for an empty map so the column stays NULL.
func EncodeMetadata(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

func DecodeMetadata(b []byte) (map[string]string, error) {
	if len(b) == 0 {
		return nil, nil
	}
	m := map[string]string{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return m, nil
}
