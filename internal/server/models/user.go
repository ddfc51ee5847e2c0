package models

import "time"

// User holds the per-user KDF salt and the master password verifier.
// Neither value is secret on its own.
type User struct {
	ID        string
	Salt      []byte
	Verifier  []byte
	CreatedAt time.Time
}
