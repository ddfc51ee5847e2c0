// Package archivestore hands sealed backup archives to an external store:
// an S3-compatible bucket or a local bbolt file.
package archivestore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store keeps opaque archive bytes by key.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	// Get returns common.ErrorNotFound for an unknown key.
	Get(ctx context.Context, key string) ([]byte, error)
}

// Presigner is implemented by stores that can hand out a time-limited
// download link.
type Presigner interface {
	PresignGet(ctx context.Context, key string) (string, error)
}

// StorageKey returns a fresh key of the form backups/<user>/<y>/<m>/<d>/<uuid>.json.
func StorageKey(userID string, t time.Time) string {
	return fmt.Sprintf("backups/%s/%d/%d/%d/%v.json", userID, t.Year(), t.Month(), t.Day(), uuid.New())
}

// OwnedBy reports whether key was issued by StorageKey for userID.
func OwnedBy(userID, key string) bool {
	return userID != "" && strings.HasPrefix(key, "backups/"+userID+"/")
}
