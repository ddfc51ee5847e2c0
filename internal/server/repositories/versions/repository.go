package versions

import (
	"context"

	"github.com/dmitrijs2005/gophvault/internal/server/models"
)

// Repository is the append-only store of credential snapshots.
type Repository interface {
	Append(ctx context.Context, s *models.CredentialSnapshot) error
	List(ctx context.Context, credentialID string) ([]*models.CredentialSnapshot, error)
	Get(ctx context.Context, credentialID string, version int64) (*models.CredentialSnapshot, error)
}
