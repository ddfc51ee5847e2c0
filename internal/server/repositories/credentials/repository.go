package credentials

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/server/models"
)

// Repository persists the live state of credentials.
type Repository interface {
	Create(ctx context.Context, c *models.Credential) error
	GetByID(ctx context.Context, ownerID, id string) (*models.Credential, error)
	// Update writes c only if the stored version equals expectedVersion,
	// otherwise it returns common.ErrVersionConflict.
	Update(ctx context.Context, c *models.Credential, expectedVersion int64) error
	TouchAccess(ctx context.Context, ownerID, id string, at time.Time) (int64, error)
	SoftDelete(ctx context.Context, ownerID, id string, at time.Time) error
	SoftDeleteAll(ctx context.Context, ownerID string, at time.Time) (int64, error)
	ListByOwner(ctx context.Context, ownerID string, status models.CredentialStatus) ([]*models.Credential, error)
}
