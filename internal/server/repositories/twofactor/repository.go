package twofactor

import (
	"context"

	"github.com/dmitrijs2005/gophvault/internal/server/models"
)

// Repository stores one two-factor record per user.
type Repository interface {
	Get(ctx context.Context, userID string) (*models.TwoFactorSecret, error)
	// GetForUpdate locks the row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, userID string) (*models.TwoFactorSecret, error)
	Upsert(ctx context.Context, s *models.TwoFactorSecret) error
	Delete(ctx context.Context, userID string) error
}
