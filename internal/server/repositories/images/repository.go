package images

import (
	"context"

	"github.com/dmitrijs2005/imgkeeper/internal/server/models"
)

type Repository interface {
	// Create inserts img and fills its ID.
	Create(ctx context.Context, img *models.Image) (*models.Image, error)
	// ListByUser returns the user's records, newest upload first.
	ListByUser(ctx context.Context, userID int64) ([]*models.Image, error)
	// GetByStoredPath returns common.ErrorNotFound unless storedPath belongs
	// to userID.
	GetByStoredPath(ctx context.Context, userID int64, storedPath string) (*models.Image, error)
}
