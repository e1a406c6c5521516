package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/imgkeeper/internal/common"
	"github.com/dmitrijs2005/imgkeeper/internal/server/models"
	"github.com/dmitrijs2005/imgkeeper/internal/server/repositories/repomanager"
)

// Catalog is the read side of the asset store.
type Catalog struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewCatalog(db *sql.DB, m repomanager.RepositoryManager) *Catalog {
	return &Catalog{db: db, repomanager: m}
}

// ListImages returns the user's images, newest first.
func (c *Catalog) ListImages(ctx context.Context, userID int64) ([]*models.Image, error) {
	items, err := c.repomanager.Images(c.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, common.Wrap(common.ErrorStorageUnavailable, err)
	}
	return items, nil
}
