package authtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/imgkeeper/internal/server/models"
)

type Repository interface {
	// Replace stores token as the only live token of userID, superseding any
	// earlier one in a single statement. A token already held by another
	// user yields common.ErrorAlreadyExists.
	Replace(ctx context.Context, userID int64, token string, issuedAt time.Time) error
	// Resolve returns the owner of token or common.ErrorNotFound.
	Resolve(ctx context.Context, token string) (*models.Identity, error)
}
