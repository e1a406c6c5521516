// Package authtokens stores the bearer token of each user: one row per user,
// looked up through a unique index on the token.
package authtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/imgkeeper/internal/common"
	"github.com/dmitrijs2005/imgkeeper/internal/dbx"
	"github.com/dmitrijs2005/imgkeeper/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Replace(ctx context.Context, userID int64, token string, issuedAt time.Time) error {
	query := `
		INSERT INTO auth_tokens (user_id, token, issued_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET token = EXCLUDED.token, issued_at = EXCLUDED.issued_at
	`
	if _, err := r.db.ExecContext(ctx, query, userID, token, issuedAt); err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Resolve(ctx context.Context, token string) (*models.Identity, error) {
	query := `
		SELECT u.id, u.username
		FROM auth_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.token = $1
	`
	id := &models.Identity{}
	if err := r.db.QueryRowContext(ctx, query, token).Scan(&id.UserID, &id.UserName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}
