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

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Replace(ctx context.Context, userID int64, token string, issuedAt time.Time) error {
	query := `INSERT INTO auth_tokens (user_id, token, issued_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET token = excluded.token, issued_at = excluded.issued_at`

	if _, err := r.db.ExecContext(ctx, query, userID, token, dbx.FormatSQLiteTime(issuedAt)); err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Resolve(ctx context.Context, token string) (*models.Identity, error) {
	query := `SELECT u.id, u.username FROM auth_tokens t JOIN users u ON u.id = t.user_id WHERE t.token = ?`

	id := &models.Identity{}
	if err := r.db.QueryRowContext(ctx, query, token).Scan(&id.UserID, &id.UserName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}
