// Package images stores metadata for uploaded images. The bytes themselves
// live in blob storage under StoredPath.
package images

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/imgkeeper/internal/common"
	"github.com/dmitrijs2005/imgkeeper/internal/dbx"
	"github.com/dmitrijs2005/imgkeeper/internal/server/models"
)

// PostgresRepository implements image metadata storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, img *models.Image) (*models.Image, error) {
	query := `
		INSERT INTO user_images (user_id, original_filename, stored_path, uploaded_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		img.UserID, img.OriginalFilename, img.StoredPath, img.UploadedAt).Scan(&img.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return img, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Image, error) {
	query := ` SELECT id, user_id, original_filename, stored_path, uploaded_at FROM user_images
		WHERE user_id=$1
		ORDER BY uploaded_at DESC, id DESC
		`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select images: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Image, 0)
	for rows.Next() {
		var item models.Image
		if err := rows.Scan(&item.ID, &item.UserID, &item.OriginalFilename, &item.StoredPath, &item.UploadedAt); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) GetByStoredPath(ctx context.Context, userID int64, storedPath string) (*models.Image, error) {
	query := ` SELECT id, user_id, original_filename, stored_path, uploaded_at FROM user_images
		WHERE user_id=$1 AND stored_path=$2
		`

	result := &models.Image{}
	err := r.db.QueryRowContext(ctx, query, userID, storedPath).
		Scan(&result.ID, &result.UserID, &result.OriginalFilename, &result.StoredPath, &result.UploadedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select image: %w", err)
	}
	return result, nil
}
