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

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, img *models.Image) (*models.Image, error) {
	query := `INSERT INTO user_images (user_id, original_filename, stored_path, uploaded_at)
			VALUES (?, ?, ?, ?) RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		img.UserID, img.OriginalFilename, img.StoredPath, dbx.FormatSQLiteTime(img.UploadedAt)).Scan(&img.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert image: %w", err)
	}
	return img, nil
}

func (r *SQLiteRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Image, error) {
	query := `select id, user_id, original_filename, stored_path, uploaded_at from user_images
			where user_id=? order by uploaded_at desc, id desc`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select images: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Image, 0)
	for rows.Next() {
		item, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) GetByStoredPath(ctx context.Context, userID int64, storedPath string) (*models.Image, error) {
	query := `select id, user_id, original_filename, stored_path, uploaded_at from user_images
			where user_id=? and stored_path=?`

	item, err := scanImage(r.db.QueryRowContext(ctx, query, userID, storedPath))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select image: %w", err)
	}
	return item, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanImage(s scanner) (*models.Image, error) {
	var item models.Image
	var uploadedAt string
	if err := s.Scan(&item.ID, &item.UserID, &item.OriginalFilename, &item.StoredPath, &uploadedAt); err != nil {
		return nil, err
	}
	ts, err := dbx.ParseSQLiteTime(uploadedAt)
	if err != nil {
		return nil, err
	}
	item.UploadedAt = ts
	return &item, nil
}
