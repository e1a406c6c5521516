package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/imgkeeper/internal/common"
	"github.com/dmitrijs2005/imgkeeper/internal/filex"
	"github.com/dmitrijs2005/imgkeeper/internal/logging"
	"github.com/dmitrijs2005/imgkeeper/internal/server/blob"
	"github.com/dmitrijs2005/imgkeeper/internal/server/models"
	"github.com/dmitrijs2005/imgkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/imgkeeper/internal/timex"
)

// AssetStore writes image bytes to blob storage and records them.
type AssetStore struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       blob.Store
	clock       *timex.MonotonicClock
	maxBytes    int64
	log         logging.Logger
}

// NewAssetStore returns a store; maxBytes <= 0 disables the size limit.
func NewAssetStore(db *sql.DB, m repomanager.RepositoryManager, blobs blob.Store, maxBytes int64, log logging.Logger) *AssetStore {
	return &AssetStore{
		db:          db,
		repomanager: m,
		blobs:       blobs,
		clock:       timex.NewMonotonicClock(),
		maxBytes:    maxBytes,
		log:         log,
	}
}

// StorageKey builds "<username>/<YYYYMMDDhhmmssffffff>_<name>".
func StorageKey(username string, at time.Time, safeName string) string {
	return username + "/" + timex.CompactStamp(at) + "_" + safeName
}

// Save requires an identity already resolved by the caller.
func (s *AssetStore) Save(ctx context.Context, id *models.Identity, filename string, data []byte) (string, error) {
	if id == nil {
		return "", common.ErrorUnauthorized
	}
	if filename == "" {
		return "", common.Wrap(common.ErrorValidation, errors.New("filename is required"))
	}
	if len(data) == 0 {
		return "", common.Wrap(common.ErrorValidation, errors.New("image is empty"))
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return "", common.Wrap(common.ErrorValidation, fmt.Errorf("image exceeds %d bytes", s.maxBytes))
	}

	safe := filex.SecureFilename(filename)
	if safe == "" {
		return "", common.Wrap(common.ErrorValidation, fmt.Errorf("filename %q has no usable characters", filename))
	}

	at := s.clock.Now()
	key := StorageKey(id.UserName, at, safe)

	if err := s.blobs.Put(ctx, key, data); err != nil {
		return "", common.Wrap(common.ErrorStorageUnavailable, fmt.Errorf("error writing %s: %w", key, err))
	}

	repo := s.repomanager.Images(s.db)
	_, err := repo.Create(ctx, &models.Image{
		UserID:           id.UserID,
		OriginalFilename: safe,
		StoredPath:       key,
		UploadedAt:       at,
	})
	if err != nil {
		if derr := s.blobs.Delete(context.WithoutCancel(ctx), key); derr != nil {
			s.log.Warn(ctx, "orphaned blob", "key", key, "error", derr)
		}
		return "", common.Wrap(common.ErrorStorageUnavailable, fmt.Errorf("error recording %s: %w", key, err))
	}

	return key, nil
}

// Open returns the bytes of one of id's stored images. Paths owned by other
// users are reported as common.ErrorNotFound.
func (s *AssetStore) Open(ctx context.Context, id *models.Identity, storedPath string) ([]byte, error) {
	if id == nil {
		return nil, common.ErrorUnauthorized
	}

	_, err := s.repomanager.Images(s.db).GetByStoredPath(ctx, id.UserID, storedPath)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, common.Wrap(common.ErrorStorageUnavailable, err)
	}

	data, err := s.blobs.Get(ctx, storedPath)
	if err != nil {
		return nil, common.Wrap(common.ErrorStorageUnavailable, fmt.Errorf("error reading %s: %w", storedPath, err))
	}
	return data, nil
}
