// Package services implements the imgkeeper use cases: accounts, bearer
// tokens, image storage and listing. Service is the facade the transports
// call; it never accepts a raw user id from them.
package services

import (
	"context"
	"database/sql"
	"errors"
	"path"
	"strings"

	"github.com/dmitrijs2005/imgkeeper/internal/common"
	"github.com/dmitrijs2005/imgkeeper/internal/cryptox"
	"github.com/dmitrijs2005/imgkeeper/internal/logging"
	"github.com/dmitrijs2005/imgkeeper/internal/server/blob"
	"github.com/dmitrijs2005/imgkeeper/internal/server/models"
	"github.com/dmitrijs2005/imgkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/imgkeeper/internal/server/transform"
)

type Service struct {
	credentials *CredentialStore
	tokens      *TokenIssuer
	assets      *AssetStore
	catalog     *Catalog
	remover     transform.Remover
	log         logging.Logger
}

func NewService(
	db *sql.DB,
	m repomanager.RepositoryManager,
	hasher cryptox.PasswordHasher,
	blobs blob.Store,
	remover transform.Remover,
	maxUploadBytes int64,
	log logging.Logger,
) *Service {
	log = log.With("module", "services")
	return &Service{
		credentials: NewCredentialStore(db, m, hasher),
		tokens:      NewTokenIssuer(db, m),
		assets:      NewAssetStore(db, m, blobs, maxUploadBytes, log),
		catalog:     NewCatalog(db, m),
		remover:     remover,
		log:         log,
	}
}

func (s *Service) Register(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.credentials.Register(ctx, username, password)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "user registered", "user_id", user.ID, "username", user.UserName)
	return user, nil
}

// Login verifies the password and returns a new token, invalidating the
// previous one.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	id, err := s.credentials.Verify(ctx, username, password)
	if err != nil {
		return "", err
	}
	token, err := s.tokens.Issue(ctx, id.UserID)
	if err != nil {
		return "", err
	}
	s.log.Debug(ctx, "user logged in", "user_id", id.UserID)
	return token, nil
}

// Authenticate resolves a bearer token.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.Identity, error) {
	return s.tokens.Resolve(ctx, token)
}

func (s *Service) UploadImage(ctx context.Context, token, filename string, data []byte) (string, error) {
	id, err := s.tokens.Resolve(ctx, token)
	if err != nil {
		return "", err
	}
	return s.assets.Save(ctx, id, filename, data)
}

func (s *Service) ListImages(ctx context.Context, token string) ([]*models.Image, error) {
	id, err := s.tokens.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.catalog.ListImages(ctx, id.UserID)
}

func (s *Service) OpenImage(ctx context.Context, token, storedPath string) ([]byte, error) {
	id, err := s.tokens.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.assets.Open(ctx, id, storedPath)
}

// ProcessedImage is a background-free PNG and where it was stored.
type ProcessedImage struct {
	Data       []byte
	StoredPath string
}

// RemoveBackground transforms the image and stores the PNG result as
// "<name>_no_bg.png".
func (s *Service) RemoveBackground(ctx context.Context, token, filename string, data []byte) (*ProcessedImage, error) {
	id, err := s.tokens.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	if filename == "" {
		return nil, common.Wrap(common.ErrorValidation, errors.New("filename is required"))
	}
	if len(data) == 0 {
		return nil, common.Wrap(common.ErrorValidation, errors.New("image is empty"))
	}

	out, err := s.remover.Remove(ctx, data)
	if err != nil {
		return nil, err
	}

	storedPath, err := s.assets.Save(ctx, id, ProcessedFilename(filename), out)
	if err != nil {
		return nil, err
	}
	return &ProcessedImage{Data: out, StoredPath: storedPath}, nil
}

// ProcessedFilename swaps the extension of name for "_no_bg.png".
func ProcessedFilename(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	if base == "" || base == "." || base == "/" {
		base = "image"
	}
	return base + "_no_bg.png"
}
