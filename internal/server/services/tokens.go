package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/imgkeeper/internal/common"
	"github.com/dmitrijs2005/imgkeeper/internal/server/models"
	"github.com/dmitrijs2005/imgkeeper/internal/server/repositories/repomanager"
)

const (
	tokenBytes = 32
	// attempts when a fresh token collides with another user's
	maxIssueAttempts = 3
)

// TokenIssuer hands out opaque bearer tokens, one live token per user.
type TokenIssuer struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	newToken    func() (string, error)
}

func NewTokenIssuer(db *sql.DB, m repomanager.RepositoryManager) *TokenIssuer {
	return &TokenIssuer{
		db:          db,
		repomanager: m,
		newToken:    func() (string, error) { return common.MakeRandHexString(tokenBytes) },
	}
}

// Issue replaces any previous token of userID with a fresh one.
func (s *TokenIssuer) Issue(ctx context.Context, userID int64) (string, error) {
	repo := s.repomanager.AuthTokens(s.db)

	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		token, err := s.newToken()
		if err != nil {
			return "", common.Wrap(common.ErrorInternal, err)
		}

		err = repo.Replace(ctx, userID, token, time.Now().UTC())
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, common.ErrorAlreadyExists) {
			return "", common.Wrap(common.ErrorStorageUnavailable, fmt.Errorf("error storing token: %w", err))
		}
	}

	return "", common.Wrap(common.ErrorInternal, errors.New("could not generate a unique token"))
}

func (s *TokenIssuer) Resolve(ctx context.Context, token string) (*models.Identity, error) {
	if token == "" {
		return nil, common.ErrorUnauthorized
	}

	id, err := s.repomanager.AuthTokens(s.db).Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.Wrap(common.ErrorStorageUnavailable, fmt.Errorf("error resolving token: %w", err))
	}
	return id, nil
}
