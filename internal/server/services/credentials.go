package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/imgkeeper/internal/common"
	"github.com/dmitrijs2005/imgkeeper/internal/cryptox"
	"github.com/dmitrijs2005/imgkeeper/internal/server/models"
	"github.com/dmitrijs2005/imgkeeper/internal/server/repositories/repomanager"
)

// MaxUsernameLength is in bytes, after normalization.
const MaxUsernameLength = 64

// CredentialStore registers users and verifies their passwords.
type CredentialStore struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      cryptox.PasswordHasher

	dummyMu   sync.Mutex
	dummyHash string
}

func NewCredentialStore(db *sql.DB, m repomanager.RepositoryManager, hasher cryptox.PasswordHasher) *CredentialStore {
	return &CredentialStore{
		db:          db,
		repomanager: m,
		hasher:      hasher,
	}
}

// NormalizeUsername trims surrounding whitespace and lowercases, so "Demo"
// and " demo " name the same account.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// validateUsername expects a normalized name. The name doubles as the user's
// storage folder, so it must be a single valid path segment.
func validateUsername(name string) error {
	switch {
	case name == "":
		return common.Wrap(common.ErrorValidation, errors.New("username is required"))
	case len(name) > MaxUsernameLength:
		return common.Wrap(common.ErrorValidation, fmt.Errorf("username longer than %d bytes", MaxUsernameLength))
	case name == "." || name == "..":
		return common.Wrap(common.ErrorValidation, errors.New("username is reserved"))
	case strings.ContainsAny(name, "/\\\x00"):
		return common.Wrap(common.ErrorValidation, errors.New("username contains a path separator"))
	}
	return nil
}

func (s *CredentialStore) Register(ctx context.Context, username, password string) (*models.User, error) {
	name := NormalizeUsername(username)
	if err := validateUsername(name); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, common.Wrap(common.ErrorValidation, errors.New("password is required"))
	}

	pw := []byte(password)
	defer common.WipeByteArray(pw)

	hash, err := s.hasher.Hash(pw)
	if err != nil {
		if errors.Is(err, cryptox.ErrPasswordTooLong) {
			return nil, common.Wrap(common.ErrorValidation, err)
		}
		return nil, common.Wrap(common.ErrorInternal, err)
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.Create(ctx, &models.User{
		UserName:     name,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, common.Wrap(common.ErrorStorageUnavailable, fmt.Errorf("error creating user: %w", err))
	}

	return user, nil
}

// Verify answers common.ErrorUnauthorized for an unknown user and for a wrong
// password alike.
func (s *CredentialStore) Verify(ctx context.Context, username, password string) (*models.Identity, error) {
	name := NormalizeUsername(username)
	if name == "" || password == "" {
		return nil, common.ErrorUnauthorized
	}

	pw := []byte(password)
	defer common.WipeByteArray(pw)

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetUserByLogin(ctx, name)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// equalize timing with the known-user path
			_, _ = s.hasher.Verify(pw, s.getDummyHash())
			return nil, common.ErrorUnauthorized
		}
		return nil, common.Wrap(common.ErrorStorageUnavailable, fmt.Errorf("error loading user: %w", err))
	}

	ok, err := s.hasher.Verify(pw, user.PasswordHash)
	if err != nil {
		return nil, common.Wrap(common.ErrorStorageUnavailable, fmt.Errorf("stored hash of %q: %w", name, err))
	}
	if !ok {
		return nil, common.ErrorUnauthorized
	}

	return &models.Identity{UserID: user.ID, UserName: user.UserName}, nil
}

// getDummyHash caches only a successful hash, so a failed attempt is retried
// by the next caller.
func (s *CredentialStore) getDummyHash() string {
	s.dummyMu.Lock()
	defer s.dummyMu.Unlock()

	if s.dummyHash == "" {
		if h, err := s.hasher.Hash(common.GenerateRandByteArray(16)); err == nil {
			s.dummyHash = h
		}
	}
	return s.dummyHash
}
