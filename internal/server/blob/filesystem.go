package blob

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/imgkeeper/internal/common"
	"github.com/dmitrijs2005/imgkeeper/internal/filex"
)

const filePerm = 0o640

// FileSystemStore keeps blobs as files below root, one directory per user.
type FileSystemStore struct {
	root string
}

// NewFileSystemStore creates root if needed.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	if err := filex.EnsureDir(root); err != nil {
		return nil, err
	}
	return &FileSystemStore{root: root}, nil
}

func (s *FileSystemStore) Root() string {
	return s.root
}

func (s *FileSystemStore) path(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Put creates the key's directory lazily and writes data atomically.
func (s *FileSystemStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := filex.EnsureDir(filepath.Dir(p)); err != nil {
		return err
	}
	return filex.WriteFileAtomic(p, data, filePerm)
}

func (s *FileSystemStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, common.ErrorNotFound
	}
	return data, err
}

// Delete removes the key. A missing key is not an error.
func (s *FileSystemStore) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
