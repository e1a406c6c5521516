// Package blob persists image bytes under slash-separated keys of the form
// "<username>/<name>".
package blob

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// Store is the byte storage behind the asset store. Get returns
// common.ErrorNotFound for a missing key.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

var ErrInvalidKey = errors.New("invalid blob key")

// ValidateKey accepts relative, clean, slash-separated keys only.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.ContainsAny(key, "\\\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if path.Clean(key) != key {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}
