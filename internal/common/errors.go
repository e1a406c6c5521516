// Package common defines shared constants, sentinel errors and small helpers
// used across imgkeeper components. Callers should use errors.Is to match the
// sentinel values.
package common

import "errors"

var (
	// repository specific errors
	ErrorNotFound = errors.New("not found")

	// service specific errors
	ErrorInternal           = errors.New("internal error")
	ErrorValidation         = errors.New("validation error")
	ErrorAlreadyExists      = errors.New("already exists")
	ErrorUnauthorized       = errors.New("unauthorized")
	ErrorStorageUnavailable = errors.New("storage unavailable")

	// external collaborators
	ErrorTransformFailed = errors.New("transform failed")
)

// Wrap attaches cause to the sentinel kind so that errors.Is matches both.
// A nil cause returns kind unchanged.
func Wrap(kind error, cause error) error {
	if cause == nil {
		return kind
	}
	return errors.Join(kind, cause)
}
