// Package cryptox implements salted, deliberately slow password hashing.
//
// Hashes are self-describing strings: argon2id hashes use the PHC form
// "$argon2id$v=19$m=...,t=...,p=...$salt$key", bcrypt hashes keep their native
// "$2a$..." form. Verify picks the scheme from the encoded hash, so stored
// hashes keep working after the configured scheme changes.
package cryptox

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/imgkeeper/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	SchemeArgon2id = "argon2id"
	SchemeBcrypt   = "bcrypt"
)

var ErrUnknownHashFormat = errors.New("unknown password hash format")

// ErrPasswordTooLong is returned by bcrypt hashing for passwords over 72 bytes.
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// PasswordHasher hashes passwords and checks candidates against stored hashes.
type PasswordHasher interface {
	Hash(password []byte) (string, error)
	Verify(password []byte, encoded string) (bool, error)
}

// Argon2Params tunes argon2id. Zero fields fall back to DefaultArgon2Params.
type Argon2Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

var DefaultArgon2Params = Argon2Params{Time: 1, Memory: 64 * 1024, Threads: 4, KeyLen: 32, SaltLen: 16}

func (p Argon2Params) withDefaults() Argon2Params {
	d := DefaultArgon2Params
	if p.Time != 0 {
		d.Time = p.Time
	}
	if p.Memory != 0 {
		d.Memory = p.Memory
	}
	if p.Threads != 0 {
		d.Threads = p.Threads
	}
	if p.KeyLen != 0 {
		d.KeyLen = p.KeyLen
	}
	if p.SaltLen != 0 {
		d.SaltLen = p.SaltLen
	}
	return d
}

// Hasher produces hashes with one scheme and verifies any supported scheme.
type Hasher struct {
	scheme     string
	argon      Argon2Params
	bcryptCost int
}

// NewPasswordHasher returns a Hasher for scheme ("argon2id" or "bcrypt").
// A bcryptCost of zero means bcrypt.DefaultCost.
func NewPasswordHasher(scheme string, argon Argon2Params, bcryptCost int) (*Hasher, error) {
	scheme = strings.ToLower(strings.TrimSpace(scheme))
	switch scheme {
	case "", SchemeArgon2id:
		scheme = SchemeArgon2id
	case SchemeBcrypt:
		if bcryptCost == 0 {
			bcryptCost = bcrypt.DefaultCost
		}
		if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
			return nil, fmt.Errorf("bcrypt cost %d out of range", bcryptCost)
		}
	default:
		return nil, fmt.Errorf("unsupported password hash scheme %q", scheme)
	}
	return &Hasher{scheme: scheme, argon: argon.withDefaults(), bcryptCost: bcryptCost}, nil
}

func (h *Hasher) Scheme() string { return h.scheme }

func (h *Hasher) Hash(password []byte) (string, error) {
	if h.scheme == SchemeBcrypt {
		b, err := bcrypt.GenerateFromPassword(password, h.bcryptCost)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return hashArgon2id(password, h.argon), nil
}

func (h *Hasher) Verify(password []byte, encoded string) (bool, error) {
	switch {
	case strings.HasPrefix(encoded, "$argon2id$"):
		return verifyArgon2id(password, encoded)
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		err := bcrypt.CompareHashAndPassword([]byte(encoded), password)
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return err == nil, err
	default:
		return false, ErrUnknownHashFormat
	}
}

var b64 = base64.RawStdEncoding

func hashArgon2id(password []byte, p Argon2Params) string {
	salt := common.GenerateRandByteArray(int(p.SaltLen))
	key := argon2.IDKey(password, salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Threads, b64.EncodeToString(salt), b64.EncodeToString(key))
}

func verifyArgon2id(password []byte, encoded string) (bool, error) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return false, ErrUnknownHashFormat
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, fmt.Errorf("argon2id version: %w", err)
	}
	if version != argon2.Version {
		return false, fmt.Errorf("argon2id version %d not supported", version)
	}

	var p Argon2Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return false, fmt.Errorf("argon2id params: %w", err)
	}

	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("argon2id salt: %w", err)
	}
	want, err := b64.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("argon2id key: %w", err)
	}

	got := argon2.IDKey(password, salt, p.Time, p.Memory, p.Threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
