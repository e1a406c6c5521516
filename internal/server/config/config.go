// Package config handles configuration for the server component: defaults,
// a JSON file overlay, environment variables and command-line flags, applied
// in that order.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/imgkeeper/internal/cryptox"
)

const (
	StorageFileSystem = "fs"
	StorageS3         = "s3"
)

// Config holds runtime settings for the imgkeeper server.
//
// Fields:
//   - HTTPAddr / GRPCAddr: bind addresses of the REST API and the gRPC health endpoint.
//   - DatabaseDriver / DatabaseDSN: "sqlite" (file path) or "postgres" (pgx DSN).
//   - StorageBackend: "fs" keeps images under StorageRoot, "s3" in S3Bucket.
//   - PasswordScheme: "argon2id" or "bcrypt", tuned by the Argon2* and BcryptCost fields.
//   - TransformEndpoint: rembg compatible URL; empty re-encodes images without removing backgrounds.
//   - RedisAddr: enables the login/register rate limiter when set.
type Config struct {
	HTTPAddr string
	GRPCAddr string

	DatabaseDriver string
	DatabaseDSN    string

	StorageBackend string
	StorageRoot    string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3Prefix       string

	PasswordScheme  string
	Argon2Time      uint32
	Argon2MemoryKiB uint32
	Argon2Threads   uint8
	BcryptCost      int

	MaxUploadBytes  int64
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	TransformEndpoint string
	TransformTimeout  time.Duration

	RedisAddr          string
	RedisPassword      string
	RateLimitCapacity  int
	RateLimitPerSecond float64

	LogLevel  string
	LogFormat string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":5045"
	c.GRPCAddr = ":50051"
	c.DatabaseDriver = "sqlite"
	c.DatabaseDSN = "data/imgkeeper.db"
	c.StorageBackend = StorageFileSystem
	c.StorageRoot = "uploads"
	c.S3Bucket = "imgkeeper"
	c.S3Region = "us-east-1"
	c.PasswordScheme = cryptox.SchemeArgon2id
	c.Argon2Time = cryptox.DefaultArgon2Params.Time
	c.Argon2MemoryKiB = cryptox.DefaultArgon2Params.Memory
	c.Argon2Threads = cryptox.DefaultArgon2Params.Threads
	c.BcryptCost = 10
	c.MaxUploadBytes = 16 << 20
	c.RequestTimeout = 30 * time.Second
	c.ShutdownTimeout = 10 * time.Second
	c.TransformTimeout = 60 * time.Second
	c.RateLimitCapacity = 10
	c.RateLimitPerSecond = 1
	c.LogLevel = "info"
	c.LogFormat = "json"
}

// Argon2 returns the argon2id parameters of the config.
func (c *Config) Argon2() cryptox.Argon2Params {
	return cryptox.Argon2Params{
		Time:    c.Argon2Time,
		Memory:  c.Argon2MemoryKiB,
		Threads: c.Argon2Threads,
	}
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.DatabaseDriver) {
	case "sqlite", "sqlite3", "postgres", "pgx", "postgresql":
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.DatabaseDriver))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database DSN is empty"))
	}

	switch c.StorageBackend {
	case StorageFileSystem:
		if c.StorageRoot == "" {
			errs = append(errs, errors.New("storage root is empty"))
		}
	case StorageS3:
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("s3 bucket is empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage backend %q", c.StorageBackend))
	}

	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("max upload bytes must be positive"))
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Errorf("unsupported log format %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment and finally command-line flags.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	if err := parseEnv(cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	if err := parseFlags(cfg); err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
