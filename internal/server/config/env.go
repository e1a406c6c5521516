package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by parseEnv.
const EnvPrefix = "IMGKEEPER_"

// dotEnvFile is loaded into the environment when present. Variables already
// set in the process environment win over the file.
var dotEnvFile = ".env"

// parseEnv overlays IMGKEEPER_* variables, e.g. IMGKEEPER_DATABASE_DSN.
func parseEnv(config *Config) error {
	if err := godotenv.Load(dotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", dotEnvFile, err)
	}

	strs := map[string]*string{
		"HTTP_ADDR":          &config.HTTPAddr,
		"GRPC_ADDR":          &config.GRPCAddr,
		"DATABASE_DRIVER":    &config.DatabaseDriver,
		"DATABASE_DSN":       &config.DatabaseDSN,
		"STORAGE_BACKEND":    &config.StorageBackend,
		"STORAGE_ROOT":       &config.StorageRoot,
		"S3_ACCESS_KEY":      &config.S3AccessKey,
		"S3_SECRET_KEY":      &config.S3SecretKey,
		"S3_BUCKET":          &config.S3Bucket,
		"S3_REGION":          &config.S3Region,
		"S3_BASE_ENDPOINT":   &config.S3BaseEndpoint,
		"S3_PREFIX":          &config.S3Prefix,
		"PASSWORD_SCHEME":    &config.PasswordScheme,
		"TRANSFORM_ENDPOINT": &config.TransformEndpoint,
		"REDIS_ADDR":         &config.RedisAddr,
		"REDIS_PASSWORD":     &config.RedisPassword,
		"LOG_LEVEL":          &config.LogLevel,
		"LOG_FORMAT":         &config.LogFormat,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"REQUEST_TIMEOUT":   &config.RequestTimeout,
		"SHUTDOWN_TIMEOUT":  &config.ShutdownTimeout,
		"TRANSFORM_TIMEOUT": &config.TransformTimeout,
	}
	for name, dst := range durations {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = d
		}
	}

	ints := map[string]func(int64){
		"MAX_UPLOAD_BYTES":    func(n int64) { config.MaxUploadBytes = n },
		"BCRYPT_COST":         func(n int64) { config.BcryptCost = int(n) },
		"ARGON2_TIME":         func(n int64) { config.Argon2Time = uint32(n) },
		"ARGON2_MEMORY_KIB":   func(n int64) { config.Argon2MemoryKiB = uint32(n) },
		"ARGON2_THREADS":      func(n int64) { config.Argon2Threads = uint8(n) },
		"RATE_LIMIT_CAPACITY": func(n int64) { config.RateLimitCapacity = int(n) },
	}
	for name, set := range ints {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			set(n)
		}
	}

	if v, ok := os.LookupEnv(EnvPrefix + "RATE_LIMIT_PER_SECOND"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sRATE_LIMIT_PER_SECOND: %w", EnvPrefix, err)
		}
		config.RateLimitPerSecond = f
	}

	return nil
}
