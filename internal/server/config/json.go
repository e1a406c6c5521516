package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/imgkeeper/internal/flagx"
	"github.com/dmitrijs2005/imgkeeper/internal/timex"
)

// JsonConfig is the on-disk form of Config. Durations use timex.Duration,
// so both "30s" and integer nanoseconds parse. Absent or zero fields keep
// the value already in Config.
type JsonConfig struct {
	HTTPAddr           string         `json:"http_addr"`
	GRPCAddr           string         `json:"grpc_addr"`
	DatabaseDriver     string         `json:"database_driver"`
	DatabaseDSN        string         `json:"database_dsn"`
	StorageBackend     string         `json:"storage_backend"`
	StorageRoot        string         `json:"storage_root"`
	S3AccessKey        string         `json:"s3_access_key"`
	S3SecretKey        string         `json:"s3_secret_key"`
	S3Bucket           string         `json:"s3_bucket"`
	S3Region           string         `json:"s3_region"`
	S3BaseEndpoint     string         `json:"s3_base_endpoint"`
	S3Prefix           string         `json:"s3_prefix"`
	PasswordScheme     string         `json:"password_scheme"`
	Argon2Time         uint32         `json:"argon2_time"`
	Argon2MemoryKiB    uint32         `json:"argon2_memory_kib"`
	Argon2Threads      uint8          `json:"argon2_threads"`
	BcryptCost         int            `json:"bcrypt_cost"`
	MaxUploadBytes     int64          `json:"max_upload_bytes"`
	RequestTimeout     timex.Duration `json:"request_timeout"`
	ShutdownTimeout    timex.Duration `json:"shutdown_timeout"`
	TransformEndpoint  string         `json:"transform_endpoint"`
	TransformTimeout   timex.Duration `json:"transform_timeout"`
	RedisAddr          string         `json:"redis_addr"`
	RedisPassword      string         `json:"redis_password"`
	RateLimitCapacity  int            `json:"rate_limit_capacity"`
	RateLimitPerSecond float64        `json:"rate_limit_per_second"`
	LogLevel           string         `json:"log_level"`
	LogFormat          string         `json:"log_format"`
}

// parseJson overlays the file named by -c/-config (or $IMGKEEPER_CONFIG).
// No file configured means nothing to do.
func parseJson(config *Config) error {
	jsonConfigFile := flagx.ConfigFile()
	if jsonConfigFile == "" {
		return nil
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	setIf(&config.HTTPAddr, c.HTTPAddr)
	setIf(&config.GRPCAddr, c.GRPCAddr)
	setIf(&config.DatabaseDriver, c.DatabaseDriver)
	setIf(&config.DatabaseDSN, c.DatabaseDSN)
	setIf(&config.StorageBackend, c.StorageBackend)
	setIf(&config.StorageRoot, c.StorageRoot)
	setIf(&config.S3AccessKey, c.S3AccessKey)
	setIf(&config.S3SecretKey, c.S3SecretKey)
	setIf(&config.S3Bucket, c.S3Bucket)
	setIf(&config.S3Region, c.S3Region)
	setIf(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setIf(&config.S3Prefix, c.S3Prefix)
	setIf(&config.PasswordScheme, c.PasswordScheme)
	setIf(&config.Argon2Time, c.Argon2Time)
	setIf(&config.Argon2MemoryKiB, c.Argon2MemoryKiB)
	setIf(&config.Argon2Threads, c.Argon2Threads)
	setIf(&config.BcryptCost, c.BcryptCost)
	setIf(&config.MaxUploadBytes, c.MaxUploadBytes)
	setIf(&config.RequestTimeout, c.RequestTimeout.Duration)
	setIf(&config.ShutdownTimeout, c.ShutdownTimeout.Duration)
	setIf(&config.TransformEndpoint, c.TransformEndpoint)
	setIf(&config.TransformTimeout, c.TransformTimeout.Duration)
	setIf(&config.RedisAddr, c.RedisAddr)
	setIf(&config.RedisPassword, c.RedisPassword)
	setIf(&config.RateLimitCapacity, c.RateLimitCapacity)
	setIf(&config.RateLimitPerSecond, c.RateLimitPerSecond)
	setIf(&config.LogLevel, c.LogLevel)
	setIf(&config.LogFormat, c.LogFormat)
}

func setIf[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}
