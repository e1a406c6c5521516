package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/imgkeeper/internal/flagx"
)

var knownFlags = []string{
	"-a", "-g", "-driver", "-d", "-storage", "-root",
	"-b", "-e", "-r", "-u", "-p",
	"-hash", "-m", "-t", "-redis", "-l",
}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string       HTTP bind address (e.g., ":5045")
//	-g string       gRPC health bind address
//	-driver string  database driver: sqlite or postgres
//	-d string       database DSN or SQLite file
//	-storage string storage backend: fs or s3
//	-root string    file system storage root
//	-b string       S3 bucket
//	-e string       S3 base endpoint (e.g., "http://127.0.0.1:9000")
//	-r string       S3 region
//	-u string       S3 access key
//	-p string       S3 secret key
//	-hash string    password hash scheme: argon2id or bcrypt
//	-m int          max upload size, bytes
//	-t string       background removal endpoint
//	-redis string   Redis address for rate limiting
//	-l string       log level
//
// Only these flags are taken from os.Args (see flagx.FilterArgs), so -c and
// -config stay available to the JSON loader.
func parseFlags(config *Config) error {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "gRPC health address and port")
	fs.StringVar(&config.DatabaseDriver, "driver", config.DatabaseDriver, "database driver")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.StorageBackend, "storage", config.StorageBackend, "storage backend")
	fs.StringVar(&config.StorageRoot, "root", config.StorageRoot, "storage root directory")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3Region, "r", config.S3Region, "S3 region")
	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "p", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.PasswordScheme, "hash", config.PasswordScheme, "password hash scheme")
	fs.Int64Var(&config.MaxUploadBytes, "m", config.MaxUploadBytes, "max upload size in bytes")
	fs.StringVar(&config.TransformEndpoint, "t", config.TransformEndpoint, "background removal endpoint")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "Redis address")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	return fs.Parse(args)
}
