package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/imgkeeper/internal/flagx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"http_addr":             "www.example:9000",
		"database_driver":       "postgres",
		"database_dsn":          "postgres://u:p@db/imgkeeper",
		"storage_backend":       "s3",
		"s3_bucket":             "bucket",
		"s3_region":             "region",
		"s3_base_endpoint":      "http://minio:9000",
		"password_scheme":       "bcrypt",
		"bcrypt_cost":           12,
		"max_upload_bytes":      1024,
		"request_timeout":       "5s",
		"transform_timeout":     2000000000,
		"transform_endpoint":    "http://rembg:7000/api/remove",
		"rate_limit_per_second": 0.5,
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJson(cfg))

		assert.Equal(t, "www.example:9000", cfg.HTTPAddr)
		assert.Equal(t, "postgres", cfg.DatabaseDriver)
		assert.Equal(t, "postgres://u:p@db/imgkeeper", cfg.DatabaseDSN)
		assert.Equal(t, StorageS3, cfg.StorageBackend)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, "region", cfg.S3Region)
		assert.Equal(t, "http://minio:9000", cfg.S3BaseEndpoint)
		assert.Equal(t, "bcrypt", cfg.PasswordScheme)
		assert.Equal(t, 12, cfg.BcryptCost)
		assert.Equal(t, int64(1024), cfg.MaxUploadBytes)
		assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
		assert.Equal(t, 2*time.Second, cfg.TransformTimeout)
		assert.Equal(t, "http://rembg:7000/api/remove", cfg.TransformEndpoint)
		assert.Equal(t, 0.5, cfg.RateLimitPerSecond)

		// absent keys keep defaults
		assert.Equal(t, ":50051", cfg.GRPCAddr)
		assert.Equal(t, "uploads", cfg.StorageRoot)
	})

	t.Run("path from environment", func(t *testing.T) {
		os.Args = []string{"testbin"}
		t.Setenv(flagx.ConfigFileEnv, pathFlag)

		cfg := &Config{}
		require.NoError(t, parseJson(cfg))
		assert.Equal(t, "www.example:9000", cfg.HTTPAddr)
	})

	t.Run("no CONFIG and no flags → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}
		t.Setenv(flagx.ConfigFileEnv, "")

		cfg := &Config{HTTPAddr: "defaults:1234", DatabaseDSN: "vault.db"}
		require.NoError(t, parseJson(cfg))

		assert.Equal(t, "defaults:1234", cfg.HTTPAddr)
		assert.Equal(t, "vault.db", cfg.DatabaseDSN)
	})

	t.Run("invalid JSON → error", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Error(t, parseJson(cfg))
	})

	t.Run("missing file → error", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", filepath.Join(dir, "missing.json")}

		cfg := &Config{}
		require.Error(t, parseJson(cfg))
	})
}
