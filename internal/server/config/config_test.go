package config

import (
	"os"
	"testing"
	"time"

	"github.com/dmitrijs2005/imgkeeper/internal/flagx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":5045", c.HTTPAddr)
	assert.Equal(t, ":50051", c.GRPCAddr)
	assert.Equal(t, "sqlite", c.DatabaseDriver)
	assert.Equal(t, "data/imgkeeper.db", c.DatabaseDSN)
	assert.Equal(t, StorageFileSystem, c.StorageBackend)
	assert.Equal(t, "uploads", c.StorageRoot)
	assert.Equal(t, "argon2id", c.PasswordScheme)
	assert.Equal(t, int64(16<<20), c.MaxUploadBytes)
	assert.Equal(t, 30*time.Second, c.RequestTimeout)
	assert.Equal(t, "json", c.LogFormat)
	assert.Empty(t, c.RedisAddr)
	assert.NoError(t, c.Validate())
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}
	t.Setenv(flagx.ConfigFileEnv, "")

	c, err := LoadConfig()
	require.NoError(t, err)
	require.NotNil(t, c, "LoadConfig must not return nil")

	var want Config
	want.LoadDefaults()
	assert.Equal(t, want, *c)
}

func TestLoadConfig_Precedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempJSON(t, "", "", map[string]any{
		"http_addr":    ":7000",
		"grpc_addr":    ":7001",
		"database_dsn": "from-json.db",
	})
	t.Setenv(EnvPrefix+"GRPC_ADDR", ":8001")
	t.Setenv(EnvPrefix+"DATABASE_DSN", "from-env.db")
	os.Args = []string{"testbin", "-c", path, "-d", "from-flag.db"}

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":7000", c.HTTPAddr)
	assert.Equal(t, ":8001", c.GRPCAddr)
	assert.Equal(t, "from-flag.db", c.DatabaseDSN)
}

func TestLoadConfig_Invalid(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin", "-storage", "ftp"}
	t.Setenv(flagx.ConfigFileEnv, "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported storage backend "ftp"`)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"driver", func(c *Config) { c.DatabaseDriver = "mysql" }, "unsupported database driver"},
		{"dsn", func(c *Config) { c.DatabaseDSN = "" }, "database DSN is empty"},
		{"root", func(c *Config) { c.StorageRoot = "" }, "storage root is empty"},
		{"bucket", func(c *Config) { c.StorageBackend = StorageS3; c.S3Bucket = "" }, "s3 bucket is empty"},
		{"upload size", func(c *Config) { c.MaxUploadBytes = 0 }, "max upload bytes"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "unsupported log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Config
			c.LoadDefaults()
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestArgon2(t *testing.T) {
	c := Config{Argon2Time: 2, Argon2MemoryKiB: 4096, Argon2Threads: 1}
	p := c.Argon2()
	assert.Equal(t, uint32(2), p.Time)
	assert.Equal(t, uint32(4096), p.Memory)
	assert.Equal(t, uint8(1), p.Threads)
}
