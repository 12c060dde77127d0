package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.HTTP.Addr)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 5*time.Second, cfg.Database.Pool.PingTimeout)
	assert.Equal(t, "GB", cfg.Phone.Region)
	assert.Equal(t, "aes-256-ctr", cfg.Encryption.Algorithm)
	assert.Equal(t, "abc123", cfg.Encryption.Key)
	assert.Equal(t, []string{"127.0.0.1:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 500, cfg.Projector.BatchSize)
	assert.Zero(t, cfg.RateLimit.RPS)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mj.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: postgres
  dsn: "postgres://mj:mj@localhost:5432/mj?sslmode=disable"
phone:
  region: US
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "US", cfg.Phone.Region)
	// untouched keys keep their defaults
	assert.Equal(t, 20, cfg.Database.Pool.MaxOpenConns)
	assert.Equal(t, "abc123", cfg.Encryption.Key)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MJ_ENCRYPTION_KEY", "s3cret")
	t.Setenv("MJ_HTTP_ADDR", ":8080")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Encryption.Key)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("MJ_DATABASE_DRIVER", "sqlite")
		_, err := Load("")
		assert.ErrorContains(t, err, "sqlite")
	})
}
