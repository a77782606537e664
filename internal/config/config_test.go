package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	t.Run("Reads the file and fills defaults", func(t *testing.T) {
		// Given: a file with a few keys set
		path := writeConfig(t, `
log-level: debug
storage: sqlite
sqlite-storage-path: /tmp/games.db
session:
  ttl: 30m
  mark-policy: random
  mark-seed: 42
`)

		// When: Load is called
		conf, err := Load(path)

		// Then: file values win, the rest is defaulted
		require.NoError(t, err)
		assert.Equal(t, "debug", conf.LogLevel)
		assert.Equal(t, StorageSQLite, conf.Storage)
		assert.Equal(t, "/tmp/games.db", conf.SQLiteStoragePath)
		assert.Equal(t, 30*time.Minute, conf.Session.TTL)
		assert.Equal(t, MarkPolicyRandom, conf.Session.MarkPolicy)
		assert.Equal(t, uint64(42), conf.Session.MarkSeed)

		assert.Equal(t, "9090", conf.HTTPPort)
		assert.Equal(t, "8080", conf.SocketPort)
		assert.Equal(t, BroadcastLocal, conf.Broadcast)
		assert.Equal(t, "localhost:6379", conf.Redis.GetRedisAddr())
		assert.Equal(t, 3, conf.Matchmaking.MaxAttempts)
		assert.False(t, conf.NeedsRedis())
	})

	t.Run("Environment overrides the file", func(t *testing.T) {
		path := writeConfig(t, "storage: sqlite\n")

		t.Setenv("STORAGE", "memory")
		t.Setenv("REDIS_HOST", "redis.internal")

		conf, err := Load(path)

		require.NoError(t, err)
		assert.Equal(t, StorageMemory, conf.Storage)
		assert.Equal(t, "redis.internal:6379", conf.Redis.GetRedisAddr())
	})

	t.Run("Missing file falls back to environment", func(t *testing.T) {
		t.Setenv("BROADCAST", "redis")
		t.Setenv("MATCHMAKING_MAX_ATTEMPTS", "5")

		conf, err := Load(filepath.Join(t.TempDir(), "absent.yml"))

		require.NoError(t, err)
		assert.Equal(t, StorageRedis, conf.Storage)
		assert.Equal(t, BroadcastRedis, conf.Broadcast)
		assert.Equal(t, 5, conf.Matchmaking.MaxAttempts)
		assert.Equal(t, 24*time.Hour, conf.Session.TTL)
		assert.True(t, conf.NeedsRedis())
	})

	t.Run("Unknown values are rejected", func(t *testing.T) {
		tests := []struct {
			name    string
			content string
		}{
			{"storage", "storage: postgres\n"},
			{"broadcast", "broadcast: kafka\n"},
			{"mark policy", "session:\n  mark-policy: loser-first\n"},
			{"negative ttl", "session:\n  ttl: -1s\n"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := Load(writeConfig(t, tt.content))

				require.Error(t, err)
			})
		}
	})

	t.Run("MustLoad panics on a broken file", func(t *testing.T) {
		path := writeConfig(t, "storage: [")

		assert.Panics(t, func() { MustLoad(path) })
	})
}
