package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, time.Hour, cfg.PresenceTTL)
	assert.Equal(t, 25*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatTimeout)
	assert.NotEmpty(t, cfg.ProcessID, "process id defaults to hostname")
	assert.Equal(t, int64(10000), cfg.MaxConnections)
}

func TestLoadRequiresRedisURL(t *testing.T) {
	t.Setenv("REDIS_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_URL")
}

func TestValidateTimeouts(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("HEARTBEAT_INTERVAL", "25s")
	t.Setenv("HEARTBEAT_TIMEOUT", "10s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HEARTBEAT_TIMEOUT")
}

func TestProcessIDOverride(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("PROCESS_ID", "proc-7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "proc-7", cfg.ProcessID)
}
