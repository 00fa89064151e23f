package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no .env here
	for _, key := range []string{"API_URL", "BROKER_URL", "RECONNECT_DELAY", "REDIS_URL", "STATUS_PORT", "LOG_LEVEL", "LOG_FORMAT", "PAGE_SIZE", "GO_ENV"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http://localhost:8080/api", cfg.APIURL)
	assert.Equal(t, 8084, cfg.StatusPort)
	assert.False(t, cfg.CacheEnabled())
	assert.True(t, cfg.IsDevelopment())

	policy := cfg.ReconnectPolicy()
	assert.Equal(t, 5*time.Second, policy.Delay)
	assert.Equal(t, 4*time.Second, policy.HeartbeatIncoming)
	assert.Equal(t, 4*time.Second, policy.HeartbeatOutgoing)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BROKER_URL", "wss://library.example/ws")
	t.Setenv("RECONNECT_DELAY", "250ms")
	t.Setenv("API_RATE_LIMIT", "2.5")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("GO_ENV", "production")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "wss://library.example/ws", cfg.BrokerURL)
	assert.Equal(t, 250*time.Millisecond, cfg.ReconnectDelay)
	assert.Equal(t, 2.5, cfg.APIRateLimit)
	assert.True(t, cfg.CacheEnabled())
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("RECONNECT_DELAY", "soon")
	_, err := LoadConfig()
	assert.ErrorContains(t, err, "RECONNECT_DELAY")

	t.Setenv("RECONNECT_DELAY", "")
	t.Setenv("STATUS_PORT", "eighty")
	_, err = LoadConfig()
	assert.ErrorContains(t, err, "STATUS_PORT")
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := &Config{
		APIURL:      "localhost:8080",
		BrokerURL:   "http://localhost:8080/ws",
		HTTPTimeout: time.Second,
		StatusPort:  0,
		PageSize:    10,
		LogLevel:    "verbose",
		LogFormat:   "text",
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_URL")
	assert.Contains(t, err.Error(), "BROKER_URL")
	assert.Contains(t, err.Error(), "STATUS_PORT")
	assert.Contains(t, err.Error(), "LOG_LEVEL")
	assert.NotContains(t, err.Error(), "LOG_FORMAT")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{LogLevel: "warn", LogFormat: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("websocket_closed", "reconnect_attempts", 2)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"websocket_closed"`)
	assert.Contains(t, buf.String(), `"reconnect_attempts":2`)
}
