package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "firstaid", cfg.Database.Database)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)

	assert.True(t, cfg.Storage.RedisEnabled)
	assert.False(t, cfg.Storage.MQTTEnabled)
	assert.False(t, cfg.Storage.DatabaseEnabled)

	assert.Equal(t, 20*time.Second, cfg.Adapter.ConnectTimeout)
	assert.Equal(t, 60*time.Second, cfg.Adapter.PollInterval)
	assert.Equal(t, time.Hour, cfg.Adapter.QueryWindow)
	assert.Equal(t, 30*time.Second, cfg.BLE.ScanTimeout)
	assert.Equal(t, "https://api.fitbit.com", cfg.Fitbit.BaseURL)

	assert.NotEmpty(t, cfg.Monitor.SessionID)
	assert.Equal(t, "ble", cfg.Monitor.Platform)
	assert.Equal(t, "medium", cfg.Monitor.InjurySeverity)
	assert.Equal(t, "firstaid:session:", cfg.Monitor.CacheKeyPrefix)
	assert.Equal(t, 10*time.Minute, cfg.Monitor.CacheTTL)
	assert.True(t, cfg.Monitor.ClearSnapshot)
	assert.Equal(t, "firstaid:vitals:alerts", cfg.Monitor.AlertStream)
	assert.Equal(t, int64(10000), cfg.Monitor.AlertStreamMaxLen)
	assert.Equal(t, "firstaid/", cfg.Monitor.AlertTopicPrefix)
	assert.Equal(t, 5*time.Second, cfg.Monitor.PublishTimeout)
	assert.Equal(t, 30*time.Second, cfg.Monitor.StatusInterval)
	assert.Empty(t, cfg.Monitor.ExportPath)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_MAX_IDLE", "4")
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("MQTT_BROKER", "tcp://broker.internal:1883")
	t.Setenv("MQTT_QOS", "2")
	t.Setenv("MQTT_ENABLED", "true")
	t.Setenv("ADAPTER_CONNECT_TIMEOUT", "5s")
	t.Setenv("ADAPTER_POLL_INTERVAL", "15")
	t.Setenv("MONITOR_SESSION_ID", "session-42")
	t.Setenv("MONITOR_PLATFORM", "fitbit")
	t.Setenv("MONITOR_INJURY_TYPE", "head trauma")
	t.Setenv("MONITOR_SIMULATE", "shock")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, 4, cfg.Database.MaxIdle)
	assert.Equal(t, "firstaid", cfg.Database.Database)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "tcp://broker.internal:1883", cfg.MQTT.Broker)
	assert.Equal(t, "firstaid-vitals", cfg.MQTT.ClientID)
	assert.Equal(t, byte(2), cfg.MQTT.QoS)
	assert.True(t, cfg.Storage.MQTTEnabled)
	assert.Equal(t, 5*time.Second, cfg.Adapter.ConnectTimeout)
	assert.Equal(t, 15*time.Second, cfg.Adapter.PollInterval)
	assert.Equal(t, "session-42", cfg.Monitor.SessionID)
	assert.Equal(t, "fitbit", cfg.Monitor.Platform)
	assert.Equal(t, "head trauma", cfg.Monitor.InjuryType)
	assert.Equal(t, "shock", cfg.Monitor.Simulate)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("DB_PORT", "not-a-port")
	t.Setenv("REDIS_ENABLED", "maybe")
	t.Setenv("CACHE_SESSION_TTL", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5432, cfg.Database.Port)
	assert.True(t, cfg.Storage.RedisEnabled)
	assert.Equal(t, 10*time.Minute, cfg.Monitor.CacheTTL)
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("FITBIT_CLIENT_ID=from-dotenv\nBLE_NAME_PREFIX=Polar\n"), 0o600))
	t.Setenv("ENV_FILE", path)

	// godotenv 不覆盖已存在的变量，测试前后都需要清除
	for _, key := range []string{"FITBIT_CLIENT_ID", "BLE_NAME_PREFIX"} {
		key := key
		os.Unsetenv(key)
		t.Cleanup(func() { os.Unsetenv(key) })
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-dotenv", cfg.Fitbit.ClientID)
	assert.Equal(t, "Polar", cfg.BLE.NamePrefix)
}
