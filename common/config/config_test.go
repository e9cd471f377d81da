package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_NAME", "firstaid")
	t.Setenv("DB_MAX_CONNS", "8")
	t.Setenv("DB_MAX_IDLE", "4")

	cfg := DatabaseConfig{Host: "localhost", Port: 5432, User: "postgres", SSLMode: "disable"}
	cfg.LoadFromEnv("DB")

	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, 6543, cfg.Port)
	assert.Equal(t, "firstaid", cfg.Database)
	assert.Equal(t, 8, cfg.MaxConns)
	assert.Equal(t, 4, cfg.MaxIdle)
	// 未设置的环境变量保持原值
	assert.Equal(t, "postgres", cfg.User)
	assert.Equal(t, "host=db.internal port=6543 user=postgres password= dbname=firstaid sslmode=disable", cfg.GetDSN())
}

func TestRedisConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("REDIS_DB", "3")

	cfg := RedisConfig{Addr: "localhost:6379"}
	cfg.LoadFromEnv("REDIS")

	assert.Equal(t, "redis:6380", cfg.Addr)
	assert.Equal(t, 3, cfg.DB)
	assert.Equal(t, "", cfg.Password)
}

func TestMQTTConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("MQTT_CLIENT_ID", "firstaid-test")
	t.Setenv("MQTT_QOS", "2")

	cfg := MQTTConfig{QoS: 1}
	cfg.LoadFromEnv("MQTT")

	assert.Equal(t, "tcp://broker:1883", cfg.Broker)
	assert.Equal(t, "firstaid-test", cfg.ClientID)
	assert.Equal(t, byte(2), cfg.QoS)
}

func TestLoadFromEnv_InvalidNumbersKeepDefaults(t *testing.T) {
	t.Setenv("DB_PORT", "not-a-port")
	t.Setenv("REDIS_DB", "x")
	t.Setenv("MQTT_QOS", "7")

	db := DatabaseConfig{Port: 5432}
	db.LoadFromEnv("DB")
	assert.Equal(t, 5432, db.Port)

	r := RedisConfig{DB: 1}
	r.LoadFromEnv("REDIS")
	assert.Equal(t, 1, r.DB)

	m := MQTTConfig{QoS: 1}
	m.LoadFromEnv("MQTT")
	assert.Equal(t, byte(1), m.QoS)
}
