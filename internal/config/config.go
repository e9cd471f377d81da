package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"firstaid-vitals/common/config"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config 生命体征监测服务配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	// 可选依赖开关（关闭时对应的告警输出不启用）
	Storage struct {
		RedisEnabled    bool
		MQTTEnabled     bool
		DatabaseEnabled bool
	}

	// 适配器通用配置
	Adapter struct {
		ConnectTimeout time.Duration // 连接超时，默认 20s
		PollInterval   time.Duration // 平台轮询间隔，默认 60s
		QueryWindow    time.Duration // 平台查询窗口，默认 1h
	}

	BLE struct {
		ScanTimeout time.Duration // 扫描+连接超时，默认 30s
		NamePrefix  string        // 设备名称前缀过滤
	}

	GoogleFit struct {
		ClientID     string
		ClientSecret string
		RedirectURL  string
		RefreshToken string
		Endpoint     string // API 地址覆盖（测试环境）
	}

	Fitbit struct {
		BaseURL      string
		ClientID     string
		ClientSecret string
		RedirectURL  string
		RefreshToken string
		RetryCount   int
	}

	// 监测会话配置
	Monitor struct {
		SessionID         string
		Platform          string // ble / googlefit / fitbit
		InjuryType        string
		InjurySeverity    string // low / medium / high
		Simulate          string // 模拟场景：shock / respiratory / cardiac / normal
		CacheKeyPrefix    string // 快照缓存键前缀，如 "firstaid:session:"
		CacheTTL          time.Duration
		ClearSnapshot     bool // 服务停止时删除本会话快照
		AlertStream       string // 告警 Redis Stream
		AlertStreamMaxLen int64
		AlertTopicPrefix  string // 告警 MQTT 主题前缀，如 "firstaid/"
		PublishTimeout    time.Duration
		StatusInterval    time.Duration // 状态日志间隔
		ExportPath        string        // 退出时导出本会话告警（xlsx，需启用数据库）
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置：先读取 .env（可选），再从环境变量加载
func Load() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg := &Config{}

	cfg.Database = config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "firstaid",
		SSLMode:  "disable",
		MaxConns: 5,
		MaxIdle:  2,
	}
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis = config.RedisConfig{Addr: "localhost:6379"}
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT = config.MQTTConfig{
		Broker:   "tcp://localhost:1883",
		ClientID: "firstaid-vitals",
		QoS:      1,
	}
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Storage.RedisEnabled = getEnvBool("REDIS_ENABLED", true)
	cfg.Storage.MQTTEnabled = getEnvBool("MQTT_ENABLED", false)
	cfg.Storage.DatabaseEnabled = getEnvBool("DB_ENABLED", false)

	cfg.Adapter.ConnectTimeout = getEnvDuration("ADAPTER_CONNECT_TIMEOUT", 20*time.Second)
	cfg.Adapter.PollInterval = getEnvDuration("ADAPTER_POLL_INTERVAL", 60*time.Second)
	cfg.Adapter.QueryWindow = getEnvDuration("ADAPTER_QUERY_WINDOW", time.Hour)

	cfg.BLE.ScanTimeout = getEnvDuration("BLE_SCAN_TIMEOUT", 30*time.Second)
	cfg.BLE.NamePrefix = getEnv("BLE_NAME_PREFIX", "")

	cfg.GoogleFit.ClientID = getEnv("GOOGLEFIT_CLIENT_ID", "")
	cfg.GoogleFit.ClientSecret = getEnv("GOOGLEFIT_CLIENT_SECRET", "")
	cfg.GoogleFit.RedirectURL = getEnv("GOOGLEFIT_REDIRECT_URL", "")
	cfg.GoogleFit.RefreshToken = getEnv("GOOGLEFIT_REFRESH_TOKEN", "")
	cfg.GoogleFit.Endpoint = getEnv("GOOGLEFIT_ENDPOINT", "")

	cfg.Fitbit.BaseURL = getEnv("FITBIT_BASE_URL", "https://api.fitbit.com")
	cfg.Fitbit.ClientID = getEnv("FITBIT_CLIENT_ID", "")
	cfg.Fitbit.ClientSecret = getEnv("FITBIT_CLIENT_SECRET", "")
	cfg.Fitbit.RedirectURL = getEnv("FITBIT_REDIRECT_URL", "")
	cfg.Fitbit.RefreshToken = getEnv("FITBIT_REFRESH_TOKEN", "")
	cfg.Fitbit.RetryCount = getEnvInt("FITBIT_RETRY_COUNT", 2)

	cfg.Monitor.SessionID = getEnv("MONITOR_SESSION_ID", uuid.NewString())
	cfg.Monitor.Platform = getEnv("MONITOR_PLATFORM", "ble")
	cfg.Monitor.InjuryType = getEnv("MONITOR_INJURY_TYPE", "")
	cfg.Monitor.InjurySeverity = getEnv("MONITOR_INJURY_SEVERITY", "medium")
	cfg.Monitor.Simulate = getEnv("MONITOR_SIMULATE", "")
	cfg.Monitor.CacheKeyPrefix = getEnv("CACHE_SESSION_PREFIX", "firstaid:session:")
	cfg.Monitor.CacheTTL = getEnvDuration("CACHE_SESSION_TTL", 10*time.Minute)
	cfg.Monitor.ClearSnapshot = getEnvBool("CACHE_CLEAR_ON_STOP", true)
	cfg.Monitor.AlertStream = getEnv("ALERT_STREAM", "firstaid:vitals:alerts")
	cfg.Monitor.AlertStreamMaxLen = int64(getEnvInt("ALERT_STREAM_MAXLEN", 10000))
	cfg.Monitor.AlertTopicPrefix = getEnv("ALERT_TOPIC_PREFIX", "firstaid/")
	cfg.Monitor.PublishTimeout = getEnvDuration("ALERT_PUBLISH_TIMEOUT", 5*time.Second)
	cfg.Monitor.StatusInterval = getEnvDuration("MONITOR_STATUS_INTERVAL", 30*time.Second)
	cfg.Monitor.ExportPath = getEnv("ALERT_EXPORT_PATH", "")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration 支持 "30s" 形式，也接受纯数字（秒）
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
