package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// LoadFromEnv 从 <prefix>_HOST、<prefix>_PORT 等环境变量覆盖数据库配置，未设置或无效的保持原值
func (c *DatabaseConfig) LoadFromEnv(prefix string) {
	envString(prefix+"_HOST", &c.Host)
	envInt(prefix+"_PORT", &c.Port)
	envString(prefix+"_USER", &c.User)
	envString(prefix+"_PASSWORD", &c.Password)
	envString(prefix+"_NAME", &c.Database)
	envString(prefix+"_SSLMODE", &c.SSLMode)
	envInt(prefix+"_MAX_CONNS", &c.MaxConns)
	envInt(prefix+"_MAX_IDLE", &c.MaxIdle)
}

// LoadFromEnv 从环境变量覆盖Redis配置
func (c *RedisConfig) LoadFromEnv(prefix string) {
	envString(prefix+"_ADDR", &c.Addr)
	envString(prefix+"_PASSWORD", &c.Password)
	envInt(prefix+"_DB", &c.DB)
}

// LoadFromEnv 从环境变量覆盖MQTT配置，QoS 只接受 0-2
func (c *MQTTConfig) LoadFromEnv(prefix string) {
	envString(prefix+"_BROKER", &c.Broker)
	envString(prefix+"_CLIENT_ID", &c.ClientID)
	envString(prefix+"_USERNAME", &c.Username)
	envString(prefix+"_PASSWORD", &c.Password)

	qos := int(c.QoS)
	envInt(prefix+"_QOS", &qos)
	if qos >= 0 && qos <= 2 {
		c.QoS = byte(qos)
	}
}

func envString(key string, dst *string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func envInt(key string, dst *int) {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			*dst = n
		}
	}
}
