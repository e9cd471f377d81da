package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	rediscommon "firstaid-vitals/common/redis"
	"firstaid-vitals/internal/config"
	"firstaid-vitals/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// AlertSink 危急告警出口
type AlertSink interface {
	Publish(ctx context.Context, alert models.VitalAlert) error
}

// StreamSink 写入 Redis Streams
type StreamSink struct {
	redisClient *redis.Client
	stream      string
	maxLen      int64
}

// NewStreamSink 创建 Redis Streams 告警出口
func NewStreamSink(cfg *config.Config, redisClient *redis.Client) *StreamSink {
	return &StreamSink{
		redisClient: redisClient,
		stream:      cfg.Monitor.AlertStream,
		maxLen:      cfg.Monitor.AlertStreamMaxLen,
	}
}

// Publish 发布告警到流
func (s *StreamSink) Publish(ctx context.Context, alert models.VitalAlert) error {
	if _, err := rediscommon.PublishJSONToStream(ctx, s.redisClient, s.stream, s.maxLen, alert); err != nil {
		return fmt.Errorf("failed to publish alert to stream %s: %w", s.stream, err)
	}
	return nil
}

// Publisher MQTT 发布接口（common/mqtt.Client 实现）
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	IsConnected() bool
}

// MQTTSink 发布到 MQTT 主题 {prefix}{session}/alerts
type MQTTSink struct {
	publisher   Publisher
	topicPrefix string
	qos         byte
}

// NewMQTTSink 创建 MQTT 告警出口
func NewMQTTSink(cfg *config.Config, publisher Publisher) *MQTTSink {
	return &MQTTSink{
		publisher:   publisher,
		topicPrefix: cfg.Monitor.AlertTopicPrefix,
		qos:         cfg.MQTT.QoS,
	}
}

// Topic 会话告警主题
func (s *MQTTSink) Topic(sessionID string) string {
	return s.topicPrefix + sessionID + "/alerts"
}

// Publish 发布告警
func (s *MQTTSink) Publish(ctx context.Context, alert models.VitalAlert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	topic := s.Topic(alert.SessionID)
	// 断线期间不发布
	if !s.publisher.IsConnected() {
		return fmt.Errorf("failed to publish alert to %s: mqtt client not connected", topic)
	}
	if err := s.publisher.Publish(topic, s.qos, false, payload); err != nil {
		return fmt.Errorf("failed to publish alert to %s: %w", topic, err)
	}
	return nil
}

// AlertStore 告警持久化接口（repository.VitalAlertsRepository 实现）
type AlertStore interface {
	CreateAlert(ctx context.Context, alert *models.VitalAlert) error
}

// RepositorySink 写入 PostgreSQL
type RepositorySink struct {
	store AlertStore
}

// NewRepositorySink 创建数据库告警出口
func NewRepositorySink(store AlertStore) *RepositorySink {
	return &RepositorySink{store: store}
}

// Publish 持久化告警
func (s *RepositorySink) Publish(ctx context.Context, alert models.VitalAlert) error {
	return s.store.CreateAlert(ctx, &alert)
}

type namedSink struct {
	name string
	sink AlertSink
}

// MultiSink 依次写入所有出口，单个失败只记录日志
type MultiSink struct {
	sinks  []namedSink
	logger *zap.Logger
}

// NewMultiSink 创建组合出口
func NewMultiSink(logger *zap.Logger) *MultiSink {
	return &MultiSink{logger: logger}
}

// Add 注册出口，nil 忽略
func (m *MultiSink) Add(name string, sink AlertSink) *MultiSink {
	if sink != nil {
		m.sinks = append(m.sinks, namedSink{name: name, sink: sink})
	}
	return m
}

// Len 已注册出口数量
func (m *MultiSink) Len() int {
	return len(m.sinks)
}

// Publish 写入所有出口，返回失败数量对应的错误
func (m *MultiSink) Publish(ctx context.Context, alert models.VitalAlert) error {
	failed := 0
	for _, s := range m.sinks {
		if err := s.sink.Publish(ctx, alert); err != nil {
			failed++
			m.logger.Error("Failed to publish vital alert",
				zap.String("sink", s.name),
				zap.String("alert_id", alert.AlertID),
				zap.String("session_id", alert.SessionID),
				zap.Error(err),
			)
			// 继续写入其他出口
			continue
		}
		m.logger.Debug("Vital alert published",
			zap.String("sink", s.name),
			zap.String("alert_id", alert.AlertID),
		)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d alert sinks failed", failed, len(m.sinks))
	}
	return nil
}
