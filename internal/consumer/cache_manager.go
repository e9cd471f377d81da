package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"firstaid-vitals/internal/config"
	"firstaid-vitals/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// snapshotSuffix 快照缓存键后缀
const snapshotSuffix = ":vitals"

// CacheManager Redis 缓存管理器（会话最新快照）
type CacheManager struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewCacheManager 创建缓存管理器
func NewCacheManager(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *CacheManager {
	return &CacheManager{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

func (c *CacheManager) snapshotKey(sessionID string) string {
	return c.config.Monitor.CacheKeyPrefix + sessionID + snapshotSuffix
}

// SaveSnapshot 写入会话最新快照（设置 TTL）
func (c *CacheManager) SaveSnapshot(ctx context.Context, snapshot models.SessionVitals) error {
	if snapshot.SessionID == "" {
		return fmt.Errorf("session id is required")
	}

	jsonData, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	key := c.snapshotKey(snapshot.SessionID)
	if err := c.redisClient.Set(ctx, key, jsonData, c.config.Monitor.CacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot cache: %w", err)
	}

	c.logger.Debug("Cached vital signs snapshot",
		zap.String("session_id", snapshot.SessionID),
		zap.String("key", key),
	)
	return nil
}

// GetSnapshot 读取会话最新快照，不存在时返回 nil, nil
func (c *CacheManager) GetSnapshot(ctx context.Context, sessionID string) (*models.SessionVitals, error) {
	val, err := c.redisClient.Get(ctx, c.snapshotKey(sessionID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get snapshot cache: %w", err)
	}

	var snapshot models.SessionVitals
	if err := json.Unmarshal([]byte(val), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}

// DeleteSnapshot 删除会话快照
func (c *CacheManager) DeleteSnapshot(ctx context.Context, sessionID string) error {
	if err := c.redisClient.Del(ctx, c.snapshotKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot cache: %w", err)
	}
	return nil
}
