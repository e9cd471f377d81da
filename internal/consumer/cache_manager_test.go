package consumer

import (
	"context"
	"testing"
	"time"

	"firstaid-vitals/internal/config"
	"firstaid-vitals/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *CacheManager) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cfg := &config.Config{}
	cfg.Monitor.CacheKeyPrefix = "firstaid:session:"
	cfg.Monitor.CacheTTL = 30 * time.Second

	return mr, NewCacheManager(cfg, redisClient, zap.NewNop())
}

func TestCacheManager_SaveAndGetSnapshot(t *testing.T) {
	mr, cacheManager := setupTestRedis(t)
	ctx := context.Background()

	ts := time.Date(2024, 3, 10, 10, 30, 0, 0, time.UTC)
	snapshot := models.SessionVitals{
		SessionID:  "session-1",
		Platform:   models.PlatformBLE,
		DeviceInfo: &models.DeviceInfo{Name: "HRM-Pro", Type: "Bluetooth LE", BatteryLevel: models.IntPtr(80)},
		VitalSigns: models.VitalSigns{
			HeartRate:        models.IntPtr(72),
			OxygenSaturation: models.Float64Ptr(97.5),
			Timestamp:        ts,
		},
		UpdatedAt: ts,
	}
	require.NoError(t, cacheManager.SaveSnapshot(ctx, snapshot))

	assert.True(t, mr.Exists("firstaid:session:session-1:vitals"))
	assert.Equal(t, 30*time.Second, mr.TTL("firstaid:session:session-1:vitals"))

	got, err := cacheManager.GetSnapshot(ctx, "session-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.PlatformBLE, got.Platform)
	assert.Equal(t, 72, *got.VitalSigns.HeartRate)
	assert.Equal(t, 97.5, *got.VitalSigns.OxygenSaturation)
	assert.Nil(t, got.VitalSigns.BloodPressure)
	assert.Equal(t, 80, *got.DeviceInfo.BatteryLevel)
	assert.True(t, ts.Equal(got.VitalSigns.Timestamp))
}

func TestCacheManager_GetSnapshot_NotFound(t *testing.T) {
	_, cacheManager := setupTestRedis(t)

	got, err := cacheManager.GetSnapshot(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestCacheManager_GetSnapshot_Expired(t *testing.T) {
	mr, cacheManager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cacheManager.SaveSnapshot(ctx, models.SessionVitals{SessionID: "s"}))
	mr.FastForward(31 * time.Second)

	got, err := cacheManager.GetSnapshot(ctx, "s")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestCacheManager_GetSnapshot_InvalidJSON(t *testing.T) {
	mr, cacheManager := setupTestRedis(t)
	require.NoError(t, mr.Set("firstaid:session:bad:vitals", "{not json"))

	_, err := cacheManager.GetSnapshot(context.Background(), "bad")
	assert.Error(t, err)
}

func TestCacheManager_SaveSnapshot_RequiresSession(t *testing.T) {
	_, cacheManager := setupTestRedis(t)
	assert.Error(t, cacheManager.SaveSnapshot(context.Background(), models.SessionVitals{}))
}

func TestCacheManager_DeleteSnapshot(t *testing.T) {
	mr, cacheManager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cacheManager.SaveSnapshot(ctx, models.SessionVitals{SessionID: "s"}))
	require.NoError(t, cacheManager.DeleteSnapshot(ctx, "s"))
	assert.False(t, mr.Exists("firstaid:session:s:vitals"))
}

func TestCacheManager_RedisUnavailable(t *testing.T) {
	mr, cacheManager := setupTestRedis(t)
	mr.Close()

	err := cacheManager.SaveSnapshot(context.Background(), models.SessionVitals{SessionID: "s"})
	assert.Error(t, err)
}
