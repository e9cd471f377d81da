package redis

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestPublishToStream_ConvertsValues(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	id, err := PublishToStream(ctx, client, "test:stream", 0, map[string]interface{}{
		"name":    "pulse",
		"count":   3,
		"ratio":   0.5,
		"enabled": true,
		"tags":    []string{"a", "b"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs, err := client.XRange(ctx, "test:stream", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "pulse", msgs[0].Values["name"])
	assert.Equal(t, "3", msgs[0].Values["count"])
	assert.Equal(t, "0.5", msgs[0].Values["ratio"])
	assert.Equal(t, "true", msgs[0].Values["enabled"])
	assert.Equal(t, `["a","b"]`, msgs[0].Values["tags"])
}

func TestPublishJSONToStream(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	payload := map[string]interface{}{"session_id": "s-1", "heart_rate": 130}
	_, err := PublishJSONToStream(ctx, client, "test:json", 100, payload)
	require.NoError(t, err)

	msgs, err := client.XRange(ctx, "test:json", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &decoded))
	assert.Equal(t, "s-1", decoded["session_id"])
	assert.Equal(t, float64(130), decoded["heart_rate"])
	assert.NotEmpty(t, msgs[0].Values["timestamp"])
}
