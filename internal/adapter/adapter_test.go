package adapter

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"firstaid-vitals/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOnce_ReleasesOnlyOnce(t *testing.T) {
	var calls int32
	unsub := Once(func() { atomic.AddInt32(&calls, 1) })

	assert.NotPanics(t, func() {
		unsub()
		unsub()
	})
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestConnState_Lifecycle(t *testing.T) {
	var s ConnState
	assert.False(t, s.IsConnected())
	assert.Nil(t, s.DeviceInfo())

	s.MarkConnected(models.DeviceInfo{Name: "Polar H10", Type: "ble"})
	s.SetBatteryLevel(87)
	require.True(t, s.IsConnected())
	info := s.DeviceInfo()
	require.NotNil(t, info)
	assert.Equal(t, "Polar H10", info.Name)
	require.NotNil(t, info.BatteryLevel)
	assert.Equal(t, 87, *info.BatteryLevel)

	// 返回的是副本
	*info.BatteryLevel = 1
	assert.Equal(t, 87, *s.DeviceInfo().BatteryLevel)

	assert.True(t, s.MarkDisconnected())
	assert.False(t, s.MarkDisconnected())
	assert.Nil(t, s.DeviceInfo())
}

func TestConnState_RemoteDisconnectCancelsSubscriptions(t *testing.T) {
	var s ConnState
	var handlerCalls, cancelCalls int32
	s.SetDisconnectHandler(func() { atomic.AddInt32(&handlerCalls, 1) })
	s.MarkConnected(models.DeviceInfo{Name: "dev"})

	unsub := s.TrackSubscription(func() { atomic.AddInt32(&cancelCalls, 1) })

	s.HandleRemoteDisconnect()
	s.HandleRemoteDisconnect()
	unsub()

	assert.False(t, s.IsConnected())
	assert.Equal(t, int32(1), atomic.LoadInt32(&handlerCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&cancelCalls))
}

func TestStartPolling_ImmediateAndStops(t *testing.T) {
	var reads int32
	read := func(ctx context.Context) *models.VitalSigns {
		n := atomic.AddInt32(&reads, 1)
		if n == 2 {
			return nil
		}
		return &models.VitalSigns{HeartRate: models.IntPtr(int(60 + n)), Timestamp: time.Now()}
	}

	got := make(chan models.VitalSigns, 16)
	unsub := StartPolling(10*time.Millisecond, read, func(vs models.VitalSigns) { got <- vs }, zap.NewNop())

	select {
	case vs := <-got:
		require.NotNil(t, vs.HeartRate)
		assert.Equal(t, 61, *vs.HeartRate)
	case <-time.After(time.Second):
		t.Fatal("expected immediate poll")
	}

	select {
	case vs := <-got:
		assert.Equal(t, 63, *vs.HeartRate)
	case <-time.After(time.Second):
		t.Fatal("expected ticker poll")
	}

	unsub()
	unsub()
	time.Sleep(30 * time.Millisecond)
	for len(got) > 0 {
		<-got
	}
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, got)
}

func TestWithConnectTimeout_Default(t *testing.T) {
	ctx, cancel := WithConnectTimeout(context.Background(), 0)
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(DefaultConnectTimeout), deadline, time.Second)
}

func TestValidators(t *testing.T) {
	assert.True(t, ValidHeartRate(72))
	assert.False(t, ValidHeartRate(0))
	assert.False(t, ValidHeartRate(400))
	assert.True(t, ValidBloodPressure(120, 80))
	assert.False(t, ValidBloodPressure(0, 80))
	assert.True(t, ValidOxygenSaturation(100))
	assert.False(t, ValidOxygenSaturation(101))
	assert.False(t, ValidOxygenSaturation(0))
	assert.True(t, ValidTemperature(36.6))
	assert.False(t, ValidTemperature(98.6))
	assert.True(t, ValidRespirationRate(16))
	assert.False(t, ValidRespirationRate(0))
}
