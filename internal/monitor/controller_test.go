package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"firstaid-vitals/internal/adapter"
	"firstaid-vitals/internal/analyzer"
	"firstaid-vitals/internal/config"
	"firstaid-vitals/internal/consumer"
	"firstaid-vitals/internal/manager"
	"firstaid-vitals/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubAdapter 由测试直接推送快照的适配器
type stubAdapter struct {
	adapter.ConnState

	platform models.Platform
	initial  *models.VitalSigns

	mu sync.Mutex
	cb adapter.Callback
}

func (s *stubAdapter) Platform() models.Platform { return s.platform }

func (s *stubAdapter) Connect(ctx context.Context) bool {
	s.MarkConnected(models.DeviceInfo{Name: "Polar H10", Type: "Bluetooth LE"})
	return true
}

func (s *stubAdapter) Disconnect(ctx context.Context) bool {
	s.MarkDisconnected()
	return true
}

func (s *stubAdapter) GetVitalSigns(ctx context.Context) *models.VitalSigns {
	if s.initial == nil {
		return nil
	}
	vs := s.initial.Clone()
	return &vs
}

func (s *stubAdapter) SubscribeToVitalSigns(ctx context.Context, cb adapter.Callback) (func(), error) {
	s.mu.Lock()
	s.cb = cb
	s.mu.Unlock()
	return s.TrackSubscription(func() {
		s.mu.Lock()
		s.cb = nil
		s.mu.Unlock()
	}), nil
}

func (s *stubAdapter) push(vs models.VitalSigns) {
	s.mu.Lock()
	cb := s.cb
	s.mu.Unlock()
	if cb != nil {
		cb(vs)
	}
}

type recordingSink struct {
	mu     sync.Mutex
	alerts []models.VitalAlert
	err    error
}

func (r *recordingSink) Publish(ctx context.Context, alert models.VitalAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
	return r.err
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Monitor.SessionID = "session-1"
	cfg.Monitor.InjurySeverity = "medium"
	cfg.Monitor.CacheKeyPrefix = "firstaid:session:"
	cfg.Monitor.CacheTTL = time.Minute
	cfg.Monitor.PublishTimeout = time.Second
	return cfg
}

func setupController(t *testing.T, cfg *config.Config, cache SnapshotCache) (*Controller, *stubAdapter, *recordingSink) {
	ble := &stubAdapter{platform: models.PlatformBLE}
	mgr := manager.New(zap.NewNop(), map[models.Platform]adapter.Adapter{
		models.PlatformBLE: ble,
	})
	sink := &recordingSink{}
	c := NewController(cfg, mgr, sink, cache, zap.NewNop())
	t.Cleanup(c.Close)
	return c, ble, sink
}

func critical() models.VitalSigns {
	return models.VitalSigns{HeartRate: models.IntPtr(130), Timestamp: time.Now()}
}

func normal() models.VitalSigns {
	return models.VitalSigns{HeartRate: models.IntPtr(72), Timestamp: time.Now()}
}

func TestSimulateAbnormalVitals_Shock(t *testing.T) {
	c, _, sink := setupController(t, testConfig(), nil)

	result, err := c.SimulateAbnormalVitals(ScenarioShock)
	require.NoError(t, err)
	assert.True(t, result.HasCriticalSigns)

	metrics := map[string]models.DetailSeverity{}
	for _, d := range result.CriticalDetails {
		metrics[d.Metric] = d.Severity
	}
	assert.Equal(t, models.DetailCritical, metrics[analyzer.MetricHeartRate])
	assert.Equal(t, models.DetailCritical, metrics[analyzer.MetricBloodPressure])

	state := c.State()
	assert.True(t, state.HasCriticalSigns)
	require.NotNil(t, state.VitalSigns)
	assert.Equal(t, 130, *state.VitalSigns.HeartRate)
	require.NotNil(t, state.VitalSignsAnalysis)
	assert.Equal(t, result, *state.VitalSignsAnalysis)
	assert.False(t, state.IsConnected)
	assert.Equal(t, 1, sink.count())
}

func TestSimulateAbnormalVitals_MatchesLivePath(t *testing.T) {
	c, ble, _ := setupController(t, testConfig(), nil)
	require.True(t, c.Connect(context.Background(), models.PlatformBLE))

	simulated, err := c.SimulateAbnormalVitals(ScenarioCardiac)
	require.NoError(t, err)

	live := scenarios[ScenarioCardiac].snapshot()
	live.Timestamp = time.Now()
	ble.push(live)

	assert.Equal(t, simulated, *c.State().VitalSignsAnalysis)
}

func TestSimulateAbnormalVitals_Scenarios(t *testing.T) {
	c, _, _ := setupController(t, testConfig(), nil)

	for _, sc := range []Scenario{ScenarioShock, ScenarioRespiratory, ScenarioCardiac} {
		result, err := c.SimulateAbnormalVitals(sc)
		require.NoError(t, err)
		assert.True(t, result.HasCriticalSigns, string(sc))
	}

	result, err := c.SimulateAbnormalVitals("NORMAL")
	require.NoError(t, err)
	assert.False(t, result.HasCriticalSigns)
	assert.Empty(t, result.CriticalDetails)
	assert.Equal(t, analyzer.RecommendationNormal, result.OverallRecommendation)

	_, err = c.SimulateAbnormalVitals("stroke")
	assert.Error(t, err)
}

func TestController_EdgeTriggeredCriticalDetection(t *testing.T) {
	c, ble, sink := setupController(t, testConfig(), nil)

	var calls int
	c.OnCriticalDetection(func(warnings []string) { calls++ })

	require.True(t, c.Connect(context.Background(), models.PlatformBLE))
	assert.True(t, c.State().IsConnected)

	ble.push(critical())
	ble.push(critical())
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, sink.count())

	ble.push(normal())
	assert.False(t, c.State().HasCriticalSigns)

	ble.push(critical())
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, sink.count())
}

func TestController_DisconnectReturnsToIdleAndRearms(t *testing.T) {
	c, ble, sink := setupController(t, testConfig(), nil)
	ctx := context.Background()

	var calls int
	c.OnCriticalDetection(func(warnings []string) { calls++ })

	require.True(t, c.Connect(ctx, models.PlatformBLE))
	ble.push(critical())
	assert.Equal(t, 1, calls)

	require.True(t, c.Disconnect(ctx))
	state := c.State()
	assert.False(t, state.IsConnected)
	assert.False(t, state.HasCriticalSigns)
	assert.Nil(t, state.VitalSignsAnalysis)
	require.NotNil(t, state.VitalSigns)

	require.True(t, c.Connect(ctx, models.PlatformBLE))
	ble.push(critical())
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, sink.count())
}

func TestController_AdapterDropReturnsToIdle(t *testing.T) {
	c, ble, _ := setupController(t, testConfig(), nil)
	require.True(t, c.Connect(context.Background(), models.PlatformBLE))

	ble.push(critical())
	require.True(t, c.State().HasCriticalSigns)

	ble.HandleRemoteDisconnect()
	assert.False(t, c.State().IsConnected)
	assert.False(t, c.State().HasCriticalSigns)
}

func TestController_AlertContents(t *testing.T) {
	cfg := testConfig()
	cfg.Monitor.InjuryType = "laceration"
	c, ble, sink := setupController(t, cfg, nil)

	var received []string
	c.OnCriticalDetection(func(warnings []string) { received = warnings })

	require.True(t, c.Connect(context.Background(), models.PlatformBLE))
	ble.push(critical())

	require.Len(t, received, 1)
	assert.Contains(t, received[0], "hypovolemic shock")

	require.Equal(t, 1, sink.count())
	alert := sink.alerts[0]
	assert.NotEmpty(t, alert.AlertID)
	assert.Equal(t, "session-1", alert.SessionID)
	assert.Equal(t, models.PlatformBLE, alert.Platform)
	assert.Equal(t, "laceration", alert.InjuryType)
	assert.Equal(t, models.SeverityMedium, alert.InjurySeverity)
	assert.Equal(t, analyzer.RecommendationEmergency, alert.Recommendation)
	assert.Equal(t, received, alert.Warnings)
	require.Len(t, alert.CriticalDetails, 1)
}

func TestController_SetInjuryContextReanalyzes(t *testing.T) {
	c, ble, _ := setupController(t, testConfig(), nil)
	require.True(t, c.Connect(context.Background(), models.PlatformBLE))

	ble.push(critical())
	assert.Empty(t, c.State().InjurySpecificWarnings)

	c.SetInjuryContext("deep cut", models.SeverityHigh)
	warnings := c.State().InjurySpecificWarnings
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "hypovolemic shock")
}

func TestController_InitialReadOnConnect(t *testing.T) {
	c, ble, _ := setupController(t, testConfig(), nil)
	initial := normal()
	ble.initial = &initial

	require.True(t, c.Connect(context.Background(), models.PlatformBLE))
	state := c.State()
	require.NotNil(t, state.VitalSigns)
	assert.Equal(t, 72, *state.VitalSigns.HeartRate)
	require.NotNil(t, state.VitalSignsAnalysis)
}

func TestController_CachesSnapshots(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := testConfig()
	cache := consumer.NewCacheManager(cfg, redisClient, zap.NewNop())

	c, ble, _ := setupController(t, cfg, cache)
	require.True(t, c.Connect(context.Background(), models.PlatformBLE))
	ble.push(normal())

	snapshot, err := cache.GetSnapshot(context.Background(), "session-1")
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, models.PlatformBLE, snapshot.Platform)
	require.NotNil(t, snapshot.DeviceInfo)
	assert.Equal(t, "Polar H10", snapshot.DeviceInfo.Name)
	assert.Equal(t, 72, *snapshot.VitalSigns.HeartRate)
}

func TestController_FailuresDoNotBlockProcessing(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := testConfig()
	cache := consumer.NewCacheManager(cfg, redisClient, zap.NewNop())
	mr.Close()

	c, ble, sink := setupController(t, cfg, cache)
	sink.err = errors.New("broker down")
	c.OnCriticalDetection(func(warnings []string) { panic("ui crashed") })

	require.True(t, c.Connect(context.Background(), models.PlatformBLE))
	ble.push(critical())

	assert.True(t, c.State().HasCriticalSigns)
	assert.Equal(t, 1, sink.count())
}

func TestController_CloseStopsUpdates(t *testing.T) {
	c, ble, _ := setupController(t, testConfig(), nil)
	require.True(t, c.Connect(context.Background(), models.PlatformBLE))

	c.Close()
	c.Close()
	ble.push(critical())
	assert.Nil(t, c.State().VitalSigns)
}

func TestController_StateIsACopy(t *testing.T) {
	c, _, _ := setupController(t, testConfig(), nil)
	_, err := c.SimulateAbnormalVitals(ScenarioShock)
	require.NoError(t, err)

	state := c.State()
	*state.VitalSigns.HeartRate = 1
	state.VitalSignsAnalysis.CriticalDetails[0].Value = "changed"

	fresh := c.State()
	assert.Equal(t, 130, *fresh.VitalSigns.HeartRate)
	assert.NotEqual(t, "changed", fresh.VitalSignsAnalysis.CriticalDetails[0].Value)
}
