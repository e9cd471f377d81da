// Package fitbit Fitbit Web API 适配器（轮询模拟推送）
package fitbit

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"firstaid-vitals/internal/adapter"
	"firstaid-vitals/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	dateLayout   = "2006-01-02"
	minuteLayout = "15:04"
	spo2Layout   = "2006-01-02T15:04:05"
)

// Config Fitbit 适配器配置
type Config struct {
	ConnectTimeout time.Duration
	PollInterval   time.Duration
	QueryWindow    time.Duration
}

// Adapter Fitbit 适配器
// Fitbit 不提供血压数据，快照中始终不含血压
type Adapter struct {
	adapter.ConnState

	client *Client
	config Config
	logger *zap.Logger
	now    func() time.Time
}

// NewAdapter 创建 Fitbit 适配器
func NewAdapter(client *Client, cfg Config, logger *zap.Logger) *Adapter {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = adapter.DefaultPollInterval
	}
	if cfg.QueryWindow <= 0 {
		cfg.QueryWindow = time.Hour
	}
	return &Adapter{
		client: client,
		config: cfg,
		logger: logger.With(zap.String("platform", string(models.PlatformFitbit))),
		now:    time.Now,
	}
}

// Platform 平台标识
func (a *Adapter) Platform() models.Platform {
	return models.PlatformFitbit
}

// Connect 读取用户资料验证授权（请求前由令牌源刷新 access token），设备列表读取失败不影响连接
func (a *Adapter) Connect(ctx context.Context) bool {
	if a.IsConnected() {
		return true
	}

	ctx, cancel := adapter.WithConnectTimeout(ctx, a.config.ConnectTimeout)
	defer cancel()

	profile, err := a.client.GetProfile(ctx)
	if err != nil {
		a.logger.Warn("Failed to connect to Fitbit", zap.Error(err))
		return false
	}

	info := models.DeviceInfo{Name: "Fitbit", Type: "Fitbit"}
	devices, err := a.client.GetDevices(ctx)
	if err != nil {
		a.logger.Warn("Failed to list Fitbit devices", zap.Error(err))
	}
	for _, d := range devices {
		if d.DeviceVersion == "" {
			continue
		}
		info.Name = "Fitbit " + d.DeviceVersion
		if d.BatteryLevel != nil {
			level := *d.BatteryLevel
			info.BatteryLevel = &level
		}
		break
	}

	a.MarkConnected(info)
	a.logger.Info("Fitbit connected",
		zap.String("user", profile.User.DisplayName),
		zap.String("device", info.Name),
	)
	return true
}

// Disconnect 停止轮询并清除设备信息
func (a *Adapter) Disconnect(ctx context.Context) bool {
	if !a.IsConnected() {
		return true
	}
	a.MarkDisconnected()
	a.logger.Info("Fitbit disconnected")
	return true
}

// GetVitalSigns 并发查询心率/血氧/体温/呼吸，单项失败只跳过该指标
func (a *Adapter) GetVitalSigns(ctx context.Context) *models.VitalSigns {
	if !a.IsConnected() {
		return nil
	}

	end := a.now()
	start := end.Add(-a.config.QueryWindow)
	if start.Format(dateLayout) != end.Format(dateLayout) {
		// 日内接口不跨天，只查当天部分
		start = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, end.Location())
	}
	date := end.Format(dateLayout)

	var (
		mu         sync.Mutex
		vs         models.VitalSigns
		authFailed atomic.Bool
	)
	run := func(g *errgroup.Group, name string, fetch func() error) {
		g.Go(func() error {
			if err := fetch(); err != nil {
				if errors.Is(err, adapter.ErrAuthorization) {
					authFailed.Store(true)
				}
				a.logger.Warn("Fitbit metric query failed",
					zap.String("metric", name),
					zap.Error(err),
				)
			}
			return nil
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	run(g, "heart_rate", func() error {
		hr, err := a.client.GetHeartRateIntraday(gctx, date, start.Format(minuteLayout), end.Format(minuteLayout))
		if err != nil {
			return err
		}
		ds := hr.Intraday.Dataset
		if len(ds) == 0 || !adapter.ValidHeartRate(ds[len(ds)-1].Value) {
			return nil
		}
		v := ds[len(ds)-1].Value
		mu.Lock()
		vs.HeartRate = &v
		mu.Unlock()
		return nil
	})
	run(g, "oxygen_saturation", func() error {
		spo2, err := a.client.GetSpO2Intraday(gctx, date)
		if err != nil {
			return err
		}
		v, ok := latestSpO2(spo2, start, end)
		if !ok {
			return nil
		}
		mu.Lock()
		vs.OxygenSaturation = &v
		mu.Unlock()
		return nil
	})
	run(g, "temperature", func() error {
		temp, err := a.client.GetCoreTemperature(gctx, date)
		if err != nil {
			return err
		}
		v, ok := latestCoreTemperature(temp, start, end)
		if !ok {
			return nil
		}
		mu.Lock()
		vs.Temperature = &v
		mu.Unlock()
		return nil
	})
	run(g, "respiration_rate", func() error {
		br, err := a.client.GetBreathingRate(gctx, date)
		if err != nil {
			return err
		}
		v, ok := latestBreathingRate(br, start, end)
		if !ok {
			return nil
		}
		mu.Lock()
		vs.RespirationRate = &v
		mu.Unlock()
		return nil
	})
	_ = g.Wait()

	if authFailed.Load() {
		a.logger.Warn("Fitbit authorization revoked")
		a.HandleRemoteDisconnect()
		return nil
	}
	if vs.IsEmpty() {
		return nil
	}
	vs.Timestamp = end
	return &vs
}

// latestSpO2 取查询窗口内最新的一分钟数据；时间无法解析时退回最后一条
func latestSpO2(data *SpO2Intraday, start, end time.Time) (float64, bool) {
	var (
		best   float64
		bestAt time.Time
		found  bool
	)
	for _, m := range data.Minutes {
		if !adapter.ValidOxygenSaturation(m.Value) {
			continue
		}
		at, err := time.ParseInLocation(spo2Layout, m.Minute, end.Location())
		if err != nil {
			best, found = m.Value, true
			continue
		}
		if at.Before(start) || at.After(end) {
			continue
		}
		if !found || !at.Before(bestAt) {
			best, bestAt, found = m.Value, at, true
		}
	}
	return best, found
}

// latestCoreTemperature 取窗口内最新的有效体温
func latestCoreTemperature(data *CoreTemperature, start, end time.Time) (float64, bool) {
	var (
		best   float64
		bestAt time.Time
		found  bool
	)
	for _, t := range data.TempCore {
		v := math.Round(t.Value*10) / 10
		if !adapter.ValidTemperature(v) {
			continue
		}
		at, ok := withinWindow(t.DateTime, start, end)
		if !ok {
			continue
		}
		if !found || !at.Before(bestAt) {
			best, bestAt, found = v, at, true
		}
	}
	return best, found
}

// latestBreathingRate 取窗口内最新的有效呼吸频率
func latestBreathingRate(data *BreathingRate, start, end time.Time) (int, bool) {
	var (
		best   int
		bestAt time.Time
		found  bool
	)
	for _, b := range data.BR {
		v := int(math.Round(b.Value.BreathingRate))
		if !adapter.ValidRespirationRate(v) {
			continue
		}
		at, ok := withinWindow(b.DateTime, start, end)
		if !ok {
			continue
		}
		if !found || !at.Before(bestAt) {
			best, bestAt, found = v, at, true
		}
	}
	return best, found
}

// withinWindow 解析平台时间并判断是否落在 [start, end]
// 只有日期的日汇总按天比较；无法解析的记录不采用
func withinWindow(dateTime string, start, end time.Time) (time.Time, bool) {
	if at, err := time.ParseInLocation(spo2Layout, dateTime, end.Location()); err == nil {
		return at, !at.Before(start) && !at.After(end)
	}
	day, err := time.ParseInLocation(dateLayout, dateTime, end.Location())
	if err != nil {
		return time.Time{}, false
	}
	startDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, end.Location())
	return day, !day.Before(startDay) && !day.After(end)
}

// SubscribeToVitalSigns 按固定间隔轮询
func (a *Adapter) SubscribeToVitalSigns(ctx context.Context, cb adapter.Callback) (func(), error) {
	if !a.IsConnected() {
		return nil, adapter.ErrNotConnected
	}
	stop := adapter.StartPolling(a.config.PollInterval, a.GetVitalSigns, cb, a.logger)
	return a.TrackSubscription(stop), nil
}
