// Package googlefit Google Fit 平台适配器（REST API，轮询模拟推送）
package googlefit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"firstaid-vitals/internal/adapter"
	"firstaid-vitals/internal/models"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/fitness/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// 数据类型
const (
	DataTypeHeartRate        = "com.google.heart_rate.bpm"
	DataTypeBloodPressure    = "com.google.blood_pressure"
	DataTypeOxygenSaturation = "com.google.oxygen_saturation"
	DataTypeBodyTemperature  = "com.google.body.temperature"
)

// bucketMillis 聚合桶宽度
const bucketMillis = int64(time.Minute / time.Millisecond)

// Config Google Fit 适配器配置
type Config struct {
	ConnectTimeout time.Duration
	PollInterval   time.Duration
	QueryWindow    time.Duration // 查询最近多长时间的数据
	Endpoint       string        // 覆盖 API 地址（可选）
}

// query 单个指标的查询与提取规则
type query struct {
	name     string
	dataType string
	apply    func(p *fitness.DataPoint, vs *models.VitalSigns) bool
}

var queries = []query{
	{"heart_rate", DataTypeHeartRate, applyHeartRate},
	{"blood_pressure", DataTypeBloodPressure, applyBloodPressure},
	{"oxygen_saturation", DataTypeOxygenSaturation, applyOxygenSaturation},
	{"temperature", DataTypeBodyTemperature, applyTemperature},
}

// Adapter Google Fit 适配器
type Adapter struct {
	adapter.ConnState

	tokens oauth2.TokenSource
	config Config
	logger *zap.Logger
	now    func() time.Time

	mu  sync.RWMutex
	svc *fitness.Service
}

// NewAdapter 创建 Google Fit 适配器
func NewAdapter(tokens oauth2.TokenSource, cfg Config, logger *zap.Logger) *Adapter {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = adapter.DefaultPollInterval
	}
	if cfg.QueryWindow <= 0 {
		cfg.QueryWindow = time.Hour
	}
	return &Adapter{
		tokens: tokens,
		config: cfg,
		logger: logger.With(zap.String("platform", string(models.PlatformGoogleFit))),
		now:    time.Now,
	}
}

// Platform 平台标识
func (a *Adapter) Platform() models.Platform {
	return models.PlatformGoogleFit
}

// Connect 获取令牌并验证对健康数据的访问权限
func (a *Adapter) Connect(ctx context.Context) bool {
	if a.IsConnected() {
		return true
	}

	ctx, cancel := adapter.WithConnectTimeout(ctx, a.config.ConnectTimeout)
	defer cancel()

	svc, info, err := a.authorize(ctx)
	if err != nil {
		a.logger.Warn("Failed to connect to Google Fit", zap.Error(err))
		return false
	}

	a.mu.Lock()
	a.svc = svc
	a.mu.Unlock()
	a.MarkConnected(info)

	a.logger.Info("Google Fit connected", zap.String("device", info.Name))
	return true
}

func (a *Adapter) authorize(ctx context.Context) (*fitness.Service, models.DeviceInfo, error) {
	info := models.DeviceInfo{Name: "Google Fit", Type: "Google Fit"}

	type tokenResult struct {
		err error
	}
	done := make(chan tokenResult, 1)
	go func() {
		_, err := a.tokens.Token()
		done <- tokenResult{err: err}
	}()
	select {
	case res := <-done:
		if res.err != nil {
			return nil, info, fmt.Errorf("%w: %v", adapter.ErrAuthorization, res.err)
		}
	case <-ctx.Done():
		return nil, info, fmt.Errorf("token request: %w", ctx.Err())
	}

	// HTTP 客户端生命周期与连接一致，不跟随 connect 超时
	opts := []option.ClientOption{
		option.WithHTTPClient(oauth2.NewClient(context.Background(), a.tokens)),
	}
	if a.config.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(a.config.Endpoint))
	}
	svc, err := fitness.NewService(ctx, opts...)
	if err != nil {
		return nil, info, fmt.Errorf("failed to create fitness service: %w", err)
	}

	resp, err := svc.Users.DataSources.List("me").Context(ctx).Do()
	if err != nil {
		if isAuthError(err) {
			return nil, info, fmt.Errorf("%w: %v", adapter.ErrAuthorization, err)
		}
		return nil, info, fmt.Errorf("failed to list data sources: %w", err)
	}

	for _, ds := range resp.DataSource {
		if ds.Device == nil || ds.DataType == nil || !isVitalDataType(ds.DataType.Name) {
			continue
		}
		if name := deviceName(ds.Device); name != "" {
			info.Name = name
			break
		}
	}
	return svc, info, nil
}

func deviceName(d *fitness.Device) string {
	switch {
	case d.Manufacturer != "" && d.Model != "":
		return d.Manufacturer + " " + d.Model
	case d.Model != "":
		return d.Model
	default:
		return d.Manufacturer
	}
}

func isVitalDataType(name string) bool {
	for _, q := range queries {
		if q.dataType == name {
			return true
		}
	}
	return false
}

func isAuthError(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden
	}
	return false
}

// Disconnect 释放服务并清除订阅
func (a *Adapter) Disconnect(ctx context.Context) bool {
	if !a.IsConnected() {
		return true
	}
	a.MarkDisconnected()

	a.mu.Lock()
	a.svc = nil
	a.mu.Unlock()

	a.logger.Info("Google Fit disconnected")
	return true
}

// GetVitalSigns 并发查询各指标在查询窗口内的最新数据点，单个指标失败不影响其他指标
func (a *Adapter) GetVitalSigns(ctx context.Context) *models.VitalSigns {
	if !a.IsConnected() {
		return nil
	}
	a.mu.RLock()
	svc := a.svc
	a.mu.RUnlock()
	if svc == nil {
		return nil
	}

	end := a.now()
	start := end.Add(-a.config.QueryWindow)

	var (
		mu         sync.Mutex
		vs         models.VitalSigns
		authFailed atomic.Bool
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, q := range queries {
		q := q
		g.Go(func() error {
			point, err := a.latestPoint(gctx, svc, q.dataType, start, end)
			if err != nil {
				if isAuthError(err) {
					authFailed.Store(true)
				}
				a.logger.Warn("Google Fit metric query failed",
					zap.String("metric", q.name),
					zap.Error(err),
				)
				return nil
			}
			if point == nil {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			if !q.apply(point, &vs) {
				a.logger.Debug("Discarding Google Fit data point", zap.String("metric", q.name))
			}
			return nil
		})
	}
	_ = g.Wait()

	if authFailed.Load() {
		a.logger.Warn("Google Fit authorization revoked")
		a.HandleRemoteDisconnect()
		return nil
	}
	if vs.IsEmpty() {
		return nil
	}
	vs.Timestamp = end
	return &vs
}

// latestPoint 按分钟聚合，返回最后一个有数据的桶中的数据点
func (a *Adapter) latestPoint(ctx context.Context, svc *fitness.Service, dataType string, start, end time.Time) (*fitness.DataPoint, error) {
	req := &fitness.AggregateRequest{
		AggregateBy:     []*fitness.AggregateBy{{DataTypeName: dataType}},
		BucketByTime:    &fitness.BucketByTime{DurationMillis: bucketMillis},
		StartTimeMillis: start.UnixMilli(),
		EndTimeMillis:   end.UnixMilli(),
	}
	resp, err := svc.Users.Dataset.Aggregate("me", req).Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	var latest *fitness.DataPoint
	for _, bucket := range resp.Bucket {
		for _, ds := range bucket.Dataset {
			for _, p := range ds.Point {
				if len(p.Value) == 0 {
					continue
				}
				if latest == nil || p.EndTimeNanos >= latest.EndTimeNanos {
					latest = p
				}
			}
		}
	}
	return latest, nil
}

// SubscribeToVitalSigns 按固定间隔轮询
func (a *Adapter) SubscribeToVitalSigns(ctx context.Context, cb adapter.Callback) (func(), error) {
	if !a.IsConnected() {
		return nil, adapter.ErrNotConnected
	}
	stop := adapter.StartPolling(a.config.PollInterval, a.GetVitalSigns, cb, a.logger)
	return a.TrackSubscription(stop), nil
}

func pointValue(p *fitness.DataPoint, idx int) (float64, bool) {
	if idx >= len(p.Value) || p.Value[idx] == nil {
		return 0, false
	}
	v := p.Value[idx]
	if v.FpVal != 0 {
		return v.FpVal, true
	}
	if v.IntVal != 0 {
		return float64(v.IntVal), true
	}
	return 0, false
}

// applyHeartRate 汇总点：平均/最大/最小，取平均
func applyHeartRate(p *fitness.DataPoint, vs *models.VitalSigns) bool {
	v, ok := pointValue(p, 0)
	if !ok {
		return false
	}
	hr := int(math.Round(v))
	if !adapter.ValidHeartRate(hr) {
		return false
	}
	vs.HeartRate = &hr
	return true
}

// applyBloodPressure 汇总点：收缩压 平均/最大/最小 + 舒张压 平均/最大/最小；原始点：收缩压、舒张压
func applyBloodPressure(p *fitness.DataPoint, vs *models.VitalSigns) bool {
	diastolicIdx := 1
	if len(p.Value) >= 6 {
		diastolicIdx = 3
	}
	sys, ok1 := pointValue(p, 0)
	dia, ok2 := pointValue(p, diastolicIdx)
	if !ok1 || !ok2 {
		return false
	}
	bp := models.BloodPressure{Systolic: int(math.Round(sys)), Diastolic: int(math.Round(dia))}
	if !adapter.ValidBloodPressure(bp.Systolic, bp.Diastolic) {
		return false
	}
	vs.BloodPressure = &bp
	return true
}

func applyOxygenSaturation(p *fitness.DataPoint, vs *models.VitalSigns) bool {
	v, ok := pointValue(p, 0)
	if !ok || !adapter.ValidOxygenSaturation(v) {
		return false
	}
	spo2 := math.Round(v*10) / 10
	vs.OxygenSaturation = &spo2
	return true
}

func applyTemperature(p *fitness.DataPoint, vs *models.VitalSigns) bool {
	v, ok := pointValue(p, 0)
	if !ok || !adapter.ValidTemperature(v) {
		return false
	}
	temp := math.Round(v*10) / 10
	vs.Temperature = &temp
	return true
}
