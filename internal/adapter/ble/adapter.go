// Package ble 通用蓝牙低功耗健康设备适配器
package ble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"firstaid-vitals/internal/adapter"
	"firstaid-vitals/internal/models"

	"go.uber.org/zap"
)

// Config 蓝牙适配器配置
type Config struct {
	ConnectTimeout time.Duration // 扫描+连接+发现的总超时
	NamePrefix     string        // 设备名称过滤（可选）
}

// metric 单个健康特征的解析规则
type metric struct {
	name           string
	service        uint16
	characteristic uint16
	decode         func(data []byte, vs *models.VitalSigns) error
}

var metrics = []metric{
	{"heart_rate", ServiceHeartRate, CharHeartRateMeasure, decodeHeartRateInto},
	{"temperature", ServiceHealthThermo, CharTemperatureMeasure, decodeTemperatureInto},
	{"pulse_oximeter", ServicePulseOximeter, CharPLXContinuous, decodePLXInto},
	{"blood_pressure", ServiceBloodPressure, CharBloodPressure, decodeBloodPressureInto},
}

// boundChar 已发现的特征
type boundChar struct {
	metric metric
	char   Characteristic
}

// Adapter 蓝牙适配器
type Adapter struct {
	adapter.ConnState

	transport Transport
	config    Config
	logger    *zap.Logger

	mu         sync.Mutex
	peripheral Peripheral
	chars      []boundChar
	latest     models.VitalSigns // 最近一次通知合并后的数据
}

// NewAdapter 创建蓝牙适配器
func NewAdapter(transport Transport, cfg Config, logger *zap.Logger) *Adapter {
	return &Adapter{
		transport: transport,
		config:    cfg,
		logger:    logger.With(zap.String("platform", string(models.PlatformBLE))),
	}
}

// Platform 平台标识
func (a *Adapter) Platform() models.Platform {
	return models.PlatformBLE
}

// Connect 扫描并连接健康设备，逐个发现健康特征
func (a *Adapter) Connect(ctx context.Context) bool {
	if a.IsConnected() {
		return true
	}

	if err := a.transport.Available(); err != nil {
		a.logger.Warn("Bluetooth not available", zap.Error(err))
		return false
	}

	ctx, cancel := adapter.WithConnectTimeout(ctx, a.config.ConnectTimeout)
	defer cancel()

	p, err := a.transport.Scan(ctx, HealthServices, a.config.NamePrefix)
	if err != nil {
		a.logger.Warn("Failed to find BLE health device", zap.Error(err))
		return false
	}

	// 每个服务独立查找，失败只跳过该指标
	var chars []boundChar
	for _, m := range metrics {
		ch, err := p.Characteristic(ctx, m.service, m.characteristic)
		if err != nil {
			a.logger.Debug("BLE metric not available",
				zap.String("metric", m.name),
				zap.Error(err),
			)
			continue
		}
		chars = append(chars, boundChar{metric: m, char: ch})
	}

	if len(chars) == 0 {
		a.logger.Warn("BLE device exposes no supported health characteristic",
			zap.String("address", p.Address()),
		)
		if err := p.Disconnect(); err != nil {
			a.logger.Warn("Failed to disconnect BLE device", zap.Error(err))
		}
		return false
	}

	info := models.DeviceInfo{
		Name: p.Name(),
		Type: "Bluetooth LE",
	}
	if info.Name == "" {
		info.Name = a.readDeviceName(ctx, p)
	}

	a.mu.Lock()
	a.peripheral = p
	a.chars = chars
	a.latest = models.VitalSigns{}
	a.mu.Unlock()

	p.OnDisconnect(a.handleDeviceDisconnect)
	a.MarkConnected(info)

	if level, ok := a.readBattery(ctx, p); ok {
		a.SetBatteryLevel(level)
	}

	a.logger.Info("BLE device connected",
		zap.String("name", info.Name),
		zap.String("address", p.Address()),
		zap.Int("metrics", len(chars)),
	)
	return true
}

// readDeviceName 从设备信息服务读取厂商/型号
func (a *Adapter) readDeviceName(ctx context.Context, p Peripheral) string {
	var parts []string
	for _, id := range []uint16{CharManufacturerName, CharModelNumber} {
		ch, err := p.Characteristic(ctx, ServiceDeviceInfo, id)
		if err != nil {
			continue
		}
		data, err := ch.Read()
		if err != nil {
			continue
		}
		if s := strings.TrimRight(string(data), "\x00 "); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return p.Address()
	}
	return strings.Join(parts, " ")
}

func (a *Adapter) readBattery(ctx context.Context, p Peripheral) (int, bool) {
	ch, err := p.Characteristic(ctx, ServiceBattery, CharBatteryLevel)
	if err != nil {
		return 0, false
	}
	data, err := ch.Read()
	if err != nil {
		a.logger.Debug("Failed to read battery level", zap.Error(err))
		return 0, false
	}
	level, err := DecodeBatteryLevel(data)
	if err != nil {
		a.logger.Debug("Invalid battery level", zap.Error(err))
		return 0, false
	}
	return level, true
}

func (a *Adapter) handleDeviceDisconnect() {
	a.mu.Lock()
	a.peripheral = nil
	a.chars = nil
	a.latest = models.VitalSigns{}
	a.mu.Unlock()

	a.logger.Warn("BLE device dropped the connection")
	a.HandleRemoteDisconnect()
}

// Disconnect 断开设备（未连接时直接返回 true）
func (a *Adapter) Disconnect(ctx context.Context) bool {
	if !a.IsConnected() {
		return true
	}

	// 先重置状态并取消订阅，设备随后的断开事件不再触发回调
	a.MarkDisconnected()

	a.mu.Lock()
	p := a.peripheral
	a.peripheral = nil
	a.chars = nil
	a.latest = models.VitalSigns{}
	a.mu.Unlock()

	if p != nil {
		if err := p.Disconnect(); err != nil {
			a.logger.Warn("Failed to disconnect BLE device", zap.Error(err))
		}
	}
	a.logger.Info("BLE device disconnected")
	return true
}

// GetVitalSigns 逐个读取已发现的特征
// 只支持通知的特征（如心率）读取失败时使用最近一次通知的值
func (a *Adapter) GetVitalSigns(ctx context.Context) *models.VitalSigns {
	if !a.IsConnected() {
		return nil
	}

	a.mu.Lock()
	chars := a.chars
	latest := a.latest.Clone()
	a.mu.Unlock()

	vs := models.VitalSigns{}
	for _, bc := range chars {
		if ctx.Err() != nil {
			break
		}
		data, err := bc.char.Read()
		if err == nil {
			err = bc.metric.decode(data, &vs)
		}
		if err != nil {
			a.logger.Debug("BLE read failed, using last notified value",
				zap.String("metric", bc.metric.name),
				zap.Error(err),
			)
			copyMetric(bc.metric.name, &latest, &vs)
		}
	}

	if vs.IsEmpty() {
		return nil
	}
	vs.Timestamp = time.Now()
	return &vs
}

// SubscribeToVitalSigns 为每个特征开启通知，每次通知合并进最新数据后回调副本
func (a *Adapter) SubscribeToVitalSigns(ctx context.Context, cb adapter.Callback) (func(), error) {
	if !a.IsConnected() {
		return nil, adapter.ErrNotConnected
	}

	a.mu.Lock()
	chars := a.chars
	a.mu.Unlock()

	hasHeartRate := false
	for _, bc := range chars {
		if bc.metric.characteristic == CharHeartRateMeasure {
			hasHeartRate = true
		}
	}

	var stopped atomic.Bool
	var enabled []boundChar
	for _, bc := range chars {
		bc := bc
		err := bc.char.EnableNotifications(func(data []byte) {
			if stopped.Load() {
				return
			}
			var update models.VitalSigns
			if err := bc.metric.decode(data, &update); err != nil {
				a.logger.Debug("Ignoring BLE notification",
					zap.String("metric", bc.metric.name),
					zap.Error(err),
				)
				return
			}
			if hasHeartRate && bc.metric.characteristic == CharPLXContinuous {
				update.HeartRate = nil
			}
			update.Timestamp = time.Now()

			a.mu.Lock()
			a.latest.Merge(update)
			snapshot := a.latest.Clone()
			a.mu.Unlock()

			cb(snapshot)
		})
		if err != nil {
			a.logger.Warn("Failed to enable BLE notifications",
				zap.String("metric", bc.metric.name),
				zap.Error(err),
			)
			continue
		}
		enabled = append(enabled, bc)
	}

	if len(enabled) == 0 {
		return nil, fmt.Errorf("no BLE characteristic accepted notifications")
	}

	return a.TrackSubscription(func() {
		stopped.Store(true)
		for _, bc := range enabled {
			if err := bc.char.DisableNotifications(); err != nil {
				a.logger.Debug("Failed to disable BLE notifications",
					zap.String("metric", bc.metric.name),
					zap.Error(err),
				)
			}
		}
	}), nil
}

func copyMetric(name string, from, to *models.VitalSigns) {
	switch name {
	case "heart_rate":
		if from.HeartRate != nil {
			to.HeartRate = from.HeartRate
		}
	case "temperature":
		if from.Temperature != nil {
			to.Temperature = from.Temperature
		}
	case "pulse_oximeter":
		if from.OxygenSaturation != nil {
			to.OxygenSaturation = from.OxygenSaturation
		}
	case "blood_pressure":
		if from.BloodPressure != nil {
			to.BloodPressure = from.BloodPressure
		}
	}
}

var errOutOfRange = errors.New("value out of physiological range")

func decodeHeartRateInto(data []byte, vs *models.VitalSigns) error {
	hr, err := DecodeHeartRate(data)
	if err != nil {
		return err
	}
	if !adapter.ValidHeartRate(hr) {
		return errOutOfRange
	}
	vs.HeartRate = &hr
	return nil
}

func decodeTemperatureInto(data []byte, vs *models.VitalSigns) error {
	temp, err := DecodeTemperature(data)
	if err != nil {
		return err
	}
	if !adapter.ValidTemperature(temp) {
		return errOutOfRange
	}
	vs.Temperature = &temp
	return nil
}

func decodeBloodPressureInto(data []byte, vs *models.VitalSigns) error {
	sys, dia, err := DecodeBloodPressure(data)
	if err != nil {
		return err
	}
	if !adapter.ValidBloodPressure(sys, dia) {
		return errOutOfRange
	}
	vs.BloodPressure = &models.BloodPressure{Systolic: sys, Diastolic: dia}
	return nil
}

// decodePLXInto 血氧计的脉率只在没有心率带时作为心率
func decodePLXInto(data []byte, vs *models.VitalSigns) error {
	spo2, pulse, err := DecodePLXContinuous(data)
	if err != nil {
		return err
	}
	if !adapter.ValidOxygenSaturation(spo2) {
		return errOutOfRange
	}
	vs.OxygenSaturation = &spo2
	if vs.HeartRate == nil && adapter.ValidHeartRate(pulse) {
		vs.HeartRate = &pulse
	}
	return nil
}
