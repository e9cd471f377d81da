// Package adapter 定义设备/平台数据源的统一接口
package adapter

import (
	"context"
	"errors"
	"sync"

	"firstaid-vitals/internal/models"
)

var (
	// ErrNotConnected 适配器未连接
	ErrNotConnected = errors.New("adapter not connected")
	// ErrUnsupported 运行环境不支持该传输（无蓝牙、平台 API 不可用）
	ErrUnsupported = errors.New("transport unsupported in this environment")
	// ErrAuthorization 用户拒绝授权或令牌失效
	ErrAuthorization = errors.New("authorization failed")
)

// Callback 新快照回调
type Callback func(models.VitalSigns)

// Adapter 数据源适配器
// 预期内的失败（不支持、授权失败、超时）由适配器记录日志后以 false/nil 返回
type Adapter interface {
	// Platform 平台标识
	Platform() models.Platform
	// Connect 发现/配对/授权；已连接时直接返回 true
	Connect(ctx context.Context) bool
	// Disconnect 释放连接并清除订阅与设备信息；未连接时返回 true
	Disconnect(ctx context.Context) bool
	// GetVitalSigns 一次性读取全部可用指标；未连接或读取失败返回 nil
	GetVitalSigns(ctx context.Context) *models.VitalSigns
	// SubscribeToVitalSigns 建立推送/轮询通道，返回只生效一次的取消函数
	SubscribeToVitalSigns(ctx context.Context, cb Callback) (func(), error)
	IsConnected() bool
	// DeviceInfo 未连接时返回 nil
	DeviceInfo() *models.DeviceInfo
	// SetDisconnectHandler 设置适配器主动断开（设备掉线、令牌失效）时的回调
	SetDisconnectHandler(fn func())
}

// Once 包装取消函数，保证底层资源只释放一次
func Once(fn func()) func() {
	var once sync.Once
	return func() {
		once.Do(fn)
	}
}
