package ble

import (
	"context"
)

// Transport 蓝牙 GATT 传输层（由运行平台提供，测试中可替换）
type Transport interface {
	// Available 检查蓝牙是否可用，不可用时返回包装了 adapter.ErrUnsupported 的错误
	Available() error
	// Scan 扫描并连接第一个广播任一 services 的设备；namePrefix 非空时还需名称前缀匹配
	Scan(ctx context.Context, services []uint16, namePrefix string) (Peripheral, error)
}

// Peripheral 已连接的外设
type Peripheral interface {
	Name() string
	Address() string
	// Characteristic 查找服务下的特征，服务或特征不存在时返回错误
	Characteristic(ctx context.Context, service, characteristic uint16) (Characteristic, error)
	// OnDisconnect 设置外设掉线回调
	OnDisconnect(fn func())
	Disconnect() error
}

// Characteristic GATT 特征
type Characteristic interface {
	Read() ([]byte, error)
	EnableNotifications(fn func([]byte)) error
	DisableNotifications() error
}
