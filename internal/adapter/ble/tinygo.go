package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"firstaid-vitals/internal/adapter"

	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"
)

// TinyGoTransport 基于 tinygo.org/x/bluetooth 的传输实现（Linux BlueZ / macOS / Windows）
type TinyGoTransport struct {
	adapter *bluetooth.Adapter
	logger  *zap.Logger

	enableOnce sync.Once
	enableErr  error

	mu       sync.Mutex
	handlers map[string]func() // address -> 掉线回调
	scanning bool
}

// NewTinyGoTransport 创建蓝牙传输
func NewTinyGoTransport(logger *zap.Logger) *TinyGoTransport {
	return &TinyGoTransport{
		adapter:  bluetooth.DefaultAdapter,
		logger:   logger,
		handlers: make(map[string]func()),
	}
}

// Available 启用本机蓝牙适配器（只启用一次）
func (t *TinyGoTransport) Available() error {
	t.enableOnce.Do(func() {
		if err := t.adapter.Enable(); err != nil {
			t.enableErr = fmt.Errorf("%w: enable bluetooth adapter: %v", adapter.ErrUnsupported, err)
			return
		}
		t.adapter.SetConnectHandler(t.onConnectEvent)
	})
	return t.enableErr
}

func (t *TinyGoTransport) onConnectEvent(device bluetooth.Device, connected bool) {
	if connected {
		return
	}
	addr := device.Address.String()

	t.mu.Lock()
	fn := t.handlers[addr]
	delete(t.handlers, addr)
	t.mu.Unlock()

	t.logger.Info("BLE device disconnected", zap.String("address", addr))
	if fn != nil {
		fn()
	}
}

type scanMatch struct {
	result bluetooth.ScanResult
}

// Scan 扫描匹配的设备并建立连接
func (t *TinyGoTransport) Scan(ctx context.Context, services []uint16, namePrefix string) (Peripheral, error) {
	if err := t.Available(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	if t.scanning {
		t.mu.Unlock()
		return nil, fmt.Errorf("scan already in progress")
	}
	t.scanning = true
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.scanning = false
		t.mu.Unlock()
	}()

	uuids := make([]bluetooth.UUID, 0, len(services))
	for _, s := range services {
		uuids = append(uuids, bluetooth.New16BitUUID(s))
	}

	found := make(chan scanMatch, 1)
	scanDone := make(chan error, 1)
	go func() {
		scanDone <- t.adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
			if namePrefix != "" && !strings.HasPrefix(result.LocalName(), namePrefix) {
				return
			}
			for _, u := range uuids {
				if result.HasServiceUUID(u) {
					select {
					case found <- scanMatch{result: result}:
						a.StopScan()
					default:
					}
					return
				}
			}
		})
	}()

	var match scanMatch
	select {
	case match = <-found:
	case err := <-scanDone:
		select {
		case match = <-found:
		default:
			if err == nil {
				err = fmt.Errorf("scan stopped without a matching device")
			}
			return nil, fmt.Errorf("failed to scan: %w", err)
		}
	case <-ctx.Done():
		if err := t.adapter.StopScan(); err != nil {
			t.logger.Warn("Failed to stop BLE scan", zap.Error(err))
		}
		return nil, fmt.Errorf("scan canceled: %w", ctx.Err())
	}

	t.logger.Info("BLE device found",
		zap.String("address", match.result.Address.String()),
		zap.String("name", match.result.LocalName()),
		zap.Int16("rssi", match.result.RSSI),
	)

	type connectResult struct {
		device bluetooth.Device
		err    error
	}
	connected := make(chan connectResult, 1)
	go func() {
		dev, err := t.adapter.Connect(match.result.Address, bluetooth.ConnectionParams{})
		connected <- connectResult{device: dev, err: err}
	}()

	select {
	case res := <-connected:
		if res.err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", match.result.Address.String(), res.err)
		}
		return &tinyGoPeripheral{
			transport: t,
			device:    res.device,
			name:      match.result.LocalName(),
			address:   match.result.Address.String(),
			services:  make(map[uint16]bluetooth.DeviceService),
		}, nil
	case <-ctx.Done():
		// 连接最终完成时立即断开，避免遗留连接
		go func() {
			if res := <-connected; res.err == nil {
				_ = res.device.Disconnect()
			}
		}()
		return nil, fmt.Errorf("connect canceled: %w", ctx.Err())
	}
}

type tinyGoPeripheral struct {
	transport *TinyGoTransport
	device    bluetooth.Device
	name      string
	address   string

	mu       sync.Mutex
	services map[uint16]bluetooth.DeviceService
}

func (p *tinyGoPeripheral) Name() string    { return p.name }
func (p *tinyGoPeripheral) Address() string { return p.address }

func (p *tinyGoPeripheral) Characteristic(ctx context.Context, service, characteristic uint16) (Characteristic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	svc, ok := p.services[service]
	if !ok {
		svcs, err := p.device.DiscoverServices([]bluetooth.UUID{bluetooth.New16BitUUID(service)})
		if err != nil {
			return nil, fmt.Errorf("failed to discover service %04x: %w", service, err)
		}
		if len(svcs) == 0 {
			return nil, fmt.Errorf("service %04x not found", service)
		}
		svc = svcs[0]
		p.services[service] = svc
	}

	chars, err := svc.DiscoverCharacteristics([]bluetooth.UUID{bluetooth.New16BitUUID(characteristic)})
	if err != nil {
		return nil, fmt.Errorf("failed to discover characteristic %04x: %w", characteristic, err)
	}
	if len(chars) == 0 {
		return nil, fmt.Errorf("characteristic %04x not found", characteristic)
	}
	return &tinyGoCharacteristic{char: chars[0]}, nil
}

func (p *tinyGoPeripheral) OnDisconnect(fn func()) {
	p.transport.mu.Lock()
	p.transport.handlers[p.address] = fn
	p.transport.mu.Unlock()
}

func (p *tinyGoPeripheral) Disconnect() error {
	p.transport.mu.Lock()
	delete(p.transport.handlers, p.address)
	p.transport.mu.Unlock()

	return p.device.Disconnect()
}

type tinyGoCharacteristic struct {
	char bluetooth.DeviceCharacteristic
}

// maxReadSize 单次读取缓冲区（默认 ATT MTU 内足够）
const maxReadSize = 64

func (c *tinyGoCharacteristic) Read() ([]byte, error) {
	buf := make([]byte, maxReadSize)
	n, err := c.char.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (c *tinyGoCharacteristic) EnableNotifications(fn func([]byte)) error {
	return c.char.EnableNotifications(fn)
}

// DisableNotifications 传入 nil 回调即停止通知
func (c *tinyGoCharacteristic) DisableNotifications() error {
	return c.char.EnableNotifications(nil)
}
