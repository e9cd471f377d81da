// Package manager 生命体征数据源管理器：同一时刻只有一个活动适配器
package manager

import (
	"context"
	"fmt"
	"sync"

	"firstaid-vitals/internal/adapter"
	"firstaid-vitals/internal/models"

	"go.uber.org/zap"
)

// ListenerID 监听器标识，用于移除监听器
type ListenerID uint64

// ConnectionListener 连接状态变化监听器
type ConnectionListener func(platform models.Platform, connected bool)

type vitalsListener struct {
	id ListenerID
	fn adapter.Callback
}

type connectionListener struct {
	id ListenerID
	fn ConnectionListener
}

// Manager 生命体征管理器
type Manager struct {
	logger *zap.Logger

	// connectMu 串行化 ConnectToPlatform / Disconnect
	connectMu sync.Mutex

	// deliverMu 推送持读锁，停用（generation 递增）持写锁：
	// 停用返回前在途的推送已全部完成。监听器内不得同步调用 ConnectToPlatform / Disconnect
	deliverMu sync.RWMutex

	mu             sync.RWMutex
	adapters       map[models.Platform]adapter.Adapter
	active         adapter.Adapter
	activePlatform models.Platform
	unsubscribe    func()
	generation     uint64 // 每次激活/停用递增，旧订阅的回调据此丢弃
	lastVitals     *models.VitalSigns

	listenersMu         sync.RWMutex
	nextListenerID      ListenerID
	vitalsListeners     []vitalsListener
	connectionListeners []connectionListener
}

// New 创建管理器并注册适配器
func New(logger *zap.Logger, adapters map[models.Platform]adapter.Adapter) *Manager {
	m := &Manager{
		logger:   logger,
		adapters: make(map[models.Platform]adapter.Adapter),
	}
	m.Initialize(adapters)
	return m
}

// Initialize 注册适配器，重复调用时覆盖同名平台
func (m *Manager) Initialize(adapters map[models.Platform]adapter.Adapter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for p, a := range adapters {
		if a == nil {
			continue
		}
		m.adapters[p] = a
	}
}

// GetAvailableAdapters 返回已注册的平台（固定顺序）
func (m *Manager) GetAvailableAdapters() []models.Platform {
	m.mu.RLock()
	defer m.mu.RUnlock()

	platforms := make([]models.Platform, 0, len(m.adapters))
	for _, p := range models.AllPlatforms() {
		if _, ok := m.adapters[p]; ok {
			platforms = append(platforms, p)
		}
	}
	return platforms
}

// ConnectToPlatform 连接指定平台
// 若另一个平台处于活动状态，先取消其订阅并断开，再连接新平台
func (m *Manager) ConnectToPlatform(ctx context.Context, platform models.Platform) bool {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.mu.RLock()
	target, ok := m.adapters[platform]
	active := m.active
	activePlatform := m.activePlatform
	m.mu.RUnlock()

	if !ok {
		m.logger.Warn("Unknown platform", zap.String("platform", string(platform)))
		return false
	}

	if active != nil {
		if activePlatform == platform && active.IsConnected() {
			return true
		}
		if !m.teardown(ctx) {
			return false
		}
	}

	m.mu.Lock()
	m.generation++
	gen := m.generation
	m.mu.Unlock()

	// 连接前安装断开回调，连接过程中的掉线也会上报
	target.SetDisconnectHandler(func() {
		m.handleAdapterDisconnect(gen)
	})

	if !target.Connect(ctx) {
		m.logger.Warn("Failed to connect to platform", zap.String("platform", string(platform)))
		return false
	}

	m.mu.Lock()
	m.active = target
	m.activePlatform = platform
	m.mu.Unlock()

	if !target.IsConnected() {
		// Connect 返回前设备已掉线
		m.deactivate(gen, target)
		m.logger.Warn("Platform dropped while connecting", zap.String("platform", string(platform)))
		return false
	}

	unsub, err := target.SubscribeToVitalSigns(ctx, func(vs models.VitalSigns) {
		m.handleVitals(gen, vs)
	})
	if err != nil {
		// 订阅失败时仍可一次性读取
		m.logger.Warn("Failed to subscribe to vital signs",
			zap.String("platform", string(platform)),
			zap.Error(err),
		)
	}

	m.mu.Lock()
	current := m.generation == gen
	if current && err == nil {
		m.unsubscribe = unsub
	}
	m.mu.Unlock()
	if !current {
		// 订阅期间已断开，断开回调已通知监听器
		if err == nil {
			unsub()
		}
		m.logger.Warn("Platform dropped while subscribing", zap.String("platform", string(platform)))
		return false
	}

	m.logger.Info("Platform connected", zap.String("platform", string(platform)))
	m.notifyConnection(platform, true)
	return true
}

// deactivate 在 gen 仍为当前代时清除活动适配器
func (m *Manager) deactivate(gen uint64, a adapter.Adapter) {
	m.deliverMu.Lock()
	m.mu.Lock()
	if m.generation == gen && m.active == a {
		m.generation++
		m.active = nil
		m.activePlatform = ""
	}
	m.mu.Unlock()
	m.deliverMu.Unlock()
}

// teardown 先取消订阅再断开活动适配器，调用方需持有 connectMu
func (m *Manager) teardown(ctx context.Context) bool {
	m.deliverMu.Lock()
	m.mu.Lock()
	a := m.active
	platform := m.activePlatform
	m.generation++
	unsub := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()
	m.deliverMu.Unlock()

	if a == nil {
		return true
	}
	if unsub != nil {
		unsub()
	}

	if !a.Disconnect(ctx) {
		m.logger.Warn("Failed to disconnect platform", zap.String("platform", string(platform)))
		return false
	}

	m.mu.Lock()
	if m.active == a {
		m.active = nil
		m.activePlatform = ""
	}
	m.mu.Unlock()

	m.logger.Info("Platform disconnected", zap.String("platform", string(platform)))
	m.notifyConnection(platform, false)
	return true
}

// Disconnect 取消订阅并断开活动适配器
func (m *Manager) Disconnect(ctx context.Context) bool {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()
	return m.teardown(ctx)
}

// handleAdapterDisconnect 适配器主动断开（设备掉线、授权失效）
func (m *Manager) handleAdapterDisconnect(gen uint64) {
	m.deliverMu.Lock()
	m.mu.Lock()
	if gen != m.generation || m.active == nil {
		m.mu.Unlock()
		m.deliverMu.Unlock()
		return
	}
	platform := m.activePlatform
	m.generation++
	unsub := m.unsubscribe
	m.unsubscribe = nil
	m.active = nil
	m.activePlatform = ""
	m.mu.Unlock()
	m.deliverMu.Unlock()

	if unsub != nil {
		unsub()
	}

	m.logger.Warn("Platform disconnected unexpectedly", zap.String("platform", string(platform)))
	m.notifyConnection(platform, false)
}

// handleVitals 只有当前活动订阅的回调才会到达监听器
func (m *Manager) handleVitals(gen uint64, vs models.VitalSigns) {
	m.deliverMu.RLock()
	defer m.deliverMu.RUnlock()

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		m.logger.Debug("Dropping vital signs from inactive adapter")
		return
	}
	last := vs.Clone()
	m.lastVitals = &last
	m.mu.Unlock()

	m.notifyVitals(vs)
}

// GetCurrentVitalSigns 从活动适配器读取一次；未连接或读取失败返回 nil
func (m *Manager) GetCurrentVitalSigns(ctx context.Context) (vs *models.VitalSigns) {
	m.mu.RLock()
	a := m.active
	m.mu.RUnlock()
	if a == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Adapter panicked while reading vital signs", zap.Any("panic", r))
			vs = nil
		}
	}()
	return a.GetVitalSigns(ctx)
}

// GetLastVitalSigns 返回最近一次推送的快照（不触发读取）
func (m *Manager) GetLastVitalSigns() *models.VitalSigns {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastVitals == nil {
		return nil
	}
	vs := m.lastVitals.Clone()
	return &vs
}

// IsConnected 是否有已连接的活动适配器
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	a := m.active
	m.mu.RUnlock()
	return a != nil && a.IsConnected()
}

// ActivePlatform 当前活动平台
func (m *Manager) ActivePlatform() (models.Platform, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activePlatform, m.active != nil
}

// GetConnectedDeviceInfo 活动设备信息
func (m *Manager) GetConnectedDeviceInfo() *models.DeviceInfo {
	m.mu.RLock()
	a := m.active
	m.mu.RUnlock()
	if a == nil {
		return nil
	}
	return a.DeviceInfo()
}

// AddVitalSignsListener 注册快照监听器，按注册顺序同步调用
func (m *Manager) AddVitalSignsListener(fn adapter.Callback) ListenerID {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.nextListenerID++
	m.vitalsListeners = append(m.vitalsListeners, vitalsListener{id: m.nextListenerID, fn: fn})
	return m.nextListenerID
}

// RemoveVitalSignsListener 移除快照监听器
func (m *Manager) RemoveVitalSignsListener(id ListenerID) bool {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	for i, l := range m.vitalsListeners {
		if l.id == id {
			m.vitalsListeners = append(m.vitalsListeners[:i:i], m.vitalsListeners[i+1:]...)
			return true
		}
	}
	return false
}

// AddConnectionListener 注册连接状态监听器
func (m *Manager) AddConnectionListener(fn ConnectionListener) ListenerID {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.nextListenerID++
	m.connectionListeners = append(m.connectionListeners, connectionListener{id: m.nextListenerID, fn: fn})
	return m.nextListenerID
}

// RemoveConnectionListener 移除连接状态监听器
func (m *Manager) RemoveConnectionListener(id ListenerID) bool {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	for i, l := range m.connectionListeners {
		if l.id == id {
			m.connectionListeners = append(m.connectionListeners[:i:i], m.connectionListeners[i+1:]...)
			return true
		}
	}
	return false
}

func (m *Manager) notifyVitals(vs models.VitalSigns) {
	m.listenersMu.RLock()
	listeners := make([]vitalsListener, len(m.vitalsListeners))
	copy(listeners, m.vitalsListeners)
	m.listenersMu.RUnlock()

	for _, l := range listeners {
		m.safeCall(fmt.Sprintf("vitals listener %d", l.id), func() {
			l.fn(vs.Clone())
		})
	}
}

func (m *Manager) notifyConnection(platform models.Platform, connected bool) {
	m.listenersMu.RLock()
	listeners := make([]connectionListener, len(m.connectionListeners))
	copy(listeners, m.connectionListeners)
	m.listenersMu.RUnlock()

	for _, l := range listeners {
		m.safeCall(fmt.Sprintf("connection listener %d", l.id), func() {
			l.fn(platform, connected)
		})
	}
}

// safeCall 监听器异常不影响其他监听器
func (m *Manager) safeCall(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Listener panicked",
				zap.String("listener", name),
				zap.Any("panic", r),
			)
		}
	}()
	fn()
}
