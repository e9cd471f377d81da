package adapter

import (
	"sync"

	"firstaid-vitals/internal/models"
)

// ConnState 适配器连接状态（各适配器内嵌使用）
type ConnState struct {
	mu           sync.RWMutex
	connected    bool
	info         *models.DeviceInfo
	onDisconnect func()

	subsMu sync.Mutex
	nextID int
	subs   map[int]func()
}

// IsConnected 是否已连接
func (s *ConnState) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// DeviceInfo 返回设备信息副本
func (s *ConnState) DeviceInfo() *models.DeviceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.connected || s.info == nil {
		return nil
	}
	info := *s.info
	if s.info.BatteryLevel != nil {
		level := *s.info.BatteryLevel
		info.BatteryLevel = &level
	}
	return &info
}

// SetDisconnectHandler 设置断开回调
func (s *ConnState) SetDisconnectHandler(fn func()) {
	s.mu.Lock()
	s.onDisconnect = fn
	s.mu.Unlock()
}

// MarkConnected 标记已连接
func (s *ConnState) MarkConnected(info models.DeviceInfo) {
	s.mu.Lock()
	s.connected = true
	s.info = &info
	s.mu.Unlock()
}

// SetBatteryLevel 更新电量
func (s *ConnState) SetBatteryLevel(level int) {
	s.mu.Lock()
	if s.info != nil {
		s.info.BatteryLevel = &level
	}
	s.mu.Unlock()
}

// MarkDisconnected 重置状态并取消全部订阅，返回之前是否处于连接状态
func (s *ConnState) MarkDisconnected() bool {
	s.mu.Lock()
	was := s.connected
	s.connected = false
	s.info = nil
	s.mu.Unlock()

	s.cancelSubscriptions()
	return was
}

// HandleRemoteDisconnect 处理设备/平台侧发起的断开：重置状态并触发断开回调
func (s *ConnState) HandleRemoteDisconnect() {
	if !s.MarkDisconnected() {
		return
	}
	s.mu.RLock()
	fn := s.onDisconnect
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// TrackSubscription 记录订阅，返回的取消函数只执行一次并从记录中移除
func (s *ConnState) TrackSubscription(cancel func()) func() {
	s.subsMu.Lock()
	if s.subs == nil {
		s.subs = make(map[int]func())
	}
	id := s.nextID
	s.nextID++
	once := Once(cancel)
	s.subs[id] = once
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
		once()
	}
}

func (s *ConnState) cancelSubscriptions() {
	s.subsMu.Lock()
	subs := s.subs
	s.subs = nil
	s.subsMu.Unlock()

	for _, cancel := range subs {
		cancel()
	}
}
