// Package monitor 伤情感知的生命体征监测控制器
package monitor

import (
	"context"
	"sync"
	"time"

	"firstaid-vitals/internal/analyzer"
	"firstaid-vitals/internal/config"
	"firstaid-vitals/internal/manager"
	"firstaid-vitals/internal/models"
	"firstaid-vitals/internal/notifier"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SnapshotCache 会话快照缓存（consumer.CacheManager 实现）
type SnapshotCache interface {
	SaveSnapshot(ctx context.Context, snapshot models.SessionVitals) error
}

// State 控制器派生状态
type State struct {
	VitalSigns             *models.VitalSigns
	IsConnected            bool
	HasCriticalSigns       bool
	InjurySpecificWarnings []string
	VitalSignsAnalysis     *models.AnalysisResult
}

// Controller 订阅管理器快照，逐条分析并在进入危急状态时通知
// 状态：Idle（未连接）/ Connected-Normal / Connected-Critical
type Controller struct {
	config  *config.Config
	manager *manager.Manager
	sink    notifier.AlertSink
	cache   SnapshotCache
	logger  *zap.Logger
	now     func() time.Time

	mu             sync.Mutex
	sessionID      string
	injuryType     string
	injurySeverity models.InjurySeverity
	state          State
	critical       bool // 边沿触发：回到正常或断开后重新布防
	onCritical     func(warnings []string)

	vitalsListener     manager.ListenerID
	connectionListener manager.ListenerID
	closeOnce          sync.Once
}

// NewController 创建控制器并注册到管理器；sink 与 cache 可为 nil
func NewController(
	cfg *config.Config,
	mgr *manager.Manager,
	sink notifier.AlertSink,
	cache SnapshotCache,
	logger *zap.Logger,
) *Controller {
	c := &Controller{
		config:         cfg,
		manager:        mgr,
		sink:           sink,
		cache:          cache,
		logger:         logger,
		now:            time.Now,
		sessionID:      cfg.Monitor.SessionID,
		injuryType:     cfg.Monitor.InjuryType,
		injurySeverity: models.ParseInjurySeverity(cfg.Monitor.InjurySeverity),
	}
	if c.sessionID == "" {
		c.sessionID = uuid.NewString()
	}
	c.state.IsConnected = mgr.IsConnected()
	c.state.InjurySpecificWarnings = []string{}

	c.vitalsListener = mgr.AddVitalSignsListener(func(vs models.VitalSigns) {
		c.process(vs)
	})
	c.connectionListener = mgr.AddConnectionListener(c.handleConnection)
	return c
}

// SessionID 监测会话ID
func (c *Controller) SessionID() string {
	return c.sessionID
}

// OnCriticalDetection 注册危急状态回调（仅在进入危急状态的边沿调用）
func (c *Controller) OnCriticalDetection(fn func(warnings []string)) {
	c.mu.Lock()
	c.onCritical = fn
	c.mu.Unlock()
}

// SetInjuryContext 更新伤情上下文并重新分析当前快照
func (c *Controller) SetInjuryContext(injuryType string, severity models.InjurySeverity) {
	c.mu.Lock()
	c.injuryType = injuryType
	c.injurySeverity = severity
	var current *models.VitalSigns
	if c.state.IsConnected && c.state.VitalSigns != nil {
		vs := c.state.VitalSigns.Clone()
		current = &vs
	}
	c.mu.Unlock()

	if current != nil {
		c.process(*current)
	}
}

// State 当前状态快照（深拷贝）
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyState(c.state)
}

// Connect 连接平台；成功后立即读取一次
func (c *Controller) Connect(ctx context.Context, platform models.Platform) bool {
	if !c.manager.ConnectToPlatform(ctx, platform) {
		c.logger.Warn("Monitoring session could not connect",
			zap.String("session_id", c.sessionID),
			zap.String("platform", string(platform)),
		)
		return false
	}
	if vs := c.manager.GetCurrentVitalSigns(ctx); vs != nil {
		c.process(*vs)
	}
	return true
}

// Disconnect 断开当前平台
func (c *Controller) Disconnect(ctx context.Context) bool {
	return c.manager.Disconnect(ctx)
}

// SimulateAbnormalVitals 注入模拟快照，走与真实数据相同的分析路径
func (c *Controller) SimulateAbnormalVitals(scenario Scenario) (models.AnalysisResult, error) {
	sc, err := ParseScenario(string(scenario))
	if err != nil {
		return models.AnalysisResult{}, err
	}
	vs := scenarios[sc].snapshot()
	vs.Timestamp = c.now()

	c.logger.Info("Injecting simulated vital signs",
		zap.String("session_id", c.sessionID),
		zap.String("scenario", string(sc)),
	)
	return c.process(vs), nil
}

// Close 从管理器注销监听器
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.manager.RemoveVitalSignsListener(c.vitalsListener)
		c.manager.RemoveConnectionListener(c.connectionListener)
	})
}

// process 分析快照、更新状态、缓存并在危急边沿告警
func (c *Controller) process(vs models.VitalSigns) models.AnalysisResult {
	c.mu.Lock()
	result := analyzer.Analyze(vs, c.injuryType, c.injurySeverity)

	snapshot := vs.Clone()
	analysis := result
	c.state.VitalSigns = &snapshot
	c.state.HasCriticalSigns = result.HasCriticalSigns
	c.state.InjurySpecificWarnings = append([]string{}, result.InjurySpecificWarnings...)
	c.state.VitalSignsAnalysis = &analysis

	entering := result.HasCriticalSigns && !c.critical
	c.critical = result.HasCriticalSigns
	onCritical := c.onCritical
	injuryType, severity := c.injuryType, c.injurySeverity
	c.mu.Unlock()

	c.cacheSnapshot(vs)

	if !entering {
		return result
	}

	c.logger.Warn("Critical vital signs detected",
		zap.String("session_id", c.sessionID),
		zap.Int("critical_details", len(result.CriticalDetails)),
		zap.Strings("warnings", result.InjurySpecificWarnings),
	)

	if onCritical != nil {
		c.safeCallback(onCritical, append([]string{}, result.InjurySpecificWarnings...))
	}
	c.publishAlert(vs, result, injuryType, severity)
	return result
}

func (c *Controller) handleConnection(platform models.Platform, connected bool) {
	c.mu.Lock()
	c.state.IsConnected = connected
	if !connected {
		// Idle：清除分析结果，保留最后一次快照用于展示
		c.state.HasCriticalSigns = false
		c.state.InjurySpecificWarnings = []string{}
		c.state.VitalSignsAnalysis = nil
		c.critical = false
	}
	c.mu.Unlock()

	c.logger.Info("Monitoring connection changed",
		zap.String("session_id", c.sessionID),
		zap.String("platform", string(platform)),
		zap.Bool("connected", connected),
	)
}

// cacheSnapshot 尽力写入缓存，失败只记录日志
func (c *Controller) cacheSnapshot(vs models.VitalSigns) {
	if c.cache == nil {
		return
	}
	platform, _ := c.manager.ActivePlatform()

	ctx, cancel := context.WithTimeout(context.Background(), c.publishTimeout())
	defer cancel()

	err := c.cache.SaveSnapshot(ctx, models.SessionVitals{
		SessionID:  c.sessionID,
		Platform:   platform,
		DeviceInfo: c.manager.GetConnectedDeviceInfo(),
		VitalSigns: vs,
		UpdatedAt:  c.now(),
	})
	if err != nil {
		c.logger.Warn("Failed to cache vital signs snapshot",
			zap.String("session_id", c.sessionID),
			zap.Error(err),
		)
	}
}

func (c *Controller) publishAlert(vs models.VitalSigns, result models.AnalysisResult, injuryType string, severity models.InjurySeverity) {
	if c.sink == nil {
		return
	}
	platform, _ := c.manager.ActivePlatform()

	alert := models.VitalAlert{
		AlertID:         uuid.NewString(),
		SessionID:       c.sessionID,
		Platform:        platform,
		InjuryType:      injuryType,
		InjurySeverity:  severity,
		VitalSigns:      vs,
		CriticalDetails: result.CriticalDetails,
		Warnings:        result.InjurySpecificWarnings,
		Recommendation:  result.OverallRecommendation,
		TriggeredAt:     c.now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.publishTimeout())
	defer cancel()

	if err := c.sink.Publish(ctx, alert); err != nil {
		c.logger.Error("Failed to publish vital alert",
			zap.String("session_id", c.sessionID),
			zap.String("alert_id", alert.AlertID),
			zap.Error(err),
		)
	}
}

func (c *Controller) publishTimeout() time.Duration {
	if c.config.Monitor.PublishTimeout > 0 {
		return c.config.Monitor.PublishTimeout
	}
	return 5 * time.Second
}

func (c *Controller) safeCallback(fn func([]string), warnings []string) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Critical detection callback panicked", zap.Any("panic", r))
		}
	}()
	fn(warnings)
}

func copyState(s State) State {
	out := State{
		IsConnected:            s.IsConnected,
		HasCriticalSigns:       s.HasCriticalSigns,
		InjurySpecificWarnings: append([]string{}, s.InjurySpecificWarnings...),
	}
	if s.VitalSigns != nil {
		vs := s.VitalSigns.Clone()
		out.VitalSigns = &vs
	}
	if s.VitalSignsAnalysis != nil {
		a := *s.VitalSignsAnalysis
		a.CriticalDetails = append([]models.CriticalDetail{}, a.CriticalDetails...)
		a.InjurySpecificWarnings = append([]string{}, a.InjurySpecificWarnings...)
		out.VitalSignsAnalysis = &a
	}
	return out
}
