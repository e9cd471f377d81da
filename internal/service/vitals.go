package service

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"firstaid-vitals/common/database"
	mqttcommon "firstaid-vitals/common/mqtt"
	rediscommon "firstaid-vitals/common/redis"
	"firstaid-vitals/internal/adapter"
	"firstaid-vitals/internal/adapter/ble"
	"firstaid-vitals/internal/adapter/fitbit"
	"firstaid-vitals/internal/adapter/googlefit"
	"firstaid-vitals/internal/config"
	"firstaid-vitals/internal/consumer"
	"firstaid-vitals/internal/manager"
	"firstaid-vitals/internal/models"
	"firstaid-vitals/internal/monitor"
	"firstaid-vitals/internal/notifier"
	"firstaid-vitals/internal/repository"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// VitalsService 生命体征监测服务（整合各层）
type VitalsService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttcommon.Client
	logger      *zap.Logger

	// 各层组件
	manager    *manager.Manager
	controller *monitor.Controller
	cache      *consumer.CacheManager
	alertsRepo *repository.VitalAlertsRepository
}

// NewVitalsService 创建服务：连接已启用的存储并构建三个平台适配器
func NewVitalsService(cfg *config.Config, logger *zap.Logger) (*VitalsService, error) {
	return newVitalsService(cfg, logger, BuildAdapters(cfg, logger))
}

func newVitalsService(cfg *config.Config, logger *zap.Logger, adapters map[models.Platform]adapter.Adapter) (*VitalsService, error) {
	s := &VitalsService{
		config: cfg,
		logger: logger,
	}
	ctx := context.Background()
	sinks := notifier.NewMultiSink(logger)
	var cache monitor.SnapshotCache

	// 1. Redis：快照缓存 + 告警流
	if cfg.Storage.RedisEnabled {
		redisClient := rediscommon.NewRedisClient(&cfg.Redis)
		if err := rediscommon.Ping(ctx, redisClient); err != nil {
			redisClient.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		s.redisClient = redisClient
		s.cache = consumer.NewCacheManager(cfg, redisClient, logger)
		cache = s.cache
		sinks.Add("redis_stream", notifier.NewStreamSink(cfg, redisClient))
	}

	// 2. MQTT：告警主题
	if cfg.Storage.MQTTEnabled {
		mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger)
		if err != nil {
			s.Stop()
			return nil, fmt.Errorf("failed to connect mqtt: %w", err)
		}
		s.mqttClient = mqttClient
		sinks.Add("mqtt", notifier.NewMQTTSink(cfg, mqttClient))
	}

	// 3. PostgreSQL：告警历史
	if cfg.Storage.DatabaseEnabled {
		db, err := database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			s.Stop()
			return nil, err
		}
		s.db = db
		s.alertsRepo = repository.NewVitalAlertsRepository(db, logger)
		if err := s.alertsRepo.EnsureSchema(ctx); err != nil {
			s.Stop()
			return nil, err
		}
		sinks.Add("postgres", notifier.NewRepositorySink(s.alertsRepo))
	}

	// 4. 管理器 + 控制器
	s.manager = manager.New(logger, adapters)
	var sink notifier.AlertSink
	if sinks.Len() > 0 {
		sink = sinks
	}
	s.controller = monitor.NewController(cfg, s.manager, sink, cache, logger)

	return s, nil
}

// BuildAdapters 构建三个平台适配器
func BuildAdapters(cfg *config.Config, logger *zap.Logger) map[models.Platform]adapter.Adapter {
	bleAdapter := ble.NewAdapter(
		ble.NewTinyGoTransport(logger.Named("ble")),
		ble.Config{
			ConnectTimeout: cfg.BLE.ScanTimeout,
			NamePrefix:     cfg.BLE.NamePrefix,
		},
		logger.Named("ble"),
	)

	fitTokens := googlefit.TokenSource(
		context.Background(),
		googlefit.OAuthConfig(cfg.GoogleFit.ClientID, cfg.GoogleFit.ClientSecret, cfg.GoogleFit.RedirectURL),
		cfg.GoogleFit.RefreshToken,
	)
	googleFitAdapter := googlefit.NewAdapter(fitTokens, googlefit.Config{
		ConnectTimeout: cfg.Adapter.ConnectTimeout,
		PollInterval:   cfg.Adapter.PollInterval,
		QueryWindow:    cfg.Adapter.QueryWindow,
		Endpoint:       cfg.GoogleFit.Endpoint,
	}, logger.Named("googlefit"))

	fitbitTokens := fitbit.TokenSource(
		context.Background(),
		fitbit.OAuthConfig(cfg.Fitbit.ClientID, cfg.Fitbit.ClientSecret, cfg.Fitbit.RedirectURL),
		cfg.Fitbit.RefreshToken,
	)
	fitbitClient := fitbit.NewClient(fitbit.ClientConfig{
		BaseURL:    cfg.Fitbit.BaseURL,
		Timeout:    cfg.Adapter.ConnectTimeout,
		RetryCount: cfg.Fitbit.RetryCount,
	}, fitbitTokens, logger.Named("fitbit"))
	fitbitAdapter := fitbit.NewAdapter(fitbitClient, fitbit.Config{
		ConnectTimeout: cfg.Adapter.ConnectTimeout,
		PollInterval:   cfg.Adapter.PollInterval,
		QueryWindow:    cfg.Adapter.QueryWindow,
	}, logger.Named("fitbit"))

	return map[models.Platform]adapter.Adapter{
		models.PlatformBLE:       bleAdapter,
		models.PlatformGoogleFit: googleFitAdapter,
		models.PlatformFitbit:    fitbitAdapter,
	}
}

// Controller 监测控制器
func (s *VitalsService) Controller() *monitor.Controller {
	return s.controller
}

// Start 连接配置的平台、注入模拟场景（可选），然后定期输出状态直到 ctx 结束
func (s *VitalsService) Start(ctx context.Context) error {
	s.logger.Info("Starting vitals service",
		zap.String("session_id", s.controller.SessionID()),
		zap.String("platform", s.config.Monitor.Platform),
		zap.String("injury_type", s.config.Monitor.InjuryType),
	)

	s.controller.OnCriticalDetection(func(warnings []string) {
		s.logger.Warn("Critical state entered",
			zap.String("session_id", s.controller.SessionID()),
			zap.Strings("injury_warnings", warnings),
		)
	})

	if s.config.Monitor.Platform != "" {
		platform, err := models.ParsePlatform(s.config.Monitor.Platform)
		if err != nil {
			return err
		}
		if !s.controller.Connect(ctx, platform) {
			// 模拟模式下允许无设备运行
			if s.config.Monitor.Simulate == "" {
				return fmt.Errorf("failed to connect to platform %s", platform)
			}
			s.logger.Warn("Continuing without a device in simulation mode",
				zap.String("platform", string(platform)),
			)
		}
	}

	if s.config.Monitor.Simulate != "" {
		result, err := s.controller.SimulateAbnormalVitals(monitor.Scenario(s.config.Monitor.Simulate))
		if err != nil {
			return err
		}
		s.logger.Info("Simulated scenario analyzed",
			zap.String("scenario", s.config.Monitor.Simulate),
			zap.Bool("has_critical_signs", result.HasCriticalSigns),
			zap.String("recommendation", result.OverallRecommendation),
		)
	}

	interval := s.config.Monitor.StatusInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Vitals service loop stopped")
			return nil
		case <-ticker.C:
			s.logStatus()
		}
	}
}

func (s *VitalsService) logStatus() {
	state := s.controller.State()
	fields := []zap.Field{
		zap.String("session_id", s.controller.SessionID()),
		zap.Bool("connected", state.IsConnected),
		zap.Bool("has_critical_signs", state.HasCriticalSigns),
	}
	if state.VitalSignsAnalysis != nil {
		fields = append(fields, zap.String("recommendation", state.VitalSignsAnalysis.OverallRecommendation))
	}
	if info := s.manager.GetConnectedDeviceInfo(); info != nil {
		fields = append(fields, zap.String("device", info.Name))
	}
	s.logger.Info("Monitoring status", fields...)
}

// ExportAlerts 导出本会话告警到 xlsx 文件
func (s *VitalsService) ExportAlerts(ctx context.Context, path string) error {
	if s.alertsRepo == nil {
		return fmt.Errorf("alert export requires the database to be enabled")
	}
	alerts, err := s.alertsRepo.ListAlertsBySession(ctx, s.controller.SessionID(), 0)
	if err != nil {
		return err
	}
	data, err := repository.ExportAlertsExcel(alerts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	s.logger.Info("Vital alerts exported",
		zap.String("path", path),
		zap.Int("alert_count", len(alerts)),
	)
	return nil
}

// Stop 停止服务
func (s *VitalsService) Stop() error {
	s.logger.Info("Stopping vitals service")

	if s.controller != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if s.config.Monitor.ExportPath != "" && s.alertsRepo != nil {
			if err := s.ExportAlerts(ctx, s.config.Monitor.ExportPath); err != nil {
				s.logger.Error("Failed to export vital alerts", zap.Error(err))
			}
		}
		s.controller.Disconnect(ctx)
		s.controller.Close()
		if s.cache != nil && s.config.Monitor.ClearSnapshot {
			if err := s.cache.DeleteSnapshot(ctx, s.controller.SessionID()); err != nil {
				s.logger.Error("Failed to clear session snapshot", zap.Error(err))
			}
		}
		cancel()
	}

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	if s.db != nil {
		if err := database.Close(s.db); err != nil {
			s.logger.Error("Failed to close database",
				zap.Error(err),
			)
		}
	}

	if s.redisClient != nil {
		if err := rediscommon.Close(s.redisClient); err != nil {
			s.logger.Error("Failed to close redis",
				zap.Error(err),
			)
		}
	}

	return nil
}
