package adapter

import (
	"context"
	"sync/atomic"
	"time"

	"firstaid-vitals/internal/models"

	"go.uber.org/zap"
)

// ReadFunc 一次性读取函数
type ReadFunc func(ctx context.Context) *models.VitalSigns

// StartPolling 以固定间隔轮询并回调（平台无实时推送时模拟推送）
// 启动后立即读取一次，之后每个 interval 读取一次；读取结果为 nil 时跳过回调
// 返回的取消函数只生效一次，调用后不再有新的回调
func StartPolling(interval time.Duration, read ReadFunc, cb Callback, logger *zap.Logger) func() {
	ctx, cancel := context.WithCancel(context.Background())
	var stopped atomic.Bool

	poll := func() {
		vs := read(ctx)
		if vs == nil || stopped.Load() {
			return
		}
		cb(*vs)
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		poll()
		for {
			select {
			case <-ctx.Done():
				logger.Debug("Polling stopped")
				return
			case <-ticker.C:
				poll()
			}
		}
	}()

	return Once(func() {
		stopped.Store(true)
		cancel()
	})
}

// WithConnectTimeout 为连接过程设置超时，timeout <= 0 时使用 DefaultConnectTimeout
func WithConnectTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// DefaultConnectTimeout 默认连接超时
const DefaultConnectTimeout = 20 * time.Second

// DefaultPollInterval 默认轮询间隔
const DefaultPollInterval = 60 * time.Second
