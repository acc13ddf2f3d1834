package shutdown

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/aisgo/ais-modelcode/logger"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

/* ========================================================================
 * Shutdown Manager - 优雅关停编排
 * ========================================================================
 * 停止顺序: 先摘流量 (HTTP)，再排空消息生产者，最后释放存储连接
 * 同一阶段的钩子并行执行；整体与单钩子均受超时约束
 * ======================================================================== */

// 关停阶段，数值越小越先执行
const (
	PriorityHTTP     = 0
	PriorityProducer = 10
	PriorityNormal   = 50
	PriorityStorage  = 90
)

// Hook 关停钩子
type Hook func(ctx context.Context) error

type hook struct {
	name     string
	priority int
	fn       Hook
}

// Manager 优雅关停管理器
type Manager struct {
	cfg Config
	log *logger.Logger

	mu    sync.Mutex
	hooks []hook

	once sync.Once
	done chan struct{}
	err  error
}

// ManagerParams 依赖参数
type ManagerParams struct {
	fx.In

	Logger *logger.Logger
	Config *Config `optional:"true"`
}

// NewManager 创建关停管理器，未配置时使用 DefaultConfig
func NewManager(p ManagerParams) *Manager {
	cfg := *DefaultConfig()
	if p.Config != nil {
		if p.Config.Timeout > 0 {
			cfg.Timeout = p.Config.Timeout
		}
		cfg.HookTimeout = p.Config.HookTimeout
	}
	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Manager{cfg: cfg, log: log, done: make(chan struct{})}
}

// Register 登记一个钩子到指定阶段
func (m *Manager) Register(name string, priority int, fn Hook) {
	m.mu.Lock()
	m.hooks = append(m.hooks, hook{name: name, priority: priority, fn: fn})
	m.mu.Unlock()

	m.log.Debug("shutdown hook registered", zap.String("name", name), zap.Int("priority", priority))
}

// Shutdown 按阶段执行全部钩子，只执行一次；重复调用返回首次结果
func (m *Manager) Shutdown(ctx context.Context) error {
	m.once.Do(func() {
		m.err = m.run(ctx)
		close(m.done)
	})
	return m.err
}

// Done 关停完成后关闭
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

func (m *Manager) run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	m.mu.Lock()
	hooks := slices.Clone(m.hooks)
	m.mu.Unlock()
	slices.SortStableFunc(hooks, func(a, b hook) int { return a.priority - b.priority })

	m.log.Info("graceful shutdown started", zap.Int("hooks", len(hooks)), zap.Duration("timeout", m.cfg.Timeout))

	var errs []error
	for start := 0; start < len(hooks); {
		end := start + 1
		for end < len(hooks) && hooks[end].priority == hooks[start].priority {
			end++
		}
		if ctx.Err() != nil {
			m.log.Warn("shutdown timeout reached, remaining hooks skipped", zap.Int("skipped", len(hooks)-start))
			errs = append(errs, ctx.Err())
			break
		}
		errs = append(errs, m.runStage(ctx, hooks[start:end])...)
		start = end
	}

	err := errors.Join(errs...)
	if err != nil {
		m.log.Warn("graceful shutdown finished with errors", zap.Error(err))
	} else {
		m.log.Info("graceful shutdown finished")
	}
	return err
}

// runStage 并行执行同一阶段的钩子；整体超时后不再等待未返回的钩子
func (m *Manager) runStage(ctx context.Context, stage []hook) []error {
	results := make(chan error, len(stage))
	for _, h := range stage {
		go func() {
			hctx, cancel := ctx, context.CancelFunc(func() {})
			if m.cfg.HookTimeout > 0 {
				hctx, cancel = context.WithTimeout(ctx, m.cfg.HookTimeout)
			}
			defer cancel()

			began := time.Now()
			err := h.fn(hctx)
			fields := []zap.Field{zap.String("name", h.name), zap.Duration("duration", time.Since(began))}
			if err != nil {
				m.log.Error("shutdown hook failed", append(fields, zap.Error(err))...)
				err = fmt.Errorf("%s: %w", h.name, err)
			} else {
				m.log.Info("shutdown hook done", fields...)
			}
			results <- err
		}()
	}

	var errs []error
	for range stage {
		select {
		case err := <-results:
			if err != nil {
				errs = append(errs, err)
			}
		case <-ctx.Done():
			m.log.Warn("shutdown stage abandoned", zap.Int("priority", stage[0].priority))
			return append(errs, ctx.Err())
		}
	}
	return errs
}
