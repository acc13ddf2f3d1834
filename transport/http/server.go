package http

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aisgo/ais-modelcode/cache/redis"
	"github.com/aisgo/ais-modelcode/logger"
	"github.com/aisgo/ais-modelcode/metrics"
	"github.com/aisgo/ais-modelcode/middleware"
	"github.com/aisgo/ais-modelcode/shutdown"

	"github.com/gofiber/fiber/v3"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

/* ========================================================================
 * HTTP Server - Fiber v3 HTTP 服务器
 * ========================================================================
 * 职责: 承载 /api/v1 业务路由，健康检查，指标暴露
 * 技术: Fiber v3
 * ======================================================================== */

// Config HTTP 服务器配置
type Config struct {
	Port               int           `mapstructure:"port"`
	Host               string        `mapstructure:"host"`
	AppName            string        `mapstructure:"app_name"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	HealthCheckTimeout time.Duration `mapstructure:"health_check_timeout"`
	BodyLimit          int           `mapstructure:"body_limit"` // 字节，xlsx 导入需要放宽，默认 16MB

	// EnableRecover 是否启用 Panic 恢复中间件，默认 true
	EnableRecover *bool `mapstructure:"enable_recover"`

	Listen ListenOptions `mapstructure:"listen"`
}

// ListenOptions Fiber ListenConfig 中可配置的字段
type ListenOptions struct {
	DisableStartupMessage bool          `mapstructure:"disable_startup_message"`
	EnablePrintRoutes     bool          `mapstructure:"enable_print_routes"`
	ListenerNetwork       string        `mapstructure:"listener_network"` // tcp, tcp4, tcp6，默认 tcp4
	CertFile              string        `mapstructure:"cert_file"`
	CertKeyFile           string        `mapstructure:"cert_key_file"`
	CertClientFile        string        `mapstructure:"cert_client_file"`
	ShutdownTimeout       time.Duration `mapstructure:"shutdown_timeout"`
	TLSMinVersion         uint16        `mapstructure:"tls_min_version"` // 771 (TLS 1.2), 772 (TLS 1.3)
	UnixSocketFileMode    uint32        `mapstructure:"unix_socket_file_mode"`
}

// RouteRegistrar 业务路由注册
type RouteRegistrar interface {
	Register(router fiber.Router)
}

type ServerParams struct {
	fx.In
	Lc      fx.Lifecycle
	Config  Config
	Logger  *logger.Logger
	DB      *gorm.DB                       `optional:"true"` // 就绪检查
	Redis   redis.Clienter                 `optional:"true"` // 就绪检查
	Routes  RouteRegistrar                 `optional:"true"`
	Limiter *middleware.RateLimiter        `optional:"true"`
	Auth    *middleware.AuthHeaderVerifier `optional:"true"`

	Shutdown *shutdown.Manager `optional:"true"`
}

// NewApp 构建 Fiber 应用并挂载中间件与路由，不负责监听
func NewApp(p ServerParams) *fiber.App {
	cfg := p.Config
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 120 * time.Second
	}
	if cfg.AppName == "" {
		cfg.AppName = "modelcode"
	}
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = 16 << 20
	}
	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		BodyLimit:    cfg.BodyLimit,
		ErrorHandler: middleware.NewErrorHandler(log),
	})

	enableRecover := true
	if cfg.EnableRecover != nil {
		enableRecover = *cfg.EnableRecover
	}
	if enableRecover {
		app.Use(recoverer.New(recoverer.Config{
			EnableStackTrace: true,
			StackTraceHandler: func(c fiber.Ctx, e any) {
				log.WithContext(c.Context()).Error("Panic recovered",
					zap.Any("error", e),
					zap.String("path", c.Path()),
					zap.String("method", c.Method()),
				)
			},
		}))
	}
	app.Use(middleware.RequestID())
	app.Use(metrics.HTTPMetricsMiddleware(&metrics.HTTPMiddlewareConfig{
		Skipper: func(c fiber.Ctx) bool { return c.Path() == "/metrics" },
	}))

	timeout := cfg.HealthCheckTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	registerHealthEndpoints(app, healthDeps{db: p.DB, redis: p.Redis}, timeout)
	metrics.RegisterMetricsEndpoint(app)

	if p.Routes != nil {
		api := app.Group("/api/v1", middleware.AccessLog(log))
		if p.Auth != nil {
			api.Use(p.Auth.Authenticate())
		}
		if p.Limiter != nil {
			api.Use(p.Limiter.Handler())
		}
		p.Routes.Register(api)
	}
	return app
}

// NewHTTPServer 创建应用并注册监听生命周期
func NewHTTPServer(p ServerParams) *fiber.App {
	app := NewApp(p)
	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}

	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			addr := fmt.Sprintf("%s:%d", p.Config.Host, p.Config.Port)

			listenConfig := buildListenConfig(p.Config.Listen)
			// 先绑定端口，绑定失败直接让 fx 启动失败
			listener, err := createListener(addr, listenConfig)
			if err != nil {
				log.Error("Failed to create HTTP listener", zap.Error(err), zap.String("addr", addr))
				return fmt.Errorf("failed to bind to %s: %w", addr, err)
			}

			log.Info("Starting HTTP Server", zap.String("addr", listener.Addr().String()))
			go func() {
				if err := app.Listener(listener, listenConfig); err != nil {
					log.Error("HTTP Server failed", zap.Error(err))
				}
			}()
			return nil
		},
	})

	stop := func(ctx context.Context) error {
		log.Info("Stopping HTTP Server")
		return app.ShutdownWithContext(ctx)
	}
	if p.Shutdown != nil {
		p.Shutdown.Register("http", shutdown.PriorityHTTP, stop)
	} else {
		p.Lc.Append(fx.Hook{OnStop: stop})
	}

	return app
}

// buildListenConfig 根据 ListenOptions 构建 Fiber ListenConfig
func buildListenConfig(opts ListenOptions) fiber.ListenConfig {
	config := fiber.ListenConfig{
		DisableStartupMessage: opts.DisableStartupMessage,
		EnablePrintRoutes:     opts.EnablePrintRoutes,
		CertFile:              opts.CertFile,
		CertKeyFile:           opts.CertKeyFile,
		CertClientFile:        opts.CertClientFile,
		ListenerNetwork:       opts.ListenerNetwork,
	}
	if config.ListenerNetwork == "" {
		config.ListenerNetwork = "tcp4"
	}
	if opts.ShutdownTimeout > 0 {
		config.ShutdownTimeout = opts.ShutdownTimeout
	}
	if opts.UnixSocketFileMode > 0 {
		config.UnixSocketFileMode = os.FileMode(opts.UnixSocketFileMode)
	}
	if opts.TLSMinVersion > 0 {
		config.TLSMinVersion = opts.TLSMinVersion
	}
	return config
}
