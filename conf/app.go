package conf

import (
	"fmt"
	"time"

	"github.com/aisgo/ais-modelcode/audit"
	"github.com/aisgo/ais-modelcode/cache/redis"
	"github.com/aisgo/ais-modelcode/database/mysql"
	"github.com/aisgo/ais-modelcode/database/postgres"
	"github.com/aisgo/ais-modelcode/database/sqlite"
	"github.com/aisgo/ais-modelcode/engine"
	"github.com/aisgo/ais-modelcode/logger"
	"github.com/aisgo/ais-modelcode/middleware"
	"github.com/aisgo/ais-modelcode/mq"
	"github.com/aisgo/ais-modelcode/shutdown"
	httptransport "github.com/aisgo/ais-modelcode/transport/http"

	"go.uber.org/fx"
)

/* ========================================================================
 * AppConfig - 服务配置根
 * ========================================================================
 * 文件: configs/config.yaml；环境变量前缀 APP_，如 APP_DATABASE_DRIVER=mysql
 * ======================================================================== */

// 支持的数据库驱动
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// DatabaseConfig 数据库配置，按 driver 选择分节
type DatabaseConfig struct {
	Driver   string          `mapstructure:"driver"`
	SQLite   sqlite.Config   `mapstructure:"sqlite"`
	MySQL    mysql.Config    `mapstructure:"mysql"`
	Postgres postgres.Config `mapstructure:"postgres"`
}

// SnowflakeConfig 实体 ID 节点配置，多实例部署需各不相同
type SnowflakeConfig struct {
	NodeID int64 `mapstructure:"node_id"`
}

// AppConfig 服务配置
type AppConfig struct {
	Server    httptransport.Config       `mapstructure:"server"`
	Log       logger.Config              `mapstructure:"log"`
	Database  DatabaseConfig             `mapstructure:"database"`
	Redis     redis.Config               `mapstructure:"redis"`
	MQ        mq.Config                  `mapstructure:"mq"`
	Audit     audit.Config               `mapstructure:"audit"`
	Auth      middleware.AuthConfig      `mapstructure:"auth"`
	RateLimit middleware.RateLimitConfig `mapstructure:"ratelimit"`
	Shutdown  shutdown.Config            `mapstructure:"shutdown"`
	Engine    engine.Config              `mapstructure:"engine"`
	Snowflake SnowflakeConfig            `mapstructure:"snowflake"`
}

// Defaults 未配置时的默认值，同时声明可被环境变量覆盖的键
func Defaults() map[string]any {
	mqDefaults := mq.DefaultConfig()
	return map[string]any{
		"server.port":                 8080,
		"server.app_name":             "modelcode",
		"server.health_check_timeout": 2 * time.Second,
		"log.level":                   "info",
		"log.format":                  "json",
		"log.output":                  "stdout",
		"database.driver":             DriverSQLite,
		"database.sqlite.path":        "modelcode.db",
		"database.mysql.port":         3306,
		"database.mysql.host":         "",
		"database.mysql.user":         "",
		"database.mysql.password":     "",
		"database.mysql.dbname":       "",
		"database.postgres.dsn":       "",
		"redis.enabled":               false,
		"redis.host":                  "127.0.0.1",
		"redis.port":                  6379,
		"redis.password":              "",
		"mq.enabled":                  false,
		"mq.type":                     string(mqDefaults.Type),
		"audit.log":                   true,
		"audit.db":                    true,
		"audit.mq":                    false,
		"audit.topic":                 "modelcode-audit",
		"auth.enabled":                false,
		"auth.secret":                 "",
		"ratelimit.enabled":           true,
		"ratelimit.limit":             100,
		"ratelimit.period":            time.Second,
		"ratelimit.store":             "memory",
		"shutdown.timeout":            30 * time.Second,
		"shutdown.hook_timeout":       10 * time.Second,
		"engine.structure_ttl":        10 * time.Minute,
		"engine.auto_migrate":         true,
		"snowflake.node_id":           1,
	}
}

// Load 读取 dir/config.yaml，叠加 .env 与 APP_ 环境变量
func Load(dir string) (*AppConfig, error) {
	cfg := &AppConfig{MQ: *mq.DefaultConfig()}
	loader := NewLoader(dir, "config", "yaml",
		WithDotEnv(".env"),
		WithDefaults(Defaults()),
	)
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 启动前的配置检查
func (c *AppConfig) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverMySQL, DriverPostgres:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if err := logger.ValidateConfig(c.Log); err != nil {
		return err
	}
	if err := c.MQ.Validate(); err != nil {
		return err
	}
	if c.Audit.MQ && !c.MQ.Enabled {
		return fmt.Errorf("audit.mq requires mq.enabled")
	}
	if c.Auth.Enabled && c.Auth.Secret == "" && len(c.Auth.Secrets) == 0 {
		return fmt.Errorf("auth.enabled requires auth.secret or auth.secrets")
	}
	if c.RateLimit.Store == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("ratelimit.store=redis requires redis.enabled")
	}
	return nil
}

// Module 把各配置分节注入 fx 图
func Module(c *AppConfig) fx.Option {
	return fx.Module("conf",
		fx.Supply(
			c.Server,
			c.Log,
			c.Redis,
			&c.MQ,
			c.Audit,
			c.Auth,
			c.RateLimit,
			&c.Shutdown,
			c.Engine,
			c.Database.SQLite,
			c.Database.MySQL,
			c.Database.Postgres,
		),
	)
}
