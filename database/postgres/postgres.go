package postgres

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/aisgo/ais-modelcode/database"
	"github.com/aisgo/ais-modelcode/logger"
	"github.com/aisgo/ais-modelcode/shutdown"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

/* ========================================================================
 * PostgreSQL - 关系型数据库连接
 * ========================================================================
 * 职责: 提供 PostgreSQL 连接池、GORM 集成
 * 技术: gorm.io/driver/postgres
 * ======================================================================== */

// Config PostgreSQL 配置
type Config struct {
	DSN                 string `mapstructure:"dsn"` // 完整 URL，优先于分项配置
	Host                string `mapstructure:"host"`
	Port                int    `mapstructure:"port"`
	User                string `mapstructure:"user"`
	Password            string `mapstructure:"password"`
	DBName              string `mapstructure:"dbname"`
	SSLMode             string `mapstructure:"sslmode"`
	Schema              string `mapstructure:"schema"` // 数据库 schema，默认 public
	database.PoolConfig `mapstructure:",squash"`
}

// Params PostgreSQL 依赖
type Params struct {
	fx.In

	Lc       fx.Lifecycle `optional:"true"`
	Config   Config
	Logger   *logger.Logger
	Shutdown *shutdown.Manager `optional:"true"`
}

// BuildDSN 生成连接串
func BuildDSN(cfg Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, port, cfg.User, cfg.Password, cfg.DBName, sslMode)
	if cfg.Schema != "" {
		dsn = fmt.Sprintf("%s search_path=%s", dsn, cfg.Schema)
	}
	return dsn
}

// NewDB 初始化 Postgres 连接
func NewDB(p Params) (*gorm.DB, error) {
	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}

	dsn := BuildDSN(p.Config)
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: dsn}),
		database.GormConfig(database.NewZapGormLogger(log.Logger).WithMetrics()))
	if err != nil {
		log.Error("postgres connect failed", zap.String("dsn", sanitizeDSN(dsn)), zap.Error(err))
		return nil, err
	}
	if err := database.ApplyPool(db, p.Config.PoolConfig); err != nil {
		return nil, err
	}

	log.Info("postgres connected", zap.String("dsn", sanitizeDSN(dsn)))
	database.RegisterClose(p.Lc, p.Shutdown, "postgres", db)
	return db, nil
}

// sanitizeDSN 屏蔽连接串中的密码，仅用于日志
func sanitizeDSN(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return dsn
		}
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
		return u.String()
	}

	fields := strings.Fields(dsn)
	for i, f := range fields {
		if strings.HasPrefix(f, "password=") {
			fields[i] = "password=***"
		}
	}
	return strings.Join(fields, " ")
}
