package mysql

import (
	"net"
	"strconv"
	"time"

	"github.com/aisgo/ais-modelcode/database"
	"github.com/aisgo/ais-modelcode/logger"
	"github.com/aisgo/ais-modelcode/shutdown"

	mysqldriver "github.com/go-sql-driver/mysql"
	"go.uber.org/fx"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

/* ========================================================================
 * MySQL - 关系型数据库连接
 * ========================================================================
 * 职责: 提供 MySQL 连接池、GORM 集成
 * 技术: gorm.io/driver/mysql + go-sql-driver/mysql (DSN 构造)
 * ======================================================================== */

// Config MySQL 配置
type Config struct {
	Host                string `mapstructure:"host"`
	Port                int    `mapstructure:"port"`
	User                string `mapstructure:"user"`
	Password            string `mapstructure:"password"`
	DBName              string `mapstructure:"dbname"`
	Charset             string `mapstructure:"charset"` // 字符集，默认 utf8mb4
	Loc                 string `mapstructure:"loc"`     // 时区，默认 Local
	database.PoolConfig `mapstructure:",squash"`
}

// Params MySQL 依赖
type Params struct {
	fx.In

	Lc       fx.Lifecycle `optional:"true"`
	Config   Config
	Logger   *logger.Logger
	Shutdown *shutdown.Manager `optional:"true"`
}

// BuildDSN 使用驱动自身的配置结构生成 DSN，避免手工拼接时的转义问题
func BuildDSN(cfg Config) (string, error) {
	charset := cfg.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	locName := cfg.Loc
	if locName == "" {
		locName = "Local"
	}
	loc, err := time.LoadLocation(locName)
	if err != nil {
		return "", err
	}

	port := cfg.Port
	if port == 0 {
		port = 3306
	}

	dc := mysqldriver.NewConfig()
	dc.User = cfg.User
	dc.Passwd = cfg.Password
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	dc.DBName = cfg.DBName
	dc.ParseTime = true
	dc.Loc = loc
	dc.Params = map[string]string{"charset": charset}
	return dc.FormatDSN(), nil
}

// NewDB 初始化 MySQL 连接
func NewDB(p Params) (*gorm.DB, error) {
	dsn, err := BuildDSN(p.Config)
	if err != nil {
		return nil, err
	}

	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}

	db, err := gorm.Open(mysql.Open(dsn), database.GormConfig(database.NewZapGormLogger(log.Logger).WithMetrics()))
	if err != nil {
		return nil, err
	}
	if err := database.ApplyPool(db, p.Config.PoolConfig); err != nil {
		return nil, err
	}

	database.RegisterClose(p.Lc, p.Shutdown, "mysql", db)
	return db, nil
}
