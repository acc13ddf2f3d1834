package sqlite

import (
	"strings"

	"github.com/aisgo/ais-modelcode/database"
	"github.com/aisgo/ais-modelcode/logger"
	"github.com/aisgo/ais-modelcode/shutdown"

	"go.uber.org/fx"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

/* ========================================================================
 * SQLite - 嵌入式数据库连接
 * ========================================================================
 * 职责: 本地开发与测试使用的 SQLite 连接
 * 技术: gorm.io/driver/sqlite
 * ======================================================================== */

// MemoryDSN 进程内内存库
const MemoryDSN = ":memory:"

// Config SQLite 配置
type Config struct {
	Path string `mapstructure:"path"` // 文件路径，空或 :memory: 为内存库
	database.PoolConfig `mapstructure:",squash"`
}

// Params SQLite 依赖
type Params struct {
	fx.In

	Lc       fx.Lifecycle `optional:"true"`
	Config   Config
	Logger   *logger.Logger
	Shutdown *shutdown.Manager `optional:"true"`
}

// NewDB 初始化 SQLite 连接
// 内存库与文件库都只保留一个连接：SQLite 写入本身串行，且内存库的每个连接是独立数据库
func NewDB(p Params) (*gorm.DB, error) {
	dsn := strings.TrimSpace(p.Config.Path)
	if dsn == "" {
		dsn = MemoryDSN
	}
	if dsn != MemoryDSN && !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000&_foreign_keys=on"
	}

	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}

	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig(database.NewZapGormLogger(log.Logger)))
	if err != nil {
		return nil, err
	}

	pool := p.Config.PoolConfig
	pool.MaxOpenConns = 1
	pool.MaxIdleConns = 1
	if err := database.ApplyPool(db, pool); err != nil {
		return nil, err
	}
	if dsn == MemoryDSN {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// 内存库随连接销毁，禁止连接过期
		sqlDB.SetConnMaxLifetime(0)
		sqlDB.SetConnMaxIdleTime(0)
	}

	database.RegisterClose(p.Lc, p.Shutdown, "sqlite", db)
	return db, nil
}
