package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aisgo/ais-modelcode/shutdown"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`     // 最大空闲连接数
	MaxOpenConns    int           `mapstructure:"max_open_conns"`     // 最大打开连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"` // 空闲连接最大时间
}

// ApplyPool 应用连接池配置（含默认值）
func ApplyPool(db *gorm.DB, cfg PoolConfig) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	maxIdleConns := cfg.MaxIdleConns
	if maxIdleConns <= 0 {
		maxIdleConns = 10
	}
	maxOpenConns := cfg.MaxOpenConns
	if maxOpenConns <= 0 {
		maxOpenConns = 25
	}
	connMaxLifetime := cfg.ConnMaxLifetime
	if connMaxLifetime <= 0 {
		connMaxLifetime = 1 * time.Hour
	}
	connMaxIdleTime := cfg.ConnMaxIdleTime
	if connMaxIdleTime <= 0 {
		connMaxIdleTime = 20 * time.Minute
	}

	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
	return nil
}

// GormConfig 返回各驱动共用的 GORM 配置
// TranslateError 开启后唯一键冲突统一为 gorm.ErrDuplicatedKey
func GormConfig(gormLog *ZapGormLogger) *gorm.Config {
	return &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}
}

// RegisterClose 注册连接池关闭
// 有关停管理器时挂在存储优先级，保证 HTTP 摘流与消息投递完成后才断开数据库
func RegisterClose(lc fx.Lifecycle, sm *shutdown.Manager, name string, db *gorm.DB) {
	closeDB := func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	switch {
	case sm != nil:
		sm.Register(name, shutdown.PriorityStorage, closeDB)
	case lc != nil:
		lc.Append(fx.Hook{OnStop: closeDB})
	}
}

// IsDuplicateKey 判断是否为唯一键冲突
// 优先使用 GORM 翻译后的错误，兜底识别各驱动的原始错误文本
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key")
}
