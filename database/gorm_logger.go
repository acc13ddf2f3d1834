package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aisgo/ais-modelcode/metrics"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

/* ========================================================================
 * ZapGormLogger - GORM 日志适配
 * ========================================================================
 * 职责: 将 GORM SQL 日志输出到 zap，慢查询告警
 * ======================================================================== */

// DefaultSlowThreshold 默认慢查询阈值
const DefaultSlowThreshold = 200 * time.Millisecond

// ZapGormLogger 实现 gormlogger.Interface
type ZapGormLogger struct {
	log           *zap.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
	withMetrics   bool
}

// NewZapGormLogger 创建 GORM 日志适配器（默认 Warn 级别）
func NewZapGormLogger(log *zap.Logger) *ZapGormLogger {
	if log == nil {
		log = zap.NewNop()
	}
	return &ZapGormLogger{
		log:           log.WithOptions(zap.AddCallerSkip(3)).Named("gorm"),
		level:         gormlogger.Warn,
		slowThreshold: DefaultSlowThreshold,
	}
}

// WithSlowThreshold 设置慢查询阈值
func (l *ZapGormLogger) WithSlowThreshold(d time.Duration) *ZapGormLogger {
	clone := *l
	if d > 0 {
		clone.slowThreshold = d
	}
	return &clone
}

// WithMetrics 开启语句耗时指标（modelcode_db_query_duration_seconds）
func (l *ZapGormLogger) WithMetrics() *ZapGormLogger {
	clone := *l
	clone.withMetrics = true
	return &clone
}

// LogMode 实现 gormlogger.Interface
func (l *ZapGormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *ZapGormLogger) Info(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Info {
		l.log.Sugar().Infof(msg, args...)
	}
}

func (l *ZapGormLogger) Warn(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Warn {
		l.log.Sugar().Warnf(msg, args...)
	}
}

func (l *ZapGormLogger) Error(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Error {
		l.log.Sugar().Errorf(msg, args...)
	}
}

// Trace 记录 SQL 执行
// 未找到记录与唯一键冲突属于业务分支，不按错误记录
func (l *ZapGormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	if l.withMetrics {
		sql, _ := fc()
		metrics.DBQueryDuration.WithLabelValues(sqlVerb(sql)).Observe(elapsed.Seconds())
	}
	if l.level <= gormlogger.Silent {
		return
	}

	switch {
	case err != nil && l.level >= gormlogger.Error &&
		!errors.Is(err, gorm.ErrRecordNotFound) && !IsDuplicateKey(err):
		sql, rows := fc()
		l.log.Error("sql error",
			zap.Error(err),
			zap.Duration("elapsed", elapsed),
			zap.Int64("rows", rows),
			zap.String("sql", sql),
		)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		sql, rows := fc()
		l.log.Warn("slow sql",
			zap.Duration("elapsed", elapsed),
			zap.Duration("threshold", l.slowThreshold),
			zap.Int64("rows", rows),
			zap.String("sql", sql),
		)
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		l.log.Debug("sql",
			zap.Duration("elapsed", elapsed),
			zap.Int64("rows", rows),
			zap.String("sql", sql),
		)
	}
}

// sqlVerb 取 SQL 首个关键字作为指标标签
func sqlVerb(sql string) string {
	sql = strings.TrimSpace(sql)
	if i := strings.IndexAny(sql, " \n\t"); i > 0 {
		sql = sql[:i]
	}
	switch verb := strings.ToUpper(sql); verb {
	case "SELECT", "INSERT", "UPDATE", "DELETE":
		return strings.ToLower(verb)
	default:
		return "other"
	}
}
