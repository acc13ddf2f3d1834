package logger

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

// Module 日志模块
// 提供: *Logger，停止时刷新缓冲
var Module = fx.Module("logger",
	fx.Provide(NewLogger),
	fx.Invoke(func(lc fx.Lifecycle, l *Logger) {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				// stdout/stderr 的 Sync 在部分平台返回 EINVAL
				_ = l.Sync()
				return nil
			},
		})
	}),
)

// FxLogger 让 fx 自身的事件日志走 zap
func FxLogger(l *Logger) fxevent.Logger {
	return &fxevent.ZapLogger{Logger: l.Logger.Named("fx")}
}
