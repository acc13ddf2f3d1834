package shutdown

import "go.uber.org/fx"

// Module 关停编排模块
// 提供: *Manager；fx 停止时按优先级执行已注册钩子
var Module = fx.Module("shutdown",
	fx.Provide(NewManager),
	fx.Invoke(func(lc fx.Lifecycle, m *Manager) {
		lc.Append(fx.Hook{
			OnStop: m.Shutdown,
		})
	}),
)
