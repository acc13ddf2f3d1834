package sqlite

import "go.uber.org/fx"

// Module SQLite 模块
// 提供: *gorm.DB
var Module = fx.Module("sqlite",
	fx.Provide(NewDB),
)
