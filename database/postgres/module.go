package postgres

import (
	"go.uber.org/fx"
)

// Module PostgreSQL 模块
// 提供: *gorm.DB
var Module = fx.Module("postgres",
	fx.Provide(NewDB),
)
