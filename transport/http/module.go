package http

import (
	"github.com/gofiber/fiber/v3"
	"go.uber.org/fx"
)

// Module HTTP 服务模块
// 提供: *fiber.App，并在启动时监听
var Module = fx.Module("http",
	fx.Provide(NewHTTPServer),
	fx.Invoke(func(*fiber.App) {}),
)
