package api

import (
	httptransport "github.com/aisgo/ais-modelcode/transport/http"

	"go.uber.org/fx"
)

// Module HTTP API 模块
// 提供: *Handler, http.RouteRegistrar
var Module = fx.Module("api",
	fx.Provide(
		NewHandler,
		func(h *Handler) httptransport.RouteRegistrar { return h },
	),
)
