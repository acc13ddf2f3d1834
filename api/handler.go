package api

import (
	"strconv"
	"strings"

	"github.com/aisgo/ais-modelcode/engine"
	"github.com/aisgo/ais-modelcode/errors"
	"github.com/aisgo/ais-modelcode/logger"
	"github.com/aisgo/ais-modelcode/middleware"
	"github.com/aisgo/ais-modelcode/validator"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/fx"
)

/* ========================================================================
 * HTTP API - /api/v1 路由
 * ========================================================================
 * 职责: 请求绑定与校验，调用引擎，统一 envelope 输出
 * 写接口需网关签名身份与对应权限，鉴权关闭时放行
 * ======================================================================== */

// Handler 型号编码 HTTP 处理器
type Handler struct {
	engine *engine.Engine
	auth   *middleware.AuthHeaderVerifier
	log    *logger.Logger
	valid  *validator.Validator
}

type HandlerParams struct {
	fx.In
	Engine *engine.Engine
	Auth   *middleware.AuthHeaderVerifier `optional:"true"`
	Logger *logger.Logger
}

// NewHandler 创建处理器
func NewHandler(p HandlerParams) *Handler {
	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{engine: p.Engine, auth: p.Auth, log: log, valid: validator.Default()}
}

// Register 注册全部业务路由，router 已挂在 /api/v1 下
func (h *Handler) Register(r fiber.Router) {
	modelPerm := h.auth.RequirePermission(middleware.PermModelClassificationManage)
	classPerm := h.auth.RequirePermission(middleware.PermCodeClassificationManage)
	codePerm := h.auth.RequirePermission(middleware.PermCodeUsageManage)

	pt := r.Group("/product-types")
	pt.Get("/", h.listProductTypes)
	pt.Post("/", modelPerm, h.createProductType)
	pt.Delete("/:id", modelPerm, h.deleteProductType)

	mc := r.Group("/model-classifications")
	mc.Get("/", h.listModelClassifications)
	mc.Post("/", modelPerm, h.createModelClassification)
	mc.Get("/:type/structure", h.resolveStructure)
	mc.Get("/:id", h.getModelClassification)
	mc.Put("/:id", modelPerm, h.updateModelClassification)
	mc.Delete("/:id", modelPerm, h.deleteModelClassification)

	cc := r.Group("/code-classifications")
	cc.Get("/by-model/:modelType", h.listCodeClassifications)
	cc.Get("/by-model-id/:id", h.listCodeClassificationsByModelID)
	cc.Post("/", classPerm, h.createCodeClassification)
	cc.Put("/:id", classPerm, h.renameCodeClassification)
	cc.Delete("/:id", classPerm, h.deleteCodeClassification)

	cu := r.Group("/code-usage")
	cu.Get("/", h.listCodeUsages)
	cu.Get("/by-classification/:id", h.codesByClassification)
	cu.Get("/by-model", h.codesByModelType)
	cu.Get("/by-model-code", h.codeByModel)
	cu.Get("/check-availability", h.checkAvailability)
	cu.Get("/stats", h.stats)
	cu.Get("/:id", h.getCodeUsage)
	cu.Post("/", codePerm, h.createCode)
	cu.Post("/create-manual", codePerm, h.createManual)
	cu.Post("/:id/allocate", codePerm, h.allocate)
	cu.Put("/:id", codePerm, h.updateMetadata)
	cu.Delete("/:id", codePerm, h.softDelete)
	cu.Post("/:id/restore", codePerm, h.restore)

	bo := r.Group("/batch-operations")
	bo.Get("/import-template/:type", h.importTemplate)
	bo.Post("/code-classifications", classPerm, h.batchCreateClassifications)
	bo.Post("/code-usage-import", codePerm, h.batchImport)
	bo.Post("/code-usage-import/file", codePerm, h.batchImportFile)
	bo.Post("/validate-import", codePerm, h.validateImport)
	bo.Post("/update-occupancy-types", codePerm, h.batchUpdateOccupancy)
	bo.Post("/soft-delete-codes", codePerm, h.batchSoftDelete)
	bo.Post("/restore-codes", codePerm, h.batchRestore)
}

// bind 解析 JSON 请求体并校验
func (h *Handler) bind(c fiber.Ctx, out any) error {
	if err := c.Bind().Body(out); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidArgument, "invalid request body", err)
	}
	return validator.ToBizError(h.valid.Validate(out))
}

// paramID 解析路径中的雪花 ID
func paramID(c fiber.Ctx, name string) (int64, error) {
	return parseID(c.Params(name), name)
}

func parseID(raw, name string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidArgument, "invalid %s %q", name, raw)
	}
	return id, nil
}

func queryInt(c fiber.Ctx, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

func queryBool(c fiber.Ctx, key string) bool {
	v, _ := strconv.ParseBool(c.Query(key))
	return v
}
