package api

import (
	"github.com/aisgo/ais-modelcode/engine"
	"github.com/aisgo/ais-modelcode/errors"
	"github.com/aisgo/ais-modelcode/model"
	"github.com/aisgo/ais-modelcode/response"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

/* ========================================================================
 * 批量操作
 * ========================================================================
 * 逐条执行，返回 200 与逐条报告；任一条失败时 success=false
 * ======================================================================== */

func (h *Handler) batchCreateClassifications(c fiber.Ctx) error {
	var req batchClassificationsRequest
	if err := h.bind(c, &req); err != nil {
		return response.Error(c, err)
	}
	return h.report(c)(h.engine.Batch.CreateClassifications(c.Context(), req.inputs()))
}

func (h *Handler) batchImport(c fiber.Ctx) error {
	var req importRequest
	if err := h.bind(c, &req); err != nil {
		return response.Error(c, err)
	}
	return h.report(c)(h.engine.Batch.ImportCodeUsages(c.Context(), req.rows()))
}

func (h *Handler) validateImport(c fiber.Ctx) error {
	var req importRequest
	if err := h.bind(c, &req); err != nil {
		return response.Error(c, err)
	}
	return h.report(c)(h.engine.Batch.ValidateImport(c.Context(), req.rows()))
}

// batchImportFile xlsx 导入；validateOnly=true 时只校验不落库
func (h *Handler) batchImportFile(c fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return response.BadRequest(c, "file is required")
	}
	file, err := fh.Open()
	if err != nil {
		return response.Error(c, errors.Wrap(errors.ErrCodeInvalidArgument, "cannot open upload", err))
	}
	defer file.Close()

	rows, err := parseImportFile(file)
	if err != nil {
		return response.Error(c, err)
	}
	h.log.WithContext(c.Context()).Info("xlsx import received",
		zap.String("file", fh.Filename),
		zap.Int("rows", len(rows)),
	)

	if queryBool(c, "validateOnly") {
		return h.report(c)(h.engine.Batch.ValidateImport(c.Context(), rows))
	}
	return h.report(c)(h.engine.Batch.ImportCodeUsages(c.Context(), rows))
}

func (h *Handler) batchUpdateOccupancy(c fiber.Ctx) error {
	var req batchOccupancyRequest
	if err := h.bind(c, &req); err != nil {
		return response.Error(c, err)
	}
	items := make([]engine.OccupancyUpdate, len(req.Items))
	for i, item := range req.Items {
		items[i] = engine.OccupancyUpdate{ID: item.ID, OccupancyType: model.OccupancyType(item.OccupancyType)}
	}
	return h.report(c)(h.engine.Batch.UpdateOccupancyTypes(c.Context(), items))
}

func (h *Handler) batchSoftDelete(c fiber.Ctx) error {
	var req batchIDsRequest
	if err := h.bind(c, &req); err != nil {
		return response.Error(c, err)
	}
	ids, err := parseIDs(req.IDs)
	if err != nil {
		return response.Error(c, err)
	}
	return h.report(c)(h.engine.Batch.SoftDeleteCodes(c.Context(), ids, req.Reason))
}

func (h *Handler) batchRestore(c fiber.Ctx) error {
	var req batchIDsRequest
	if err := h.bind(c, &req); err != nil {
		return response.Error(c, err)
	}
	ids, err := parseIDs(req.IDs)
	if err != nil {
		return response.Error(c, err)
	}
	return h.report(c)(h.engine.Batch.RestoreCodes(c.Context(), ids))
}

func (h *Handler) importTemplate(c fiber.Ctx) error {
	f, name, err := buildTemplate(c.Params("type"))
	if err != nil {
		return response.Error(c, err)
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return response.InternalError(c, "write template failed")
	}
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return c.Send(buf.Bytes())
}

// report 批量调用结果输出；整批被拒（条数超限等）走错误响应
func (h *Handler) report(c fiber.Ctx) func(*engine.BatchReport, error) error {
	return func(r *engine.BatchReport, err error) error {
		if err != nil {
			return response.Error(c, err)
		}
		return response.Batch(c, r)
	}
}

func parseIDs(raw []string) ([]int64, error) {
	ids := make([]int64, len(raw))
	for i, s := range raw {
		id, err := parseID(s, "id")
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}
