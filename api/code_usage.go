package api

import (
	"github.com/aisgo/ais-modelcode/engine"
	"github.com/aisgo/ais-modelcode/model"
	"github.com/aisgo/ais-modelcode/response"

	"github.com/gofiber/fiber/v3"
)

/* ========================================================================
 * 编码查询与分配
 * ======================================================================== */

func (h *Handler) listCodeUsages(c fiber.Ctx) error {
	f := engine.CodeUsageFilter{
		ModelType:      c.Query("modelType"),
		State:          model.State(c.Query("state")),
		OccupancyType:  model.OccupancyType(c.Query("occupancyType")),
		Keyword:        c.Query("keyword"),
		IncludeDeleted: queryBool(c, "includeDeleted"),
		Sort:           c.Query("sort"),
		Page:           queryInt(c, "page", 1),
		PageSize:       queryInt(c, "pageSize", 20),
	}
	if raw := c.Query("codeClassificationId"); raw != "" {
		id, err := parseID(raw, "codeClassificationId")
		if err != nil {
			return response.Error(c, err)
		}
		f.CodeClassificationID = id
	}
	page, err := h.engine.Queries.List(c.Context(), f)
	if err != nil {
		return response.Error(c, err)
	}
	return response.PageData(c, page.List, page.Total, page.Page, page.PageSize)
}

func (h *Handler) getCodeUsage(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}
	row, err := h.engine.Queries.Get(c.Context(), id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OkWithData(c, row)
}

func (h *Handler) codesByClassification(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}
	rows, err := h.engine.Queries.ByClassification(c.Context(), id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OkWithData(c, rows)
}

func (h *Handler) codesByModelType(c fiber.Ctx) error {
	modelType := c.Query("modelType")
	if err := h.engine.Catalog.ValidateModelTypeFormat(modelType); err != nil {
		return response.Error(c, err)
	}
	rows, err := h.engine.Queries.ByModelType(c.Context(), modelType)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OkWithData(c, rows)
}

func (h *Handler) codeByModel(c fiber.Ctx) error {
	code := c.Query("model")
	if code == "" {
		return response.BadRequest(c, "model is required")
	}
	row, err := h.engine.Queries.ByModelCode(c.Context(), code)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OkWithData(c, row)
}

func (h *Handler) checkAvailability(c fiber.Ctx) error {
	a, err := h.engine.Availability.CheckAvailability(c.Context(), engine.CodeKey{
		ModelType:            c.Query("modelType"),
		ClassificationNumber: c.Query("classificationNumber"),
		ActualNumber:         c.Query("actualNumber"),
		Extension:            c.Query("extension"),
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.OkWithData(c, a)
}

func (h *Handler) stats(c fiber.Ctx) error {
	s, err := h.engine.Queries.Stats(c.Context(), c.Query("modelType"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.OkWithData(c, s)
}

// createCode 三层结构：指定编号认领槽位或建扩展码，未指定编号取下一个可用槽位
func (h *Handler) createCode(c fiber.Ctx) error {
	var req createCodeRequest
	if err := h.bind(c, &req); err != nil {
		return response.Error(c, err)
	}
	row, err := h.engine.Allocation.Create(c.Context(), req.request())
	if err != nil {
		return response.Error(c, err)
	}
	return response.OkWithData(c, row)
}

func (h *Handler) createManual(c fiber.Ctx) error {
	var req manualCodeRequest
	if err := h.bind(c, &req); err != nil {
		return response.Error(c, err)
	}
	row, err := h.engine.Allocation.CreateManual(c.Context(), req.request())
	if err != nil {
		return response.Error(c, err)
	}
	return response.OkWithData(c, row)
}

// allocate 认领指定 planned 槽位
func (h *Handler) allocate(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}
	var req MetadataRequest
	if len(c.Body()) > 0 {
		if err := h.bind(c, &req); err != nil {
			return response.Error(c, err)
		}
	}
	row, err := h.engine.Allocation.Allocate(c.Context(), id, req.metadata())
	if err != nil {
		return response.Error(c, err)
	}
	return response.OkWithData(c, row)
}

func (h *Handler) updateMetadata(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}
	var req metadataPatchRequest
	if err := h.bind(c, &req); err != nil {
		return response.Error(c, err)
	}
	row, err := h.engine.Allocation.UpdateMetadata(c.Context(), id, req.patch())
	if err != nil {
		return response.Error(c, err)
	}
	return response.OkWithData(c, row)
}

func (h *Handler) softDelete(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}
	if err := h.engine.Lifecycle.SoftDelete(c.Context(), id, c.Query("reason")); err != nil {
		return response.Error(c, err)
	}
	return response.Ok(c)
}

func (h *Handler) restore(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}
	row, err := h.engine.Lifecycle.Restore(c.Context(), id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OkWithData(c, row)
}
