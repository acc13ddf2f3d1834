package api

import (
	"github.com/aisgo/ais-modelcode/engine"
	"github.com/aisgo/ais-modelcode/response"

	"github.com/gofiber/fiber/v3"
)

/* ========================================================================
 * 产品类型 / 型号分类 / 编码分类
 * ======================================================================== */

func (h *Handler) listProductTypes(c fiber.Ctx) error {
	list, err := h.engine.Catalog.ListProductTypes(c.Context())
	if err != nil {
		return response.Error(c, err)
	}
	return response.OkWithData(c, list)
}

func (h *Handler) createProductType(c fiber.Ctx) error {
	var req productTypeRequest
	if err := h.bind(c, &req); err != nil {
		return response.Error(c, err)
	}
	pt, err := h.engine.Catalog.CreateProductType(c.Context(), engine.ProductTypeInput{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.OkWithData(c, pt)
}

func (h *Handler) deleteProductType(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}
	if err := h.engine.Catalog.DeleteProductType(c.Context(), id); err != nil {
		return response.Error(c, err)
	}
	return response.Ok(c)
}

func (h *Handler) listModelClassifications(c fiber.Ctx) error {
	f := engine.ModelFilter{
		Keyword:  c.Query("keyword"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "pageSize", 20),
	}
	if raw := c.Query("productTypeId"); raw != "" {
		id, err := parseID(raw, "productTypeId")
		if err != nil {
			return response.Error(c, err)
		}
		f.ProductTypeID = id
	}
	page, err := h.engine.Catalog.ListModelClassifications(c.Context(), f)
	if err != nil {
		return response.Error(c, err)
	}
	return response.PageData(c, page.List, page.Total, page.Page, page.PageSize)
}

func (h *Handler) createModelClassification(c fiber.Ctx) error {
	var req modelClassificationRequest
	if err := h.bind(c, &req); err != nil {
		return response.Error(c, err)
	}
	mc, err := h.engine.Catalog.CreateModelClassification(c.Context(), engine.ModelClassificationInput{
		ProductTypeID:         req.ProductTypeID,
		Type:                  req.Type,
		Descriptions:          req.Descriptions,
		HasCodeClassification: req.HasCodeClassification,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.OkWithData(c, mc)
}

func (h *Handler) getModelClassification(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}
	mc, err := h.engine.Catalog.GetModelClassification(c.Context(), id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OkWithData(c, mc)
}

func (h *Handler) resolveStructure(c fiber.Ctx) error {
	s, err := h.engine.Catalog.ResolveStructure(c.Context(), c.Params("type"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.OkWithData(c, s)
}

func (h *Handler) updateModelClassification(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}
	var req modelClassificationPatch
	if err := h.bind(c, &req); err != nil {
		return response.Error(c, err)
	}
	mc, err := h.engine.Catalog.UpdateModelClassification(c.Context(), id, engine.ModelClassificationPatch{
		Type:                  req.Type,
		Descriptions:          req.Descriptions,
		HasCodeClassification: req.HasCodeClassification,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.OkWithData(c, mc)
}

func (h *Handler) deleteModelClassification(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}
	if err := h.engine.Catalog.DeleteModelClassification(c.Context(), id); err != nil {
		return response.Error(c, err)
	}
	return response.Ok(c)
}

func (h *Handler) listCodeClassifications(c fiber.Ctx) error {
	list, err := h.engine.Catalog.ListCodeClassifications(c.Context(), c.Params("modelType"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.OkWithData(c, list)
}

func (h *Handler) listCodeClassificationsByModelID(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}
	list, err := h.engine.Catalog.ListCodeClassificationsByModelID(c.Context(), id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OkWithData(c, list)
}

// createCodeClassification 创建编码分类，同时预分配 100 个 planned 槽位
func (h *Handler) createCodeClassification(c fiber.Ctx) error {
	var req codeClassificationRequest
	if err := h.bind(c, &req); err != nil {
		return response.Error(c, err)
	}
	cc, err := h.engine.Prealloc.CreateCodeClassification(c.Context(), req.input())
	if err != nil {
		return response.Error(c, err)
	}
	return response.OkWithData(c, cc)
}

func (h *Handler) renameCodeClassification(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}
	var req renameRequest
	if err := h.bind(c, &req); err != nil {
		return response.Error(c, err)
	}
	cc, err := h.engine.Catalog.UpdateCodeClassification(c.Context(), id, req.Name)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OkWithData(c, cc)
}

func (h *Handler) deleteCodeClassification(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}
	if err := h.engine.Catalog.DeleteCodeClassification(c.Context(), id); err != nil {
		return response.Error(c, err)
	}
	return response.Ok(c)
}
