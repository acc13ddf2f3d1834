package response

import (
	"fmt"
	"net/http"

	"github.com/aisgo/ais-modelcode/errors"

	"github.com/gofiber/fiber/v3"
)

/* ========================================================================
 * Response - 统一响应处理
 * ========================================================================
 * 职责: 提供统一的 HTTP 响应处理函数
 * 特性:
 *   - 统一信封 {success, data, message}
 *   - 与 errors 包集成，自动识别 BizError
 *   - 批量操作按条汇总
 * ======================================================================== */

func newResp(success bool, msg string, data any) *Result {
	resp := &Result{
		Success: success,
		Message: msg,
	}
	if data == nil {
		resp.Data = &struct{}{}
	} else {
		resp.Data = data
	}
	return resp
}

func respJSON(c fiber.Ctx, status int, success bool, msg string, data any) error {
	if status > http.StatusNetworkAuthenticationRequired || status < http.StatusContinue {
		status = http.StatusInternalServerError
	}
	return c.Status(status).JSON(newResp(success, msg, data))
}

/* ========================================================================
 * 成功响应
 * ======================================================================== */

// Ok 返回成功响应
func Ok(c fiber.Ctx) error {
	return respJSON(c, http.StatusOK, true, "success", nil)
}

// OkWithData 返回成功响应（带数据）
func OkWithData(c fiber.Ctx, data any) error {
	return respJSON(c, http.StatusOK, true, "success", data)
}

// Success 返回成功响应（自定义消息和数据）
func Success(c fiber.Ctx, msg string, data any) error {
	return respJSON(c, http.StatusOK, true, msg, data)
}

/* ========================================================================
 * 错误响应
 * ======================================================================== */

// Error 返回错误响应
// BizError 使用其映射的 HTTP 状态码，其他错误隐藏细节返回 500
func Error(c fiber.Ctx, err error) error {
	if err == nil {
		return Ok(c)
	}

	status, body := errors.ToHTTPResponse(err)
	resp := newResp(false, body["message"].(string), nil)
	resp.Code = body["code"].(string)
	return c.Status(status).JSON(resp)
}

/* ========================================================================
 * 分页与批量响应
 * ======================================================================== */

// PageData 返回分页数据
func PageData(c fiber.Ctx, list any, total int64, page, pageSize int) error {
	return OkWithData(c, &PageResult{
		List:     list,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// Batch 返回批量操作结果
// 任一条目失败时 success=false，但仍以 200 返回完整逐条报告
func Batch(c fiber.Ctx, report BatchReporter) error {
	failed, succeeded := report.Failed(), report.Succeeded()
	err := report.Err()
	if err == nil {
		return Success(c, fmt.Sprintf("全部成功，共 %d 条", succeeded), report)
	}
	resp := newResp(false, fmt.Sprintf("部分失败：成功 %d 条，失败 %d 条", succeeded, failed), report)
	resp.Code = errors.Code(err).String()
	return c.Status(http.StatusOK).JSON(resp)
}

/* ========================================================================
 * 快捷响应
 * ======================================================================== */

// BadRequest 返回 400 错误
func BadRequest(c fiber.Ctx, msg string) error {
	return Error(c, errors.New(errors.ErrCodeInvalidArgument, msg))
}

// Unauthorized 返回 401 错误
func Unauthorized(c fiber.Ctx, msg string) error {
	return Error(c, errors.New(errors.ErrCodeUnauthenticated, msg))
}

// Forbidden 返回 403 错误
func Forbidden(c fiber.Ctx, msg string) error {
	return Error(c, errors.New(errors.ErrCodePermissionDenied, msg))
}

// TooManyRequests 返回 429 错误
func TooManyRequests(c fiber.Ctx, msg string) error {
	return Error(c, errors.New(errors.ErrCodeTooManyRequests, msg))
}

// InternalError 返回 500 错误
func InternalError(c fiber.Ctx, msg string) error {
	return Error(c, errors.New(errors.ErrCodeInternal, msg))
}

// ServiceUnavailable 返回 503 错误
func ServiceUnavailable(c fiber.Ctx, msg string) error {
	return Error(c, errors.New(errors.ErrCodeUnavailable, msg))
}
