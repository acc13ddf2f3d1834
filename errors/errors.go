package errors

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gofiber/fiber/v3"
)

/* ========================================================================
 * Error Package - 统一错误处理
 * ========================================================================
 * 职责: 定义业务错误码，提供错误包装和 HTTP 转换工具
 * 分段: 1xxx 通用错误, 2xxx 型号编码领域错误
 * ======================================================================== */

// ========================================================================
// 错误码定义
// ========================================================================

// ErrorCode 业务错误码
type ErrorCode int

const (
	// 通用错误 (1xxx)
	ErrCodeUnknown          ErrorCode = 1000 // 未知错误
	ErrCodeInvalidArgument  ErrorCode = 1001 // 参数无效
	ErrCodeNotFound         ErrorCode = 1002 // 资源不存在
	ErrCodePermissionDenied ErrorCode = 1004 // 权限不足
	ErrCodeUnauthenticated  ErrorCode = 1005 // 未认证
	ErrCodeInternal         ErrorCode = 1006 // 内部错误
	ErrCodeUnavailable      ErrorCode = 1007 // 服务不可用
	ErrCodeTimeout          ErrorCode = 1008 // 超时
	ErrCodeCanceled         ErrorCode = 1009 // 已取消
	ErrCodeTooManyRequests  ErrorCode = 1010 // 请求过于频繁

	// 型号编码领域错误 (2xxx)
	ErrCodeInvalidFormat       ErrorCode = 2001 // 格式不合法（型号类型、分类位、实际编号）
	ErrCodeConflict            ErrorCode = 2002 // 唯一性冲突
	ErrCodeAlreadyAllocated    ErrorCode = 2003 // 条件更新落败，槽位已被占用
	ErrCodePartialBatchFailure ErrorCode = 2004 // 批量操作部分失败
)

// codeNames 对外暴露的机器可读错误名
var codeNames = map[ErrorCode]string{
	ErrCodeUnknown:             "UNKNOWN",
	ErrCodeInvalidArgument:     "INVALID_ARGUMENT",
	ErrCodeNotFound:            "NOT_FOUND",
	ErrCodePermissionDenied:    "PERMISSION_DENIED",
	ErrCodeUnauthenticated:     "UNAUTHENTICATED",
	ErrCodeInternal:            "INTERNAL",
	ErrCodeUnavailable:         "UNAVAILABLE",
	ErrCodeTimeout:             "TIMEOUT",
	ErrCodeCanceled:            "CANCELED",
	ErrCodeTooManyRequests:     "TOO_MANY_REQUESTS",
	ErrCodeInvalidFormat:       "INVALID_FORMAT",
	ErrCodeConflict:            "CONFLICT",
	ErrCodeAlreadyAllocated:    "ALREADY_ALLOCATED",
	ErrCodePartialBatchFailure: "PARTIAL_BATCH_FAILURE",
}

// String 返回错误码名称
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CODE_%d", int(c))
}

// ========================================================================
// 业务错误类型
// ========================================================================

// BizError 业务错误
type BizError struct {
	Code    ErrorCode // 业务错误码
	Message string    // 错误消息
	Cause   error     // 原始错误
}

// Error 实现 error 接口
func (e *BizError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Is 支持 errors.Is：按业务错误码匹配
func (e *BizError) Is(target error) bool {
	t, ok := target.(*BizError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Unwrap 支持 errors.Is 和 errors.As
func (e *BizError) Unwrap() error {
	return e.Cause
}

// ========================================================================
// 错误构造函数
// ========================================================================

// New 创建业务错误
func New(code ErrorCode, message string) *BizError {
	return &BizError{
		Code:    code,
		Message: message,
	}
}

// Newf 格式化创建业务错误
func Newf(code ErrorCode, format string, args ...any) *BizError {
	return &BizError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap 包装错误
func Wrap(code ErrorCode, message string, cause error) *BizError {
	return &BizError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf 格式化包装错误
func Wrapf(code ErrorCode, cause error, format string, args ...any) *BizError {
	return &BizError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// ========================================================================
// 预定义错误（便于 errors.Is 判断）
// ========================================================================

var (
	// 通用错误
	ErrInvalidArgument  = New(ErrCodeInvalidArgument, "invalid argument")
	ErrNotFound         = New(ErrCodeNotFound, "resource not found")
	ErrPermissionDenied = New(ErrCodePermissionDenied, "permission denied")
	ErrUnauthenticated  = New(ErrCodeUnauthenticated, "unauthenticated")
	ErrInternal         = New(ErrCodeInternal, "internal error")
	ErrUnavailable      = New(ErrCodeUnavailable, "service unavailable")
	ErrTimeout          = New(ErrCodeTimeout, "timeout")
	ErrCanceled         = New(ErrCodeCanceled, "canceled")

	// 领域错误
	ErrInvalidFormat       = New(ErrCodeInvalidFormat, "invalid format")
	ErrConflict            = New(ErrCodeConflict, "conflict")
	ErrAlreadyAllocated    = New(ErrCodeAlreadyAllocated, "already allocated")
	ErrPartialBatchFailure = New(ErrCodePartialBatchFailure, "partial batch failure")
)

// ========================================================================
// 错误判断辅助函数
// ========================================================================

// Is 判断错误是否为指定类型
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As 将错误转换为指定类型
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Code 获取错误码
func Code(err error) ErrorCode {
	var bizErr *BizError
	if errors.As(err, &bizErr) {
		return bizErr.Code
	}
	return ErrCodeUnknown
}

// IsNotFound 判断是否为 NotFound 错误
func IsNotFound(err error) bool {
	return Code(err) == ErrCodeNotFound
}

// IsConflict 判断是否为唯一性冲突
func IsConflict(err error) bool {
	return Code(err) == ErrCodeConflict
}

// IsAlreadyAllocated 判断是否为槽位已占用
func IsAlreadyAllocated(err error) bool {
	return Code(err) == ErrCodeAlreadyAllocated
}

// AsBizError 将错误转换为 BizError
// 返回值: (*BizError, bool) - 如果是 BizError 返回实例和 true，否则返回 nil 和 false
func AsBizError(err error) (*BizError, bool) {
	if err == nil {
		return nil, false
	}
	var bizErr *BizError
	if errors.As(err, &bizErr) {
		return bizErr, true
	}
	return nil, false
}

// Message 返回面向操作员的错误描述，非业务错误统一隐藏细节
func Message(err error) string {
	if err == nil {
		return ""
	}
	if bizErr, ok := AsBizError(err); ok {
		return bizErr.Message
	}
	return "internal server error"
}

// ========================================================================
// HTTP 错误转换
// ========================================================================

// httpStatusCode 业务错误码到 HTTP 状态码映射
// 领域失败统一返回 400，由 code 字段区分具体原因
var httpStatusCode = map[ErrorCode]int{
	ErrCodeUnknown:             500,
	ErrCodeInvalidArgument:     400,
	ErrCodeNotFound:            400,
	ErrCodePermissionDenied:    403,
	ErrCodeUnauthenticated:     401,
	ErrCodeInternal:            500,
	ErrCodeUnavailable:         503,
	ErrCodeTimeout:             504,
	ErrCodeCanceled:            499,
	ErrCodeTooManyRequests:     429,
	ErrCodeInvalidFormat:       400,
	ErrCodeConflict:            400,
	ErrCodeAlreadyAllocated:    400,
	ErrCodePartialBatchFailure: 400,
}

var (
	httpStatusMu         sync.RWMutex
	httpStatusOverrides  = make(map[ErrorCode]int)
	httpStatusResolverFn func(ErrorCode) (int, bool)
)

// RegisterHTTPStatus 注册业务错误码与 HTTP 状态码映射
func RegisterHTTPStatus(code ErrorCode, status int) {
	httpStatusMu.Lock()
	defer httpStatusMu.Unlock()
	httpStatusOverrides[code] = status
}

// SetHTTPStatusResolver 设置自定义的 HTTP 状态码解析器
// 解析器返回 (status, true) 表示命中，否则继续使用默认映射。
func SetHTTPStatusResolver(resolver func(ErrorCode) (int, bool)) {
	httpStatusMu.Lock()
	defer httpStatusMu.Unlock()
	httpStatusResolverFn = resolver
}

func resolveHTTPStatus(code ErrorCode) (int, bool) {
	httpStatusMu.RLock()
	if status, ok := httpStatusOverrides[code]; ok {
		httpStatusMu.RUnlock()
		return status, true
	}
	resolver := httpStatusResolverFn
	httpStatusMu.RUnlock()

	if resolver != nil {
		if status, ok := resolver(code); ok {
			return status, true
		}
	}
	return 0, false
}

// HTTPStatus 返回错误对应的 HTTP 状态码
func HTTPStatus(err error) int {
	if err == nil {
		return 200
	}
	bizErr, ok := AsBizError(err)
	if !ok {
		return 500
	}
	if status, ok := resolveHTTPStatus(bizErr.Code); ok {
		return status
	}
	if status, ok := httpStatusCode[bizErr.Code]; ok {
		return status
	}
	return 500
}

// ToHTTPResponse 将业务错误转换为 HTTP 响应（统一信封 success/data/message/code）
func ToHTTPResponse(err error) (int, fiber.Map) {
	if err == nil {
		return 200, fiber.Map{"success": true, "message": "success"}
	}

	if bizErr, ok := AsBizError(err); ok {
		return HTTPStatus(err), fiber.Map{
			"success": false,
			"message": bizErr.Message,
			"code":    bizErr.Code.String(),
		}
	}

	// 非业务错误
	return 500, fiber.Map{
		"success": false,
		"message": "internal server error",
		"code":    ErrCodeInternal.String(),
	}
}
