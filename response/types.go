package response

/* ========================================================================
 * Response Types - 响应类型定义
 * ========================================================================
 * 职责: 定义标准 API 响应信封 {success, data, message}
 * 约定: 字段统一 camelCase，code 仅在失败时出现
 * ======================================================================== */

// Result 标准 API 响应结构
type Result struct {
	Success bool   `json:"success" example:"true" doc:"是否成功"`
	Data    any    `json:"data" doc:"响应数据"`
	Message string `json:"message" example:"success" doc:"响应消息"`
	Code    string `json:"code,omitempty" example:"CONFLICT" doc:"机器可读错误名"`
}

// PageResult 分页响应结构
type PageResult struct {
	List     any   `json:"list" doc:"数据列表"`
	Total    int64 `json:"total" example:"100" doc:"总记录数"`
	Page     int   `json:"page" example:"1" doc:"当前页码"`
	PageSize int   `json:"pageSize" example:"10" doc:"每页大小"`
}

// BatchReporter 批量操作结果需实现的接口
// Err 在存在失败条目时返回非 nil，其错误码即响应信封的 code
type BatchReporter interface {
	Failed() int
	Succeeded() int
	Err() error
}
