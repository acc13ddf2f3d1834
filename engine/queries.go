package engine

import (
	"context"
	"strings"

	"github.com/aisgo/ais-modelcode/errors"
	"github.com/aisgo/ais-modelcode/model"
	"github.com/aisgo/ais-modelcode/repository"
)

// sortableColumns API 排序字段 -> 列名
var sortableColumns = map[string]string{
	"model":        "model",
	"modelType":    "model_type",
	"actualNumber": "actual_number",
	"state":        "state",
	"createTime":   "create_time",
	"updateTime":   "update_time",
}

const defaultCodeOrder = "model_type ASC, code_classification_number ASC, actual_number ASC, extension ASC"

// CodeUsageFilter 编码查询条件
type CodeUsageFilter struct {
	ModelType            string
	CodeClassificationID int64
	State                model.State
	OccupancyType        model.OccupancyType
	Keyword              string
	IncludeDeleted       bool
	Sort                 string
	Page                 int
	PageSize             int
}

// CodeStats 型号编码统计
type CodeStats struct {
	ModelType   string           `json:"modelType,omitempty"`
	Total       int64            `json:"total"`
	Planned     int64            `json:"planned"`
	Allocated   int64            `json:"allocated"`
	Deleted     int64            `json:"deleted"`
	ByOccupancy map[string]int64 `json:"byOccupancy"`
}

// CodeQueries 编码只读查询
type CodeQueries struct {
	repos *Repos
}

// NewCodeQueries 创建查询服务
func NewCodeQueries(repos *Repos) *CodeQueries {
	return &CodeQueries{repos: repos}
}

// List 分页查询；keyword 匹配编码、品名、描述
func (q *CodeQueries) List(ctx context.Context, f CodeUsageFilter) (*repository.PageResult[model.CodeUsage], error) {
	orderBy, err := repository.ResolveSort(f.Sort, sortableColumns, defaultCodeOrder)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidArgument, err.Error(), err)
	}
	if f.State != "" && !f.State.Valid() {
		return nil, errors.Newf(errors.ErrCodeInvalidArgument, "unknown state %q", f.State)
	}

	conds := make([]string, 0, 5)
	args := make([]any, 0, 7)
	if f.ModelType != "" {
		conds = append(conds, "model_type = ?")
		args = append(args, f.ModelType)
	}
	if f.CodeClassificationID != 0 {
		conds = append(conds, "code_classification_id = ?")
		args = append(args, f.CodeClassificationID)
	}
	if f.State != "" {
		conds = append(conds, "state = ?")
		args = append(args, f.State)
	}
	if f.OccupancyType != "" {
		conds = append(conds, "occupancy_type = ?")
		args = append(args, f.OccupancyType)
	}
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		like := "%" + kw + "%"
		conds = append(conds, "(model LIKE ? OR product_name LIKE ? OR description LIKE ?)")
		args = append(args, like, like, like)
	}

	opts := []repository.Option{repository.WithOrderBy(orderBy)}
	if f.IncludeDeleted || f.State == model.StateDeleted {
		opts = append(opts, repository.WithUnscoped())
	}
	return q.repos.Codes.FindPageWithOpts(ctx, f.Page, f.PageSize, strings.Join(conds, " AND "), opts, args...)
}

// Get 按 ID 查询，包含已删除记录
func (q *CodeQueries) Get(ctx context.Context, id int64) (*model.CodeUsage, error) {
	return q.repos.Codes.FindByID(ctx, id, repository.WithUnscoped())
}

// ByClassification 编码分类下的全部活跃编码
func (q *CodeQueries) ByClassification(ctx context.Context, codeClassificationID int64) ([]*model.CodeUsage, error) {
	if _, err := q.repos.CodeClasses.FindByID(ctx, codeClassificationID); err != nil {
		return nil, err
	}
	return q.repos.Codes.FindByQueryWithOpts(ctx, "code_classification_id = ?",
		[]repository.Option{repository.WithOrderBy("actual_number ASC, extension ASC")}, codeClassificationID)
}

// ByModelType 型号类型下的全部活跃编码
func (q *CodeQueries) ByModelType(ctx context.Context, modelType string) ([]*model.CodeUsage, error) {
	return q.repos.Codes.FindByQueryWithOpts(ctx, "model_type = ?",
		[]repository.Option{repository.WithOrderBy(defaultCodeOrder)}, modelType)
}

// ByModelCode 按完整编码查询活跃记录
func (q *CodeQueries) ByModelCode(ctx context.Context, code string) (*model.CodeUsage, error) {
	row, err := q.repos.Codes.FindOne(ctx, "model = ?", strings.TrimSpace(code))
	if errors.IsNotFound(err) {
		return nil, errors.Newf(errors.ErrCodeNotFound, "code %s not found", code)
	}
	return row, err
}

// Stats 按状态与占用类型统计，modelType 为空时统计全部
func (q *CodeQueries) Stats(ctx context.Context, modelType string) (*CodeStats, error) {
	query, args := "", []any(nil)
	if modelType != "" {
		query, args = "model_type = ?", []any{modelType}
	}

	byState, err := q.repos.Codes.CountByGroup(ctx, "state", query, args...)
	if err != nil {
		return nil, err
	}
	byOccupancy, err := q.repos.Codes.CountByGroup(ctx, "occupancy_type",
		joinConds(query, "state = ?"), append(args, model.StateAllocated)...)
	if err != nil {
		return nil, err
	}
	delete(byOccupancy, "")

	deleted, err := q.repos.Codes.CountWithOpts(ctx, joinConds(query, "deleted <> 0"),
		[]repository.Option{repository.WithUnscoped()}, args...)
	if err != nil {
		return nil, err
	}

	stats := &CodeStats{
		ModelType:   modelType,
		Planned:     byState[string(model.StatePlanned)],
		Allocated:   byState[string(model.StateAllocated)],
		Deleted:     deleted,
		ByOccupancy: byOccupancy,
	}
	stats.Total = stats.Planned + stats.Allocated + stats.Deleted
	return stats, nil
}

func joinConds(a, b string) string {
	if a == "" {
		return b
	}
	return a + " AND " + b
}
