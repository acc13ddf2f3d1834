package repository

import (
	"context"
	"regexp"
	"strings"

	"github.com/aisgo/ais-modelcode/errors"
)

/* ========================================================================
 * Aggregate Repository Implementation - 聚合查询实现
 * ========================================================================
 * 职责: 统计接口使用的分组计数
 * 安全: 对列名进行白名单验证，防止 SQL 注入
 * ======================================================================== */

// columnRegex 列名正则表达式（只允许字母、数字、下划线）
var columnRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// validateColumn 验证列名是否安全
func validateColumn(column string) error {
	if column == "" {
		return errors.New(errors.ErrCodeInvalidArgument, "column cannot be empty")
	}
	if strings.Contains(column, ".") {
		return errors.New(errors.ErrCodeInvalidArgument, "column must not contain table qualifier")
	}
	if !columnRegex.MatchString(column) {
		return errors.New(errors.ErrCodeInvalidArgument, "invalid column name: "+column)
	}
	return nil
}

// CountByGroup 分组统计
// 用于类似 GROUP BY COUNT(*) 的查询
func (r *RepositoryImpl[T]) CountByGroup(ctx context.Context, groupColumn, query string, args ...any) (map[string]int64, error) {
	if err := validateColumn(groupColumn); err != nil {
		return nil, err
	}

	type groupCount struct {
		Group string `gorm:"column:group_column"`
		Count int64  `gorm:"column:cnt"`
	}

	db := r.withContext(ctx).Model(r.newModelPtr())
	if query != "" {
		db = db.Where(query, args...)
	}

	var results []groupCount
	if err := db.Select(groupColumn + " AS group_column, COUNT(*) AS cnt").
		Group(groupColumn).
		Scan(&results).Error; err != nil {
		return nil, translateError(err, "failed to count by group")
	}

	counts := make(map[string]int64, len(results))
	for _, res := range results {
		counts[res.Group] = res.Count
	}
	return counts, nil
}
