package repository

import (
	"fmt"
	"regexp"
	"strings"
)

/* ========================================================================
 * SQL 安全校验器
 * ========================================================================
 * 职责: 防止 OrderBy 注入风险，将 API 排序参数映射为列名
 * 设计: 白名单模式 + 黑名单防御
 * ======================================================================== */

var (
	// 列名白名单正则：仅允许字母、数字、下划线、点号（表别名）
	columnPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)?$`)

	// 排序方向白名单
	orderDirections = map[string]bool{
		"ASC":  true,
		"DESC": true,
		"asc":  true,
		"desc": true,
	}

	// SQL 危险关键字黑名单
	dangerousKeywords = []string{
		"DROP", "DELETE", "UPDATE", "INSERT", "TRUNCATE", "ALTER", "CREATE",
		"GRANT", "REVOKE", "EXEC", "EXECUTE", "UNION", "INTO", "OUTFILE",
		"LOAD_FILE", "DUMPFILE", "--", "/*", "*/", ";", "SLEEP", "BENCHMARK",
	}
)

// ValidationError SQL 校验错误
type ValidationError struct {
	Field   string
	Value   string
	Reason  string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("SQL validation failed for %s: %s (value: %s, reason: %s)",
		e.Field, e.Message, e.Value, e.Reason)
}

// ValidateOrderBy 校验排序字符串
//
// 允许格式:
//   - "column ASC"
//   - "column DESC"
//   - "table.column ASC"
//   - "col1 ASC, col2 DESC"
func ValidateOrderBy(orderBy string) error {
	if strings.TrimSpace(orderBy) == "" {
		return nil
	}

	if err := checkDangerousKeywords(orderBy, "OrderBy"); err != nil {
		return err
	}

	for _, part := range strings.Split(orderBy, ",") {
		if err := validateSingleOrderBy(strings.TrimSpace(part)); err != nil {
			return err
		}
	}
	return nil
}

func validateSingleOrderBy(orderBy string) error {
	if orderBy == "" {
		return nil
	}

	fields := strings.Fields(orderBy)
	if len(fields) == 0 || len(fields) > 2 {
		return &ValidationError{
			Field:   "OrderBy",
			Value:   orderBy,
			Reason:  "invalid_format",
			Message: "must be 'column' or 'column ASC/DESC'",
		}
	}

	if !columnPattern.MatchString(fields[0]) {
		return &ValidationError{
			Field:   "OrderBy",
			Value:   orderBy,
			Reason:  "invalid_column",
			Message: fmt.Sprintf("column name contains invalid characters: %s", fields[0]),
		}
	}

	if len(fields) == 2 && !orderDirections[fields[1]] {
		return &ValidationError{
			Field:   "OrderBy",
			Value:   orderBy,
			Reason:  "invalid_direction",
			Message: fmt.Sprintf("direction must be ASC or DESC, got: %s", fields[1]),
		}
	}
	return nil
}

// ResolveSort 将 API 排序参数（如 "model,-createTime"）映射为 ORDER BY 子句
// allowed: API 字段名 -> 数据库列名；未在白名单中的字段返回错误
func ResolveSort(raw string, allowed map[string]string, fallback string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}

	parts := make([]string, 0, 2)
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		direction := "ASC"
		if strings.HasPrefix(item, "-") {
			direction = "DESC"
			item = item[1:]
		}
		column, ok := allowed[item]
		if !ok {
			return "", &ValidationError{
				Field:   "Sort",
				Value:   item,
				Reason:  "unknown_field",
				Message: "field is not sortable",
			}
		}
		parts = append(parts, column+" "+direction)
	}
	if len(parts) == 0 {
		return fallback, nil
	}

	orderBy := strings.Join(parts, ", ")
	if err := ValidateOrderBy(orderBy); err != nil {
		return "", err
	}
	return orderBy, nil
}

// checkDangerousKeywords 检查危险关键字
func checkDangerousKeywords(value, field string) error {
	upperValue := strings.ToUpper(value)
	for _, keyword := range dangerousKeywords {
		if isKeywordMatch(upperValue, keyword) {
			return &ValidationError{
				Field:   field,
				Value:   value,
				Reason:  "dangerous_keyword",
				Message: fmt.Sprintf("contains dangerous keyword: %s", keyword),
			}
		}
	}
	return nil
}

// isKeywordMatch 检查关键字是否以独立单词出现（避免误判 created_at 等合法列名）
func isKeywordMatch(text, keyword string) bool {
	if keyword == "--" || keyword == "/*" || keyword == "*/" || keyword == ";" {
		return strings.Contains(text, keyword)
	}

	for start := 0; ; {
		idx := strings.Index(text[start:], keyword)
		if idx == -1 {
			return false
		}
		idx += start
		end := idx + len(keyword)
		before := idx == 0 || !isWordChar(text[idx-1])
		after := end >= len(text) || !isWordChar(text[end])
		if before && after {
			return true
		}
		start = idx + 1
	}
}

func isWordChar(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') ||
		(c >= '0' && c <= '9') || c == '_'
}
