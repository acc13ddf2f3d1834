package validator

import (
	"slices"
	"strings"
)

// 字段级自定义消息: `error_msg:"required:型号类型必填|modeltype:型号类型须为 2-20 位大写字母"`
const (
	tagCustom     = "error_msg"
	ruleSeparator = "|"
	keyValueSep   = ":"
)

// ValidationError 按字段分组的校验错误
// 批量请求行的字段名形如 Rows[3].ActualNumber
type ValidationError struct {
	Errors map[string][]string
}

func (v ValidationError) Error() string {
	var sb strings.Builder
	for _, field := range v.fields() {
		sb.WriteString(field)
		sb.WriteString(": ")
		sb.WriteString(strings.Join(v.Errors[field], ", "))
		sb.WriteString("; ")
	}
	return sb.String()
}

// Summary 只含消息、不含字段名的单行摘要，用于接口返回
func (v ValidationError) Summary() string {
	parts := make([]string, 0, len(v.Errors))
	for _, field := range v.fields() {
		parts = append(parts, strings.Join(v.Errors[field], ", "))
	}
	return strings.Join(parts, "; ")
}

func (v ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

func (v *ValidationError) Add(field, message string) {
	if v.Errors == nil {
		v.Errors = make(map[string][]string)
	}
	v.Errors[field] = append(v.Errors[field], message)
}

// fields 字段名排序，保证输出稳定
func (v ValidationError) fields() []string {
	fields := make([]string, 0, len(v.Errors))
	for field := range v.Errors {
		fields = append(fields, field)
	}
	slices.Sort(fields)
	return fields
}
