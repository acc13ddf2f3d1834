package model

import (
	"fmt"
	"strings"
)

// FormatModel 拼接完整编码
// 三层: SLU-101 (类型-分类数字+两位编号)；两层: AC-50；有扩展时追加 -扩展
func FormatModel(modelType, classificationNumber, actualNumber, extension string) string {
	var sb strings.Builder
	sb.WriteString(modelType)
	sb.WriteByte('-')
	sb.WriteString(classificationNumber)
	sb.WriteString(actualNumber)
	if extension != "" {
		sb.WriteByte('-')
		sb.WriteString(extension)
	}
	return sb.String()
}

// SlotNumber 三层结构块内编号 00..99
func SlotNumber(i int) string {
	return fmt.Sprintf("%02d", i)
}
