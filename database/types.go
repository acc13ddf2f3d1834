package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

/* ========================================================================
 * JSONB Type - JSON 对象列映射（公共定义）
 * ========================================================================
 * 职责: 统一定义 JSONB 类型，PostgreSQL 下为 jsonb，其他方言为文本
 * ======================================================================== */

// JSONB 自定义类型，用于 Gorm 映射 JSON 对象
type JSONB map[string]any

// Value 实现 driver.Valuer 接口
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return "{}", nil
	}
	data, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan 实现 sql.Scanner 接口
func (j *JSONB) Scan(value any) error {
	if value == nil {
		*j = make(JSONB)
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported type for JSONB scan")
	}
	if len(data) == 0 {
		*j = make(JSONB)
		return nil
	}
	return json.Unmarshal(data, j)
}

// GormDataType 通用列类型
func (JSONB) GormDataType() string {
	return "json"
}

// ToJSONB 将任意结构转换为 JSONB（经由 JSON 往返），nil 返回 nil
func ToJSONB(v any) (JSONB, error) {
	if v == nil {
		return nil, nil
	}
	if m, ok := v.(JSONB); ok {
		return m, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out JSONB
	if err := json.Unmarshal(data, &out); err != nil {
		// 非对象值（数组、标量）包一层
		var raw any
		if err2 := json.Unmarshal(data, &raw); err2 != nil {
			return nil, err
		}
		return JSONB{"value": raw}, nil
	}
	return out, nil
}
