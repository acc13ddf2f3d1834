package validator

import (
	"reflect"
	"strings"
	"sync"
)

/* ========================================================================
 * Type Cache - 类型信息缓存
 * ======================================================================== */

// fieldInfo 字段信息
type fieldInfo struct {
	index         int    // 字段下标
	name          string // 字段名
	jsonName      string // json 名，用于兜底消息
	validateTag   string // validate 标签值
	errorMsgTag   string // error_msg 标签值
	isStruct      bool   // 是否为结构体（含指针）
	isPtr         bool   // 是否为指针类型
	isStructSlice bool   // 是否为结构体切片
}

// typeCache 类型缓存
type typeCache struct {
	mu    sync.RWMutex
	cache map[reflect.Type][]fieldInfo
}

func newTypeCache() *typeCache {
	return &typeCache{
		cache: make(map[reflect.Type][]fieldInfo),
	}
}

// getFieldsInfo 获取类型的字段信息（带缓存）
func (tc *typeCache) getFieldsInfo(t reflect.Type) []fieldInfo {
	tc.mu.RLock()
	info, exists := tc.cache[t]
	tc.mu.RUnlock()
	if exists {
		return info
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()

	// 双重检查
	if info, exists := tc.cache[t]; exists {
		return info
	}

	fields := make([]fieldInfo, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			// 跳过未导出字段：反射读取 Interface() 会 panic
			continue
		}
		fieldType := field.Type
		isPtr := fieldType.Kind() == reflect.Ptr
		if isPtr {
			fieldType = fieldType.Elem()
		}

		isStructSlice := false
		if fieldType.Kind() == reflect.Slice {
			elem := fieldType.Elem()
			if elem.Kind() == reflect.Ptr {
				elem = elem.Elem()
			}
			isStructSlice = elem.Kind() == reflect.Struct && !isOpaqueStruct(elem)
		}

		fields = append(fields, fieldInfo{
			index:         i,
			name:          field.Name,
			jsonName:      jsonName(field),
			validateTag:   field.Tag.Get("validate"),
			errorMsgTag:   field.Tag.Get(tagCustom),
			isStruct:      fieldType.Kind() == reflect.Struct && !isOpaqueStruct(fieldType),
			isPtr:         isPtr,
			isStructSlice: isStructSlice,
		})
	}

	tc.cache[t] = fields
	return fields
}

// isOpaqueStruct 没有导出字段的结构体（如 time.Time）按标量处理
func isOpaqueStruct(t reflect.Type) bool {
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).PkgPath == "" {
			return false
		}
	}
	return true
}

func jsonName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" || tag == "-" {
		return field.Name
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name
	}
	return field.Name
}
