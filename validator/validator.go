package validator

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

/* ========================================================================
 * Validator - 请求参数验证器
 * ========================================================================
 * 职责: 校验 HTTP 请求体，输出按字段分组、可直接展示给操作员的错误消息
 * 特性:
 *   - error_msg 标签定义自定义错误消息
 *   - 嵌套结构体与结构体切片（批量请求行）递归校验
 *   - 内置型号编码规则: modeltype / productcode / classdigit / actualnumber
 * 使用示例:
 *     type CreateRequest struct {
 *         ModelType string `json:"modelType" validate:"required,modeltype" error_msg:"required:型号类型必填|modeltype:型号类型须为2-20位大写字母"`
 *     }
 *     if err := validator.Default().Validate(&req); err != nil {
 *         return validator.ToBizError(err)
 *     }
 * ======================================================================== */

// Validator 自定义验证器
type Validator struct {
	validator     *validator.Validate
	typeCache     *typeCache
	errorMsgCache map[string]map[string]string // 错误消息缓存
	mu            sync.RWMutex
}

var (
	defaultOnce      sync.Once
	defaultValidator *Validator
)

// New 创建新的验证器，并注册领域规则
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	registerDomainRules(v)
	return &Validator{
		validator:     v,
		typeCache:     newTypeCache(),
		errorMsgCache: make(map[string]map[string]string),
	}
}

// Default 返回进程级共享验证器
func Default() *Validator {
	defaultOnce.Do(func() {
		defaultValidator = New()
	})
	return defaultValidator
}

// Var 校验单个值，tag 语法同 validate 标签
func (v *Validator) Var(field any, tag string) error {
	return v.validator.Var(field, tag)
}

// Validate 验证结构体
// 返回 *ValidationError，包含按字段分组的错误消息
func (v *Validator) Validate(s any) error {
	if s == nil {
		return nil
	}

	validationErrors := &ValidationError{Errors: make(map[string][]string)}
	v.validateRecursive(reflect.ValueOf(s), "", validationErrors)

	if validationErrors.HasErrors() {
		return validationErrors
	}
	return nil
}

// validateRecursive 递归验证结构体
func (v *Validator) validateRecursive(value reflect.Value, prefix string, validationErrors *ValidationError) {
	if value.Kind() == reflect.Ptr {
		if value.IsNil() {
			return
		}
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return
	}

	fields := v.typeCache.getFieldsInfo(value.Type())

	for _, fi := range fields {
		fieldValue := value.Field(fi.index)
		fullFieldName := fi.name
		if prefix != "" {
			fullFieldName = prefix + "." + fi.name
		}

		// 先校验字段自身（切片上的 required/min/max 等）
		if fi.validateTag != "" && !fi.isStruct {
			v.validateField(fieldValue, fi, fullFieldName, validationErrors)
		}

		switch {
		case fi.isStruct:
			if fi.isPtr && fieldValue.IsNil() {
				continue
			}
			v.validateRecursive(fieldValue, fullFieldName, validationErrors)
		case fi.isStructSlice:
			for i := 0; i < fieldValue.Len(); i++ {
				v.validateRecursive(fieldValue.Index(i), fmt.Sprintf("%s[%d]", fullFieldName, i), validationErrors)
			}
		}
	}
}

func (v *Validator) validateField(fieldValue reflect.Value, fi fieldInfo, fullFieldName string, validationErrors *ValidationError) {
	err := v.validator.Var(fieldValue.Interface(), fi.validateTag)
	if err == nil {
		return
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		validationErrors.Add(fullFieldName, err.Error())
		return
	}

	for _, fieldErr := range validationErrs {
		message := v.getCachedErrorMessage(fi.errorMsgTag, fieldErr.Tag())
		if message == "" {
			message = defaultMessage(fi.jsonName, fieldErr)
		}
		validationErrors.Add(fullFieldName, message)
	}
}

// defaultMessage 没有 error_msg 时生成的兜底消息
func defaultMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min", "max", "len":
		return fmt.Sprintf("%s violates %s=%s", field, fe.Tag(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		if desc, ok := ruleDescriptions[fe.Tag()]; ok {
			return field + " " + desc
		}
		return fmt.Sprintf("%s failed on %s", field, fe.Tag())
	}
}

// getCachedErrorMessage 获取缓存的错误消息
func (v *Validator) getCachedErrorMessage(errorMsgTag, rule string) string {
	if errorMsgTag == "" {
		return ""
	}

	v.mu.RLock()
	if ruleMap, exists := v.errorMsgCache[errorMsgTag]; exists {
		v.mu.RUnlock()
		return ruleMap[rule]
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	if ruleMap, exists := v.errorMsgCache[errorMsgTag]; exists {
		return ruleMap[rule]
	}

	ruleMap := parseErrorMessageTag(errorMsgTag)
	v.errorMsgCache[errorMsgTag] = ruleMap
	return ruleMap[rule]
}

// parseErrorMessageTag 解析错误消息标签
// 格式: "required:型号类型必填|modeltype:型号类型格式错误"
func parseErrorMessageTag(errorMsgTag string) map[string]string {
	ruleMap := make(map[string]string)
	for _, ruleMessage := range strings.Split(errorMsgTag, ruleSeparator) {
		parts := strings.SplitN(ruleMessage, keyValueSep, 2)
		if len(parts) == 2 {
			ruleMap[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return ruleMap
}
