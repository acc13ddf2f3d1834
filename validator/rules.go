package validator

import (
	stderrors "errors"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/aisgo/ais-modelcode/errors"
)

/* ========================================================================
 * Domain Rules - 型号编码格式规则
 * ======================================================================== */

var (
	modelTypePattern    = regexp.MustCompile(`^[A-Z]{2,20}$`)
	productCodePattern  = regexp.MustCompile(`^[A-Z0-9]{2,20}$`)
	classDigitPattern   = regexp.MustCompile(`^[0-9]$`)
	actualNumberPattern = regexp.MustCompile(`^[0-9]{1,6}$`)
	extensionPattern    = regexp.MustCompile(`^[A-Za-z0-9]{1,10}$`)
)

// ruleDescriptions 领域规则的兜底描述
var ruleDescriptions = map[string]string{
	"modeltype":    "must be 2-20 uppercase letters",
	"productcode":  "must be 2-20 uppercase letters or digits",
	"classdigit":   "must be a single digit 0-9",
	"actualnumber": "must be 1-6 digits",
	"extension":    "must be 1-10 letters or digits",
}

func registerDomainRules(v *validator.Validate) {
	rules := map[string]*regexp.Regexp{
		"modeltype":    modelTypePattern,
		"productcode":  productCodePattern,
		"classdigit":   classDigitPattern,
		"actualnumber": actualNumberPattern,
		"extension":    extensionPattern,
	}
	for tag, pattern := range rules {
		re := pattern
		// 注册失败只可能是 tag 为空，属于编程错误
		_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return re.MatchString(fl.Field().String())
		})
	}
}

// IsModelType 型号类型: 2-20 位大写字母
func IsModelType(s string) bool { return modelTypePattern.MatchString(s) }

// IsProductCode 产品类型编码: 2-20 位大写字母或数字
func IsProductCode(s string) bool { return productCodePattern.MatchString(s) }

// IsClassDigit 编码分类位: 单个数字
func IsClassDigit(s string) bool { return classDigitPattern.MatchString(s) }

// IsActualNumber 实际编号: 1-6 位数字
func IsActualNumber(s string) bool { return actualNumberPattern.MatchString(s) }

// IsExtension 扩展后缀: 1-10 位字母或数字
func IsExtension(s string) bool { return extensionPattern.MatchString(s) }

// ToBizError 将校验错误转换为 InvalidFormat 业务错误
// 非 ValidationError 原样返回
func ToBizError(err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	if !stderrors.As(err, &ve) {
		return err
	}
	return errors.Wrap(errors.ErrCodeInvalidFormat, ve.Summary(), err)
}
