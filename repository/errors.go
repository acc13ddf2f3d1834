package repository

import (
	"context"
	stderrors "errors"

	"github.com/aisgo/ais-modelcode/database"
	"github.com/aisgo/ais-modelcode/errors"

	"gorm.io/gorm"
)

// translateError 将驱动/GORM 错误统一转换为业务错误
// 已经是 BizError 的错误原样返回
func translateError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.AsBizError(err); ok {
		return err
	}

	switch {
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		return errors.New(errors.ErrCodeNotFound, "record not found")
	case database.IsDuplicateKey(err):
		return errors.Wrap(errors.ErrCodeConflict, "duplicate record", err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(errors.ErrCodeTimeout, "database operation timed out", err)
	case stderrors.Is(err, context.Canceled):
		return errors.Wrap(errors.ErrCodeCanceled, "database operation canceled", err)
	default:
		return errors.Wrap(errors.ErrCodeInternal, msg, err)
	}
}
