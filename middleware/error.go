package middleware

import (
	stderrors "errors"

	"github.com/aisgo/ais-modelcode/errors"
	"github.com/aisgo/ais-modelcode/logger"
	"github.com/aisgo/ais-modelcode/response"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// NewErrorHandler returns a Fiber ErrorHandler with unified logging and response formatting.
func NewErrorHandler(log *logger.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		if err == nil {
			return nil
		}

		// fiber 路由层错误（404/405/413 等）保留原状态码
		var fe *fiber.Error
		if stderrors.As(err, &fe) {
			return c.Status(fe.Code).JSON(response.Result{
				Success: false,
				Data:    &struct{}{},
				Message: fe.Message,
			})
		}

		if log != nil {
			if _, ok := errors.AsBizError(err); !ok {
				log.WithContext(c.Context()).Error("unhandled error",
					zap.Error(err),
					zap.String("path", c.Path()),
				)
			}
		}
		return response.Error(c, err)
	}
}
