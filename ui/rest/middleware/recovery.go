package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/omnidesk/omnibridge/pkg/apperror"
	"github.com/omnidesk/omnibridge/pkg/utils"
	"github.com/sirupsen/logrus"
)

func Recovery() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		defer func() {
			rec := recover()
			if rec != nil {
				res := utils.ResponseData{
					Status:  500,
					Code:    "INTERNAL_SERVER_ERROR",
					Message: fmt.Sprintf("%v", rec),
				}

				logrus.Errorf("Panic recovered in middleware: %v", rec)

				if appErr, ok := rec.(*apperror.Error); ok {
					res.Status = appErr.StatusCode()
					res.Code = appErr.ErrCode()
					res.Message = appErr.Error()
				}

				_ = ctx.Status(res.Status).JSON(res)
			}
		}()

		return ctx.Next()
	}
}
