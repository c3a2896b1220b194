package rest

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/omnidesk/omnibridge/pkg/apperror"
	"github.com/omnidesk/omnibridge/pkg/utils"
)

func responseOK(c *fiber.Ctx, message string, results interface{}) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: message,
		Results: results,
	})
}

// responseError maps apperror codes onto HTTP statuses; anything else is a 500.
func responseError(c *fiber.Ctx, err error) error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return c.Status(appErr.StatusCode()).JSON(utils.ResponseData{
			Status:  appErr.StatusCode(),
			Code:    appErr.ErrCode(),
			Message: appErr.Error(),
		})
	}
	return c.Status(500).JSON(utils.ResponseData{
		Status:  500,
		Code:    "INTERNAL_SERVER_ERROR",
		Message: err.Error(),
	})
}

func responseBadRequest(c *fiber.Ctx, message string) error {
	return c.Status(400).JSON(utils.ResponseData{
		Status:  400,
		Code:    apperror.CodeValidation,
		Message: message,
	})
}
