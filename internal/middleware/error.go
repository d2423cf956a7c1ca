package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/AlfRonDon/neurareport/internal/logging"
	"github.com/AlfRonDon/neurareport/internal/models"
	"github.com/AlfRonDon/neurareport/internal/services"
)

// ErrorHandler returns a custom error handler middleware. ServiceErrors map
// to HTTP statuses by code and carry their details through; everything else
// collapses to the fiber error or a plain 500.
func ErrorHandler(logger *logging.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var svcErr *services.ServiceError
		if errors.As(err, &svcErr) {
			status := statusForCode(svcErr.Code)

			logger.Warn("Request failed",
				"path", c.Path(),
				"method", c.Method(),
				"status", status,
				"code", svcErr.Code,
				"error", err,
			)

			return c.Status(status).JSON(models.ErrorResponse{
				Error: models.ErrorDetail{
					Code:    svcErr.Code,
					Message: svcErr.Message,
					Path:    c.Path(),
					Details: svcErr.Details,
				},
			})
		}

		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
			message = e.Message
		}

		logger.Error("Request error",
			"path", c.Path(),
			"method", c.Method(),
			"status", code,
			"error", err,
		)

		return c.Status(code).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "ERROR",
				Message: message,
			},
		})
	}
}

func statusForCode(code string) int {
	switch code {
	case services.CodeInvalidRequest, services.CodeInvalidName, services.CodeInvalidKind:
		return fiber.StatusBadRequest
	case services.CodeTemplateNotFound, services.CodeConnectionNotFound,
		services.CodeBatchNotFound, services.CodeNoDiscoveryResult:
		return fiber.StatusNotFound
	case services.CodeNoBatchesSelected:
		return fiber.StatusConflict
	case services.CodeJobSubmitFailed:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
