package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/AlfRonDon/neurareport/internal/models"
	"github.com/AlfRonDon/neurareport/internal/services"
)

// Generate submits report-generation jobs for the selected batches of the
// requested templates
func (h *Handler) Generate(c *fiber.Ctx) error {
	var req models.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    services.CodeInvalidRequest,
				Message: "Invalid request body: " + err.Error(),
				Path:    c.Path(),
			},
		})
	}

	resp, err := h.generateService.Submit(c.Context(), &req)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(resp)
}
