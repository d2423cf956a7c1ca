package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/AlfRonDon/neurareport/internal/models"
	"github.com/AlfRonDon/neurareport/internal/services"
)

// RunDiscovery executes a discovery run over the requested templates
func (h *Handler) RunDiscovery(c *fiber.Ctx) error {
	var req models.DiscoveryRunRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    services.CodeInvalidRequest,
				Message: "Invalid request body: " + err.Error(),
				Path:    c.Path(),
			},
		})
	}

	resp, err := h.discoveryService.Run(c.Context(), &req)
	if err != nil {
		return err
	}

	return c.JSON(resp)
}

// DiscoveryResults returns the full cached envelope
func (h *Handler) DiscoveryResults(c *fiber.Ctx) error {
	return c.JSON(h.discoveryService.Results())
}

// DiscoveryResult returns the cached result for one template
func (h *Handler) DiscoveryResult(c *fiber.Ctx) error {
	id := c.Params("template_id")

	res, ok := h.discoveryService.Result(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    services.CodeNoDiscoveryResult,
				Message: "No discovery result cached for template",
				Path:    c.Path(),
			},
		})
	}

	return c.JSON(res)
}

// ToggleSelection flips one batch's selection flag and returns the updated
// result. An unknown template or batch returns 404 without modifying anything.
func (h *Handler) ToggleSelection(c *fiber.Ctx) error {
	id := c.Params("template_id")

	var req models.ToggleSelectionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    services.CodeInvalidRequest,
				Message: "Invalid request body: " + err.Error(),
				Path:    c.Path(),
			},
		})
	}

	res, ok, err := h.discoveryService.Toggle(c.Context(), id, &req)
	if err != nil {
		return err
	}
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    services.CodeBatchNotFound,
				Message: "No cached result holds the addressed batch",
				Path:    c.Path(),
			},
		})
	}

	return c.JSON(res)
}

// ApplyResample updates the resample filter/config of one template's result
func (h *Handler) ApplyResample(c *fiber.Ctx) error {
	id := c.Params("template_id")

	var req models.ResampleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    services.CodeInvalidRequest,
				Message: "Invalid request body: " + err.Error(),
				Path:    c.Path(),
			},
		})
	}

	res, ok := h.discoveryService.Resample(c.Context(), id, &req)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    services.CodeNoDiscoveryResult,
				Message: "No discovery result cached for template",
				Path:    c.Path(),
			},
		})
	}

	return c.JSON(res)
}

// ClearDiscovery drops all cached discovery results
func (h *Handler) ClearDiscovery(c *fiber.Ctx) error {
	h.discoveryService.ClearCache(c.Context())
	h.logger.Info("Discovery cache cleared via API")
	return c.SendStatus(fiber.StatusNoContent)
}
