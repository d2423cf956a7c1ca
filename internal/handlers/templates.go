package handlers

import (
	"regexp"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/AlfRonDon/neurareport/internal/models"
	"github.com/AlfRonDon/neurareport/internal/registry"
	"github.com/AlfRonDon/neurareport/internal/services"
)

var templateKinds = map[string]bool{"": true, "docx": true, "xlsx": true, "pdf-form": true}

var templateNameRegex = regexp.MustCompile(`^[^\x00-\x1f]+$`)

// CreateTemplate registers a new report template
func (h *Handler) CreateTemplate(c *fiber.Ctx) error {
	var req models.CreateTemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    services.CodeInvalidRequest,
				Message: "Invalid request body: " + err.Error(),
				Path:    c.Path(),
			},
		})
	}

	if req.Name == "" || len(req.Name) > 128 || !templateNameRegex.MatchString(req.Name) {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    services.CodeInvalidName,
				Message: "Template name must be 1-128 printable characters",
				Path:    c.Path(),
			},
		})
	}

	if !templateKinds[req.Kind] {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    services.CodeInvalidKind,
				Message: "Template kind must be one of: docx, xlsx, pdf-form",
				Path:    c.Path(),
			},
		})
	}

	tpl := &registry.Template{
		Name:      req.Name,
		Kind:      req.Kind,
		KeyTokens: req.KeyTokens,
		CreatedAt: time.Now(),
	}
	for _, f := range req.Fields {
		tpl.Fields = append(tpl.Fields, registry.FieldMapping{
			Token:  f.Token,
			Column: f.Column,
			Kind:   f.Kind,
		})
	}

	if err := h.registry.CreateTemplate(c.Context(), tpl); err != nil {
		h.logger.Error("Failed to create template", "error", err, "name", req.Name)
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INTERNAL_ERROR",
				Message: "Failed to create template",
				Path:    c.Path(),
			},
		})
	}

	h.logger.Info("Template created", "template_id", tpl.ID, "name", tpl.Name)

	return c.Status(fiber.StatusCreated).JSON(templateResponse(tpl))
}

// ListTemplates lists all registered templates
func (h *Handler) ListTemplates(c *fiber.Ctx) error {
	templates, err := h.registry.ListTemplates(c.Context())
	if err != nil {
		h.logger.Error("Failed to list templates", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INTERNAL_ERROR",
				Message: "Failed to list templates",
				Path:    c.Path(),
			},
		})
	}

	response := models.TemplateListResponse{
		Templates: make([]models.TemplateResponse, 0, len(templates)),
	}
	for _, tpl := range templates {
		response.Templates = append(response.Templates, templateResponse(tpl))
	}

	return c.JSON(response)
}

// GetTemplate returns one template by id
func (h *Handler) GetTemplate(c *fiber.Ctx) error {
	id := c.Params("template_id")

	tpl, err := h.registry.GetTemplate(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    services.CodeTemplateNotFound,
				Message: err.Error(),
				Path:    c.Path(),
			},
		})
	}

	return c.JSON(templateResponse(tpl))
}

// DeleteTemplate removes a template from the registry
func (h *Handler) DeleteTemplate(c *fiber.Ctx) error {
	id := c.Params("template_id")

	if err := h.registry.DeleteTemplate(c.Context(), id); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    services.CodeTemplateNotFound,
				Message: err.Error(),
				Path:    c.Path(),
			},
		})
	}

	h.logger.Info("Template deleted", "template_id", id)

	return c.SendStatus(fiber.StatusNoContent)
}

func templateResponse(tpl *registry.Template) models.TemplateResponse {
	resp := models.TemplateResponse{
		ID:        tpl.ID,
		Name:      tpl.Name,
		Kind:      tpl.Kind,
		KeyTokens: tpl.KeyTokens,
		CreatedAt: tpl.CreatedAt.Format(time.RFC3339),
	}
	for _, f := range tpl.Fields {
		resp.Fields = append(resp.Fields, models.FieldMappingRequest{
			Token:  f.Token,
			Column: f.Column,
			Kind:   f.Kind,
		})
	}
	return resp
}
