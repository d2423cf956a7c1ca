package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/AlfRonDon/neurareport/internal/models"
	"github.com/AlfRonDon/neurareport/internal/registry"
	"github.com/AlfRonDon/neurareport/internal/services"
)

// CreateConnection registers a new database connection
func (h *Handler) CreateConnection(c *fiber.Ctx) error {
	var req models.CreateConnectionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    services.CodeInvalidRequest,
				Message: "Invalid request body: " + err.Error(),
				Path:    c.Path(),
			},
		})
	}

	if req.Name == "" || len(req.Name) > 128 {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    services.CodeInvalidName,
				Message: "Connection name must be 1-128 characters",
				Path:    c.Path(),
			},
		})
	}

	conn := &registry.Connection{
		Name:      req.Name,
		Driver:    req.Driver,
		DSN:       req.DSN,
		CreatedAt: time.Now(),
	}

	if err := h.registry.CreateConnection(c.Context(), conn); err != nil {
		h.logger.Error("Failed to create connection", "error", err, "name", req.Name)
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INTERNAL_ERROR",
				Message: "Failed to create connection",
				Path:    c.Path(),
			},
		})
	}

	h.logger.Info("Connection created", "connection_id", conn.ID, "name", conn.Name)

	return c.Status(fiber.StatusCreated).JSON(connectionResponse(conn))
}

// ListConnections lists registered connections. DSNs are never returned.
func (h *Handler) ListConnections(c *fiber.Ctx) error {
	connections, err := h.registry.ListConnections(c.Context())
	if err != nil {
		h.logger.Error("Failed to list connections", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INTERNAL_ERROR",
				Message: "Failed to list connections",
				Path:    c.Path(),
			},
		})
	}

	response := models.ConnectionListResponse{
		Connections: make([]models.ConnectionResponse, 0, len(connections)),
	}
	for _, conn := range connections {
		response.Connections = append(response.Connections, connectionResponse(conn))
	}

	return c.JSON(response)
}

// DeleteConnection removes a connection from the registry
func (h *Handler) DeleteConnection(c *fiber.Ctx) error {
	id := c.Params("connection_id")

	if err := h.registry.DeleteConnection(c.Context(), id); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    services.CodeConnectionNotFound,
				Message: err.Error(),
				Path:    c.Path(),
			},
		})
	}

	h.logger.Info("Connection deleted", "connection_id", id)

	return c.SendStatus(fiber.StatusNoContent)
}

func connectionResponse(conn *registry.Connection) models.ConnectionResponse {
	return models.ConnectionResponse{
		ID:        conn.ID,
		Name:      conn.Name,
		Driver:    conn.Driver,
		CreatedAt: conn.CreatedAt.Format(time.RFC3339),
	}
}
