package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// CacheStats reports discovery-cache statistics for the admin surface
func (h *Handler) CacheStats(c *fiber.Ctx) error {
	return c.JSON(h.store.Stats())
}
