package handlers

import (
	"github.com/andesco/spa-edge/pkg/edgelib"

	"github.com/gofiber/fiber/v2"
)

func Health() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": edgelib.ServiceName,
		})
	}
}
