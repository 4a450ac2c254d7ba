package handlers

import (
	"log"
	"path/filepath"

	"github.com/andesco/spa-edge/pkg/edgelib"

	"github.com/gofiber/fiber/v2"
)

// StaticResolver is a fiber handler serving files from the static root, with
// the entry document as fallback for every path that is not a file.
func StaticResolver(cfg *edgelib.Config) fiber.Handler {
	headers := cfg.HeaderSet()

	return func(c *fiber.Ctx) error {
		file := cfg.Resolve(c.OriginalURL())

		content, err := edgelib.ReadAsset(file)
		if err != nil {
			if edgelib.StatusOf(err) == fiber.StatusNotFound {
				c.Set(fiber.HeaderContentType, fiber.MIMETextHTML)
				return c.Status(fiber.StatusNotFound).SendString("<h1>404 Not Found</h1>")
			}
			log.Printf("ERROR: %v", err)
			c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
			return c.Status(fiber.StatusInternalServerError).SendString("Server Error: " + edgelib.ErrorCode(err))
		}

		c.Set(fiber.HeaderContentType, cfg.ContentType(filepath.Ext(file)))
		for _, h := range headers {
			c.Set(h.Name, h.Value)
		}
		return c.Status(fiber.StatusOK).Send(content)
	}
}
