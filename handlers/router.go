package handlers

import (
	"github.com/andesco/spa-edge/pkg/edgelib"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

type Options struct {
	Prefork bool
	// Interactive shows fiber's startup banner and colors the request log.
	Interactive bool
}

// New builds the edge server: the health probe when configured, then the
// router sending the api prefix to the proxy relay and everything else to the
// static resolver. The handlers serve a private copy of cfg.
func New(cfg *edgelib.Config, opts Options) *fiber.App {
	cfg = cfg.Clone()

	app := fiber.New(fiber.Config{
		AppName:                      edgelib.ServiceName,
		Prefork:                      opts.Prefork,
		DisableStartupMessage:        !opts.Interactive,
		StreamRequestBody:            true,
		DisablePreParseMultipartForm: true,
		DisableDefaultContentType:    true,
	})

	app.Use(recover.New())
	if cfg.LogRequests {
		app.Use(logger.New(logger.Config{
			Format:        "${time} ${method} ${url} ${status} ${latency}\n",
			DisableColors: !opts.Interactive,
		}))
	}

	if cfg.HealthPath != "" {
		app.Get(cfg.HealthPath, Health())
	}

	app.Use(Router(cfg))
	return app
}

// Router dispatches on the raw request path before any filesystem access.
func Router(cfg *edgelib.Config) fiber.Handler {
	relay := ProxyRelay(cfg)
	static := StaticResolver(cfg)

	return func(c *fiber.Ctx) error {
		if edgelib.Route(cfg.APIPrefix, c.OriginalURL()) == edgelib.TargetProxy {
			return relay(c)
		}
		return static(c)
	}
}
