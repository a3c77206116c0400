package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AppName string
	Costing CostingService
	Metrics http.Handler // nil = sin /metrics
}

// Router registra las rutas de administración.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": deps.AppName})
	})
	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics))
	}

	costos := app.Group("/api/costos/:tenant")
	h := NewCostingHandler(deps.Costing)
	costos.Post("/runs", h.Run)
	costos.Get("/valuation", h.Valuation)
}
