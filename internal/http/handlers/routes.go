package handlers

import (
	"github.com/labstack/echo/v4"

	"iara/internal/app"
	"iara/internal/http/middleware"
)

// SetupRoutes registers the webhook and health endpoints.
func SetupRoutes(e *echo.Echo, services *app.Services) {
	health := NewHealthHandler(services.KV)
	e.GET("/health", health.Check)

	msg := NewMessageHandler(services.Router)
	gateway := e.Group("/webhook/zapi")
	gateway.POST("/receive", msg.Receive)
	gateway.POST("/status", msg.Status)

	cp := NewCartpandaHandler(services.Contexts)
	checkout := e.Group("/webhook/cartpanda",
		middleware.VerifySignature(services.Config.CartPandaWebhookSecret))
	checkout.POST("/order", cp.Order)
	checkout.POST("/carts", cp.Carts)
	checkout.POST("/support", cp.Support)
}
