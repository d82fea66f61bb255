package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"iara/internal/store"
)

// HealthHandler reports process and store liveness.
type HealthHandler struct {
	kv store.KV
}

func NewHealthHandler(kv store.KV) *HealthHandler {
	return &HealthHandler{kv: kv}
}

func (h *HealthHandler) Check(c echo.Context) error {
	if err := h.kv.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"status": "degraded",
			"store":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"status": "ok"})
}
