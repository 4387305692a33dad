package stamps

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up the realtime channel endpoint.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.GET("/ws", h.Connect)
}
