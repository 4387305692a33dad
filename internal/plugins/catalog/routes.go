package catalog

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// maxUploadBody bounds the POST /upload request body. The body only carries
// a URL and a category.
const maxUploadBody = 64 << 10

// RegisterRoutes sets up the catalog routes. The ingestion log is only
// exposed when an audit database is configured.
func RegisterRoutes(e *echo.Echo, h *Handler, auditEnabled bool) {
	e.GET("/lgtm-image-urls", h.ListImages)
	e.POST("/upload", h.Upload, bodyLimitMiddleware(maxUploadBody))

	if auditEnabled {
		e.GET("/ingestions", h.Ingestions)
	}
}

// bodyLimitMiddleware caps how much of the request body handlers can read.
// Oversized bodies fail to bind, which /upload reports as false.
func bodyLimitMiddleware(maxBytes int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, maxBytes)
			return next(c)
		}
	}
}
