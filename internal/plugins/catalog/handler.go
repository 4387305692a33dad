package catalog

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/stampboard/internal/apperror"
)

const (
	defaultIngestionLimit = 50
	maxIngestionLimit     = 500
)

// Handler handles HTTP requests for catalog operations.
type Handler struct {
	service CatalogService
}

// NewHandler creates a new catalog handler.
func NewHandler(service CatalogService) *Handler {
	return &Handler{service: service}
}

// ListImages returns the catalog for an optional category
// (GET /lgtm-image-urls?category=).
func (h *Handler) ListImages(c echo.Context) error {
	resources, err := h.service.List(c.Request().Context(), c.QueryParam("category"))
	if err != nil {
		return apperror.NewRemoteStore(err)
	}
	return c.JSON(http.StatusOK, resources)
}

// Upload ingests an image by URL (POST /upload). The response is always 200
// with a bare true or false.
func (h *Handler) Upload(c echo.Context) error {
	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		slog.Warn("malformed upload request",
			slog.String("content_type", c.Request().Header.Get(echo.HeaderContentType)),
			slog.Any("error", err),
		)
		return c.JSON(http.StatusOK, false)
	}
	return c.JSON(http.StatusOK, h.service.Ingest(c.Request().Context(), req))
}

// Ingestions lists recent ingestion attempts (GET /ingestions?limit=).
func (h *Handler) Ingestions(c echo.Context) error {
	limit := defaultIngestionLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return apperror.NewBadRequest("limit must be a positive integer")
		}
		limit = min(n, maxIngestionLimit)
	}

	records, err := h.service.RecentIngestions(c.Request().Context(), limit)
	if err != nil {
		return apperror.NewInternal(err)
	}
	return c.JSON(http.StatusOK, records)
}
