package app

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/stampboard/internal/metrics"
	"github.com/keyxmakerx/stampboard/internal/plugins/catalog"
	"github.com/keyxmakerx/stampboard/internal/plugins/stamps"
)

// timeLayout renders the server clock as YYYY/MM/DD HH:mm:ss.
const timeLayout = "2006/01/02 15:04:05"

// RegisterRoutes sets up all application routes. It registers the public
// utility routes directly and delegates to each plugin's route registration.
func (a *App) RegisterRoutes() {
	e := a.Echo
	loc := a.Config.Location()

	e.GET("/time", func(c echo.Context) error {
		return c.String(http.StatusOK, time.Now().In(loc).Format(timeLayout))
	})

	// Health check for container orchestrators.
	e.GET("/healthz", func(c echo.Context) error {
		channels := 0
		if a.Services.Hub != nil {
			channels = len(a.Services.Hub.Channels())
		}
		return c.JSON(http.StatusOK, map[string]any{"status": "ok", "channels": channels})
	})

	if a.Services.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler(a.Services.Metrics)))
	}

	// --- Plugin Routes ---

	if a.Services.Hub != nil {
		stamps.RegisterRoutes(e, stamps.NewHandler(a.Services.Hub, a.Config.CORSOrigins))
	}
	if a.Services.Catalog != nil {
		catalog.RegisterRoutes(e, catalog.NewHandler(a.Services.Catalog), a.Services.AuditEnabled)
	}

	// --- Static Files ---

	if a.Services.MediaDir != "" {
		e.Static("/media", a.Services.MediaDir)
	}
	if a.Config.StaticDir != "" {
		e.Static("/", a.Config.StaticDir)
	}
}
