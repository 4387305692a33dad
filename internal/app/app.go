// Package app is the application bootstrap and dependency injection root.
// It holds the Echo instance and the long-lived services created in main,
// and wires the stamps and catalog plugins onto the router.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/keyxmakerx/stampboard/internal/apperror"
	"github.com/keyxmakerx/stampboard/internal/config"
	"github.com/keyxmakerx/stampboard/internal/middleware"
	"github.com/keyxmakerx/stampboard/internal/plugins/catalog"
	"github.com/keyxmakerx/stampboard/internal/plugins/stamps"
)

// Services are the long-lived dependencies created in main.
type Services struct {
	// Hub relays stamps between connected channels. It must be started by
	// the caller.
	Hub *stamps.Hub

	// Catalog lists and ingests images.
	Catalog catalog.CatalogService

	// Metrics is exposed on /metrics. Nil disables the endpoint.
	Metrics prometheus.Gatherer

	// MediaDir is served under /media when the filesystem driver is active.
	MediaDir string

	// AuditEnabled exposes the ingestion log on /ingestions.
	AuditEnabled bool
}

// App holds all shared dependencies and the Echo HTTP server instance.
// Created once at startup in main.go and used to register all routes.
type App struct {
	// Config holds the loaded application configuration.
	Config *config.Config

	// Services holds the dependencies the routes call into.
	Services Services

	// Echo is the HTTP server instance.
	Echo *echo.Echo
}

// New creates a new App instance and configures the Echo server with global
// middleware and error handling.
func New(cfg *config.Config, svc Services) *App {
	e := echo.New()

	// Disable Echo's default banner and startup message -- we log our own.
	e.HideBanner = true
	e.HidePort = true

	middleware.TrustedProxies(e, cfg.TrustedProxies)

	app := &App{
		Config:   cfg,
		Services: svc,
		Echo:     e,
	}

	app.setupMiddleware()
	e.HTTPErrorHandler = app.errorHandler

	return app
}

// setupMiddleware registers global middleware on the Echo instance.
// Order matters: recovery is outermost so it catches panics from the rest.
func (a *App) setupMiddleware() {
	a.Echo.Use(middleware.Recovery())
	a.Echo.Use(middleware.RequestLogger())
	a.Echo.Use(middleware.SecurityHeaders())
	a.Echo.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: a.Config.CORSOrigins,
	}))
}

// errorHandler maps errors to plain-text responses. AppErrors carry their own
// status and client-safe message; Echo's HTTPErrors keep their status. Any
// other error becomes a generic 500. Internal causes are logged, never sent.
func (a *App) errorHandler(err error, c echo.Context) {
	// Don't double-write if response is already committed.
	if c.Response().Committed {
		return
	}

	code := apperror.SafeCode(err)
	message := apperror.SafeMessage(err)

	var appErr *apperror.AppError
	var echoErr *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		if appErr.Internal != nil {
			slog.Error("request failed",
				slog.String("type", appErr.Type),
				slog.String("message", appErr.Message),
				slog.Any("internal", appErr.Internal),
				slog.String("path", c.Request().URL.Path),
			)
		}
	case errors.As(err, &echoErr):
		code = echoErr.Code
		message = http.StatusText(code)
		if msg, ok := echoErr.Message.(string); ok && msg != "" {
			message = msg
		}
	default:
		slog.Error("unhandled error",
			slog.Any("error", err),
			slog.String("path", c.Request().URL.Path),
		)
	}

	if c.Request().Method == http.MethodHead {
		c.NoContent(code)
		return
	}
	c.String(code, message)
}

// Start begins listening for HTTP requests on the configured port.
func (a *App) Start() error {
	addr := a.Config.ListenAddr()
	slog.Info("starting Stampboard server",
		slog.String("addr", addr),
		slog.String("env", a.Config.Env),
	)
	return a.Echo.Start(addr)
}

// Shutdown stops accepting requests, drains in-flight ones, then closes every
// realtime channel.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Echo.Shutdown(ctx)
	if a.Services.Hub != nil {
		a.Services.Hub.Shutdown()
	}
	return err
}
