package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/keyxmakerx/stampboard/internal/apperror"
	"github.com/keyxmakerx/stampboard/internal/config"
	"github.com/keyxmakerx/stampboard/internal/metrics"
	"github.com/keyxmakerx/stampboard/internal/plugins/catalog"
	"github.com/keyxmakerx/stampboard/internal/plugins/stamps"
)

// --- Mock CatalogService ---

type mockCatalog struct {
	listFn func(ctx context.Context, category string) ([]catalog.MediaResource, error)
}

func (m *mockCatalog) List(ctx context.Context, category string) ([]catalog.MediaResource, error) {
	if m.listFn != nil {
		return m.listFn(ctx, category)
	}
	return []catalog.MediaResource{}, nil
}

func (m *mockCatalog) Ingest(context.Context, catalog.IngestRequest) bool { return true }

func (m *mockCatalog) RecentIngestions(context.Context, int) ([]catalog.IngestionRecord, error) {
	return []catalog.IngestionRecord{}, nil
}

type testEnv struct {
	app       *App
	hub       *stamps.Hub
	staticDir string
	mediaDir  string
}

func newTestApp(t *testing.T, cat catalog.CatalogService) *testEnv {
	t.Helper()

	staticDir := t.TempDir()
	mediaDir := t.TempDir()
	cfg := &config.Config{
		Env:         "development",
		Port:        4000,
		TimeZone:    "Asia/Tokyo",
		StaticDir:   staticDir,
		CORSOrigins: []string{"*"},
	}

	hub := stamps.NewHub()
	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("starting hub: %v", err)
	}
	t.Cleanup(hub.Shutdown)

	reg := prometheus.NewRegistry()
	if _, err := metrics.New(reg); err != nil {
		t.Fatalf("registering metrics: %v", err)
	}

	a := New(cfg, Services{
		Hub:      hub,
		Catalog:  cat,
		Metrics:  reg,
		MediaDir: mediaDir,
	})
	a.RegisterRoutes()
	return &testEnv{app: a, hub: hub, staticDir: staticDir, mediaDir: mediaDir}
}

func (env *testEnv) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.app.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestTime(t *testing.T) {
	env := newTestApp(t, &mockCatalog{})

	rec := env.get("/time")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !regexp.MustCompile(`^\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}$`).MatchString(body) {
		t.Fatalf("unexpected format %q", body)
	}

	tokyo, _ := time.LoadLocation("Asia/Tokyo")
	got, err := time.ParseInLocation(timeLayout, body, tokyo)
	if err != nil {
		t.Fatalf("parsing %q: %v", body, err)
	}
	if d := time.Since(got); d < -time.Minute || d > time.Minute {
		t.Errorf("expected the current Tokyo time, got %s (off by %s)", body, d)
	}
}

func TestHealthz_ReportsChannels(t *testing.T) {
	env := newTestApp(t, &mockCatalog{})

	if got := strings.TrimSpace(env.get("/healthz").Body.String()); got != `{"channels":0,"status":"ok"}` {
		t.Errorf("unexpected body %s", got)
	}

	env.hub.Register(stamps.NewChannel("127.0.0.1"))
	if got := strings.TrimSpace(env.get("/healthz").Body.String()); got != `{"channels":1,"status":"ok"}` {
		t.Errorf("unexpected body %s", got)
	}
}

func TestListImages_RemoteStoreErrorIsOpaque(t *testing.T) {
	cat := &mockCatalog{listFn: func(context.Context, string) ([]catalog.MediaResource, error) {
		return nil, errors.New("InvalidAccessKeyId: the key AKIA... does not exist")
	}}
	env := newTestApp(t, cat)

	rec := env.get("/lgtm-image-urls?category=dogs")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if rec.Body.String() != "error" {
		t.Errorf("expected body error, got %q", rec.Body.String())
	}
}

func TestListImages_OK(t *testing.T) {
	cat := &mockCatalog{listFn: func(_ context.Context, category string) ([]catalog.MediaResource, error) {
		return []catalog.MediaResource{{PublicID: "LGTM/" + category + "/a"}}, nil
	}}
	env := newTestApp(t, cat)

	rec := env.get("/lgtm-image-urls?category=cats")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"public_id":"LGTM/cats/a"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestUpload_Route(t *testing.T) {
	env := newTestApp(t, &mockCatalog{})

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(`{"url":"https://example.com/a.png","category":"cats"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.app.Echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "true" {
		t.Errorf("expected 200 true, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestStaticAndMedia(t *testing.T) {
	env := newTestApp(t, &mockCatalog{})

	if err := os.WriteFile(filepath.Join(env.staticDir, "board.js"), []byte("console.log('lgtm')"), 0644); err != nil {
		t.Fatal(err)
	}
	mediaFile := filepath.Join(env.mediaDir, "upload", "LGTM", "cats", "a.png")
	if err := os.MkdirAll(filepath.Dir(mediaFile), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(mediaFile, []byte("png"), 0644); err != nil {
		t.Fatal(err)
	}

	if rec := env.get("/board.js"); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "lgtm") {
		t.Errorf("expected static file, got %d %s", rec.Code, rec.Body.String())
	}
	if rec := env.get("/media/upload/LGTM/cats/a.png"); rec.Code != http.StatusOK || rec.Body.String() != "png" {
		t.Errorf("expected media file, got %d %s", rec.Code, rec.Body.String())
	}
	if rec := env.get("/missing.js"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestApp(t, &mockCatalog{})

	rec := env.get("/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "stampboard_") {
		t.Errorf("expected stampboard metrics, got %s", rec.Body.String())
	}
}

func TestErrorHandler(t *testing.T) {
	env := newTestApp(t, &mockCatalog{})
	e := env.app.Echo
	e.GET("/internal", func(c echo.Context) error {
		return apperror.NewInternal(errors.New("db password is hunter2"))
	})
	e.GET("/plain", func(c echo.Context) error {
		return errors.New("something broke")
	})
	e.GET("/wrapped", func(c echo.Context) error {
		return fmt.Errorf("handling limit: %w", apperror.NewBadRequest("limit must be a positive integer"))
	})

	rec := env.get("/internal")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "hunter2") {
		t.Error("internal error leaked to the client")
	}

	rec = env.get("/plain")
	if rec.Code != http.StatusInternalServerError || rec.Body.String() != "Internal Server Error" {
		t.Errorf("expected generic 500, got %d %q", rec.Code, rec.Body.String())
	}

	rec = env.get("/wrapped")
	if rec.Code != http.StatusBadRequest || rec.Body.String() != "limit must be a positive integer" {
		t.Errorf("expected the wrapped AppError, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestShutdownClosesHub(t *testing.T) {
	env := newTestApp(t, &mockCatalog{})
	ch := stamps.NewChannel("127.0.0.1")
	env.hub.Register(ch)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	env.app.Shutdown(ctx)

	select {
	case _, ok := <-ch.Outbound():
		if ok {
			t.Error("expected the channel to be closed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel was not closed on shutdown")
	}
}
