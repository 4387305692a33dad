package config

import (
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 4000 {
		t.Errorf("expected port 4000, got %d", cfg.Port)
	}
	if cfg.Media.Root != "LGTM" {
		t.Errorf("expected media root LGTM, got %s", cfg.Media.Root)
	}
	if cfg.Media.Driver != MediaDriverFS {
		t.Errorf("expected fs driver, got %s", cfg.Media.Driver)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Errorf("expected CORS origins [*], got %v", cfg.CORSOrigins)
	}
	if cfg.Redis.Enabled() {
		t.Error("expected redis backplane to be disabled by default")
	}
	if cfg.Database.Enabled() {
		t.Error("expected database to be disabled by default")
	}
	if cfg.Location().String() != "Asia/Tokyo" {
		t.Errorf("expected Asia/Tokyo, got %s", cfg.Location())
	}
}

func TestLoad_S3RequiresCredentials(t *testing.T) {
	t.Setenv("MEDIA_DRIVER", "s3")
	t.Setenv("S3_BUCKET", "stamps")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for incomplete s3 config")
	}
	for _, key := range []string{"S3_REGION", "S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("expected error to mention %s, got %v", key, err)
		}
	}
}

func TestLoad_S3Complete(t *testing.T) {
	t.Setenv("MEDIA_DRIVER", "S3")
	t.Setenv("S3_BUCKET", "stamps")
	t.Setenv("S3_REGION", "ap-northeast-1")
	t.Setenv("S3_ACCESS_KEY_ID", "key")
	t.Setenv("S3_SECRET_ACCESS_KEY", "secret")
	t.Setenv("S3_PUBLIC_URL", "https://cdn.example.com/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Media.Driver != MediaDriverS3 {
		t.Errorf("expected s3 driver, got %s", cfg.Media.Driver)
	}
	if cfg.Media.S3.PublicURL != "https://cdn.example.com" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.Media.S3.PublicURL)
	}
}

func TestLoad_UnknownDriver(t *testing.T) {
	t.Setenv("MEDIA_DRIVER", "cloud")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown media driver")
	}
}

func TestLoad_InvalidTimeZone(t *testing.T) {
	t.Setenv("TIMEZONE", "Mars/Olympus")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid time zone")
	}
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("CORS_ORIGINS", " https://a.example, ,https://b.example ")
	got := getEnvList("CORS_ORIGINS", nil)
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Errorf("unexpected list: %v", got)
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", User: "u", Password: "p@ss", Name: "stamps"}
	dsn := d.DSN()
	if !strings.Contains(dsn, "tcp(db:3306)") {
		t.Errorf("expected default port appended, got %s", dsn)
	}
	if !d.Enabled() {
		t.Error("expected database enabled when host is set")
	}
}
