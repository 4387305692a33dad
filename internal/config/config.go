// Package config handles loading application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. Sensible defaults are provided for development.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
	// Embedded zone database so TIMEZONE works in minimal containers.
	_ "time/tzdata"

	"github.com/go-sql-driver/mysql"
)

// Media store drivers.
const (
	MediaDriverFS = "fs"
	MediaDriverS3 = "s3"
)

// Config holds all application configuration. Populated from environment
// variables at startup. Passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string

	// Port is the HTTP listen port (default: 4000).
	Port int

	// BaseURL is the public-facing URL used to build media links.
	BaseURL string

	// LogLevel controls log verbosity: "debug", "info", "warn", "error".
	LogLevel string

	// TimeZone is the IANA zone used by the /time endpoint.
	TimeZone string

	// StaticDir is served at the site root. Empty disables static serving.
	StaticDir string

	// CORSOrigins lists origins allowed to call the API. "*" allows all.
	CORSOrigins []string

	// TrustedProxies lists CIDRs whose X-Forwarded-For / X-Real-IP headers
	// are believed when resolving client IPs.
	TrustedProxies []string

	// Media holds the remote media store settings.
	Media MediaConfig

	// Ingest holds image ingestion settings.
	Ingest IngestConfig

	// Redis holds the optional relay backplane settings.
	Redis RedisConfig

	// Database holds the optional MariaDB settings for the ingestion log.
	Database DatabaseConfig
}

// MediaConfig selects and configures the media store.
type MediaConfig struct {
	// Driver is "fs" (local directory) or "s3".
	Driver string

	// Root is the top-level namespace every category lives under.
	Root string

	// Path is the storage directory for the fs driver.
	Path string

	// S3 holds settings for the s3 driver.
	S3 S3Config
}

// S3Config holds S3 (or S3-compatible) bucket settings.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool

	// PublicURL is the base URL objects are served from. Defaults to the
	// virtual-hosted bucket URL when empty.
	PublicURL string
}

// IngestConfig holds limits applied while fetching source images.
type IngestConfig struct {
	// MaxBytes caps the size of a fetched source image.
	MaxBytes int64

	// MaxConcurrent caps in-flight ingestions. Zero means unbounded.
	MaxConcurrent int

	// UserAgent is sent when fetching source images.
	UserAgent string
}

// RedisConfig holds Redis connection parameters. An empty URL keeps the
// relay local to this process.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	URL string

	// Channel is the pub/sub channel stamps are relayed through.
	Channel string
}

// Enabled reports whether a Redis backplane is configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

// DatabaseConfig holds MariaDB connection parameters. Individual fields
// (Host, User, Password, Name) are read from separate env vars so
// container orchestrators can manage each independently. If DATABASE_URL is
// set, it takes precedence over the individual fields.
type DatabaseConfig struct {
	// Host is the MariaDB address in host:port format. Empty disables the
	// ingestion log. If no port is specified, 3306 is appended automatically.
	Host string

	// User is the MariaDB username (default: "stampboard").
	User string

	// Password is the MariaDB password (default: "stampboard").
	Password string

	// Name is the database name (default: "stampboard").
	Name string

	// dsnOverride is set when DATABASE_URL is provided, bypassing individual fields.
	dsnOverride string

	// MigrationsPath is the directory holding *.up.sql / *.down.sql files.
	MigrationsPath string

	// MaxOpenConns is the maximum number of open connections in the pool.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections in the pool.
	MaxIdleConns int

	// ConnMaxLifetime is how long a connection can be reused.
	ConnMaxLifetime time.Duration
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.dsnOverride != "" || d.Host != ""
}

// DSN returns the go-sql-driver/mysql connection string. If DATABASE_URL was
// set, it is returned as-is. Otherwise the DSN is built from the individual
// Host/User/Password/Name fields using the driver's Config.FormatDSN()
// to safely handle special characters in passwords.
func (d DatabaseConfig) DSN() string {
	if d.dsnOverride != "" {
		return d.dsnOverride
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(d.Host, "3306")
	cfg.DBName = d.Name
	cfg.ParseTime = true
	cfg.MultiStatements = true
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// defaultTrustedProxies covers loopback and the private ranges Docker and
// most reverse proxies run in.
var defaultTrustedProxies = []string{"127.0.0.0/8", "::1/128", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}

// Load reads configuration from environment variables with sensible defaults.
// Returns an error if the selected media driver is missing required settings.
func Load() (*Config, error) {
	cfg := &Config{
		Env:         getEnv("ENV", "development"),
		Port:        getEnvInt("PORT", 4000),
		BaseURL:     strings.TrimRight(getEnv("BASE_URL", "http://localhost:4000"), "/"),
		LogLevel:    getEnv("LOG_LEVEL", "debug"),
		TimeZone:    getEnv("TIMEZONE", "Asia/Tokyo"),
		StaticDir:   getEnv("STATIC_DIR", "public"),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"*"}),

		TrustedProxies: getEnvList("TRUSTED_PROXIES", defaultTrustedProxies),

		Media: MediaConfig{
			Driver: strings.ToLower(getEnv("MEDIA_DRIVER", MediaDriverFS)),
			Root:   getEnv("MEDIA_ROOT", "LGTM"),
			Path:   getEnv("MEDIA_PATH", "./media"),
			S3: S3Config{
				Bucket:          getEnv("S3_BUCKET", ""),
				Region:          getEnv("S3_REGION", ""),
				Endpoint:        getEnv("S3_ENDPOINT", ""),
				AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
				SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
				ForcePathStyle:  getEnvBool("S3_FORCE_PATH_STYLE", false),
				PublicURL:       strings.TrimRight(getEnv("S3_PUBLIC_URL", ""), "/"),
			},
		},

		Ingest: IngestConfig{
			MaxBytes:      getEnvInt64("INGEST_MAX_BYTES", 20*1024*1024), // 20MB
			MaxConcurrent: getEnvInt("INGEST_MAX_CONCURRENT", 0),
			UserAgent:     getEnv("INGEST_USER_AGENT", "stampboard/1.0"),
		},

		Redis: RedisConfig{
			URL:     getEnv("REDIS_URL", ""),
			Channel: getEnv("REDIS_CHANNEL", "stampboard:stamps"),
		},

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", ""),
			User:            getEnv("DB_USER", "stampboard"),
			Password:        getEnv("DB_PASSWORD", "stampboard"),
			Name:            getEnv("DB_NAME", "stampboard"),
			dsnOverride:     getEnv("DATABASE_URL", ""),
			MigrationsPath:  getEnv("DB_MIGRATIONS_PATH", "db/migrations"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate rejects configurations the server cannot start with.
func (c *Config) validate() error {
	if c.Media.Root == "" {
		return fmt.Errorf("MEDIA_ROOT must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.TimeZone, err)
	}

	switch c.Media.Driver {
	case MediaDriverFS:
		if c.Media.Path == "" {
			return fmt.Errorf("MEDIA_PATH is required for the fs media driver")
		}
	case MediaDriverS3:
		s3 := c.Media.S3
		var missing []string
		if s3.Bucket == "" {
			missing = append(missing, "S3_BUCKET")
		}
		if s3.Region == "" {
			missing = append(missing, "S3_REGION")
		}
		if s3.AccessKeyID == "" {
			missing = append(missing, "S3_ACCESS_KEY_ID")
		}
		if s3.SecretAccessKey == "" {
			missing = append(missing, "S3_SECRET_ACCESS_KEY")
		}
		if len(missing) > 0 {
			return fmt.Errorf("s3 media driver requires %s", strings.Join(missing, ", "))
		}
	default:
		return fmt.Errorf("unknown MEDIA_DRIVER %q", c.Media.Driver)
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// ListenAddr is the address the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("0.0.0.0:%d", c.Port)
}

// Location returns the configured time zone. Load has already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// --- Helper functions for reading environment variables ---

// getEnv reads a string env var or returns the default.
func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer env var or returns the default.
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvInt64 reads an int64 env var or returns the default.
func getEnvInt64(key string, defaultVal int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvBool reads a boolean env var or returns the default.
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration env var (e.g., "5m") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// getEnvList reads a comma-separated env var or returns the default.
func getEnvList(key string, defaultVal []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
