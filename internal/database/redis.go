package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/stampboard/internal/config"
)

// clientName tags backplane connections in CLIENT LIST.
const clientName = "stampboard-relay"

// NewRedis connects to the relay backplane server. The client is pinged
// before it is returned so a misconfigured REDIS_URL fails at startup rather
// than on the first relayed stamp.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled() {
		return nil, errors.New("redis: REDIS_URL is not set")
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	opts.ClientName = clientName

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", opts.Addr, err)
	}

	slog.Info("connected to Redis",
		slog.String("addr", opts.Addr),
		slog.Int("db", opts.DB),
		slog.String("channel", cfg.Channel),
	)
	return client, nil
}
