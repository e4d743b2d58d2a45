// Package server parses server command flags and launches the HTTP runtime.
package server

import (
	"context"
	"flag"
	"time"

	"github.com/quillhub/quillhub.press/internal/app"
	entrypoint "github.com/quillhub/quillhub.press/internal/platform/cmd"
)

// Config holds server command configuration.
type Config struct {
	Port            int           `env:"QUILLHUB_PORT" envDefault:"8080"`
	DataDir         string        `env:"QUILLHUB_DATA_DIR" envDefault:"data"`
	DatabaseURL     string        `env:"QUILLHUB_DATABASE_URL"`
	RedisURL        string        `env:"QUILLHUB_REDIS_URL"`
	CacheTTL        time.Duration `env:"QUILLHUB_CACHE_TTL" envDefault:"1h"`
	DuplicateWindow time.Duration `env:"QUILLHUB_DUPLICATE_WINDOW" envDefault:"1h"`
	JWTSecret       string        `env:"QUILLHUB_JWT_SECRET"`
	JWTExpiration   time.Duration `env:"QUILLHUB_JWT_EXPIRATION" envDefault:"24h"`
	HashCost        int           `env:"QUILLHUB_HASH_COST" envDefault:"10"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.IntVar(&cfg.Port, "port", cfg.Port, "The HTTP server port")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "The directory for SQLite database files")
	fs.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "The Postgres connection URL (SQLite when empty)")
	fs.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "The Redis cache URL (in-memory when empty)")
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", cfg.CacheTTL, "The post and listing cache entry TTL")
	fs.DurationVar(&cfg.DuplicateWindow, "duplicate-window", cfg.DuplicateWindow, "The create duplicate-suppression window")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "The token signing secret")
	fs.DurationVar(&cfg.JWTExpiration, "jwt-expiration", cfg.JWTExpiration, "The token lifetime")
	fs.IntVar(&cfg.HashCost, "hash-cost", cfg.HashCost, "The bcrypt hashing cost")

	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the server runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceServer, func(context.Context) error {
		return app.Run(ctx, app.RuntimeConfig{
			Port:            cfg.Port,
			DataDir:         cfg.DataDir,
			DatabaseURL:     cfg.DatabaseURL,
			RedisURL:        cfg.RedisURL,
			CacheTTL:        cfg.CacheTTL,
			DuplicateWindow: cfg.DuplicateWindow,
			JWTSecret:       cfg.JWTSecret,
			JWTExpiration:   cfg.JWTExpiration,
			HashCost:        cfg.HashCost,
		})
	})
}
