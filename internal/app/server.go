// Package app wires the stores, caches, services, and HTTP surface into one
// runnable server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/quillhub/quillhub.press/internal/platform/id"
	"github.com/quillhub/quillhub.press/internal/platform/timeouts"
	contenthttp "github.com/quillhub/quillhub.press/internal/services/content/api/http"
	"github.com/quillhub/quillhub.press/internal/services/content/cache"
	"github.com/quillhub/quillhub.press/internal/services/content/cache/memory"
	rediscache "github.com/quillhub/quillhub.press/internal/services/content/cache/redis"
	contentdomain "github.com/quillhub/quillhub.press/internal/services/content/domain"
	"github.com/quillhub/quillhub.press/internal/services/content/storage"
	contentpostgres "github.com/quillhub/quillhub.press/internal/services/content/storage/postgres"
	contentsqlite "github.com/quillhub/quillhub.press/internal/services/content/storage/sqlite"
	identityhttp "github.com/quillhub/quillhub.press/internal/services/identity/api/http"
	identitydomain "github.com/quillhub/quillhub.press/internal/services/identity/domain"
	identitysqlite "github.com/quillhub/quillhub.press/internal/services/identity/storage/sqlite"
	"github.com/quillhub/quillhub.press/internal/services/identity/token"
)

const defaultPort = 8080

// RuntimeConfig controls server startup and dependency wiring.
type RuntimeConfig struct {
	Port            int
	DataDir         string
	DatabaseURL     string
	RedisURL        string
	CacheTTL        time.Duration
	DuplicateWindow time.Duration
	JWTSecret       string
	JWTExpiration   time.Duration
	HashCost        int
}

// Run starts the HTTP runtime until context cancellation. The post store is
// Postgres when DatabaseURL is set and SQLite under DataDir otherwise; the
// cache is Redis when RedisURL is set and in-process memory otherwise.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultPort
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "data"
	}

	userStore, err := identitysqlite.Open(filepath.Join(cfg.DataDir, "identity.db"))
	if err != nil {
		return fmt.Errorf("open identity store: %w", err)
	}
	defer func() {
		if closeErr := userStore.Close(); closeErr != nil {
			log.Printf("close identity store: %v", closeErr)
		}
	}()

	postStore, closePosts, err := openPostStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closePosts()

	cacheStore, err := openCacheStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := cacheStore.Close(); closeErr != nil {
			log.Printf("close cache store: %v", closeErr)
		}
	}()

	tokens, err := token.NewIssuer(token.Config{
		Secret:     cfg.JWTSecret,
		Expiration: cfg.JWTExpiration,
	})
	if err != nil {
		return fmt.Errorf("configure token issuer: %w", err)
	}

	posts := contentdomain.NewService(postStore, cacheStore, id.NewID, contentdomain.Config{
		CacheTTL:        cfg.CacheTTL,
		DuplicateWindow: cfg.DuplicateWindow,
	})
	users := identitydomain.NewService(userStore, id.NewID, identitydomain.Config{
		HashCost: cfg.HashCost,
	})

	mux := http.NewServeMux()
	identityhttp.NewHandler(users, tokens).Register(mux)
	contenthttp.NewHandler(posts, identityhttp.RequireAuth(tokens)).Register(mux)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           otelhttp.NewHandler(mux, "http.server"),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	log.Printf("server listening at %s", server.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		err := <-serveErr
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

func openPostStore(ctx context.Context, cfg RuntimeConfig) (storage.PostStore, func(), error) {
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		store, err := contentpostgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres post store: %w", err)
		}
		return store, func() {
			if closeErr := store.Close(); closeErr != nil {
				log.Printf("close post store: %v", closeErr)
			}
		}, nil
	}

	store, err := contentsqlite.Open(filepath.Join(cfg.DataDir, "content.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite post store: %w", err)
	}
	return store, func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close post store: %v", closeErr)
		}
	}, nil
}

func openCacheStore(ctx context.Context, cfg RuntimeConfig) (cache.Store, error) {
	if strings.TrimSpace(cfg.RedisURL) != "" {
		store, err := rediscache.Open(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("open redis cache: %w", err)
		}
		return store, nil
	}
	return memory.New(), nil
}
