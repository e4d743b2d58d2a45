package server

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("port = %d, want 8080", cfg.Port)
	}
	if cfg.CacheTTL != time.Hour {
		t.Fatalf("cache ttl = %v, want 1h", cfg.CacheTTL)
	}
	if cfg.JWTExpiration != 24*time.Hour {
		t.Fatalf("jwt expiration = %v, want 24h", cfg.JWTExpiration)
	}
	if cfg.DataDir != "data" {
		t.Fatalf("data dir = %q, want data", cfg.DataDir)
	}
}

func TestParseConfigEnvThenFlags(t *testing.T) {
	t.Setenv("QUILLHUB_PORT", "9090")
	t.Setenv("QUILLHUB_JWT_SECRET", "from-env")

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-port", "9191", "-cache-ttl", "30m"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9191 {
		t.Fatalf("port = %d, want flag override 9191", cfg.Port)
	}
	if cfg.JWTSecret != "from-env" {
		t.Fatalf("jwt secret = %q, want from-env", cfg.JWTSecret)
	}
	if cfg.CacheTTL != 30*time.Minute {
		t.Fatalf("cache ttl = %v, want 30m", cfg.CacheTTL)
	}
}
