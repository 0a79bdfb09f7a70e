package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadSubstitutesEnvVars(t *testing.T) {
	t.Setenv("ECHOMIND_PG_DSN", "postgres://app:secret@db:5432/echomind")

	path := writeConfig(t, `{
		"server": {"port": 9090},
		"database": {
			"postgres": {"dsn": "${ECHOMIND_PG_DSN}"},
			"redis": {"url": "${ECHOMIND_REDIS_URL:redis://localhost:6379}"}
		},
		"context": {"model": "gpt-4", "buffer_tokens": 500}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Postgres.DSN != "postgres://app:secret@db:5432/echomind" {
		t.Errorf("got dsn %q", cfg.Database.Postgres.DSN)
	}
	if cfg.Database.Redis.URL != "redis://localhost:6379" {
		t.Errorf("got redis url %q, want the default", cfg.Database.Redis.URL)
	}
	if cfg.Server.Port != 9090 || cfg.Context.Model != "gpt-4" || cfg.Context.BufferTokens != 500 {
		t.Errorf("got %+v", cfg)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `{}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("got port %d, want 8080", cfg.Server.Port)
	}
	if cfg.Context.Model != "gpt-3.5-turbo" {
		t.Errorf("got model %q", cfg.Context.Model)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
