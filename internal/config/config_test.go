package config

import (
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"REPO_PATH", "STORAGE_PATH", "DATABASE_URL", "DATABASE_CONNECTIONS",
		"LISTEN_ADDR", "PUBLIC_BASE_URL", "OPENID_AUTH_ENDPOINT",
		"OPENID_TOKEN_ENDPOINT", "OPENID_CLIENT_ID", "OPENID_CLIENT_SECRET",
		"OPENID_NONCE", "JWT_KEY_CONFIG",
	} {
		t.Setenv(envPrefix+name, "")
	}
}

func TestLoadUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RepoPath == "" || cfg.StoragePath == "" || cfg.DatabaseURL == "" {
		t.Fatalf("expected non-empty defaults, got %+v", cfg)
	}
	if cfg.DatabaseConnections != 1 {
		t.Fatalf("DatabaseConnections = %d, want 1", cfg.DatabaseConnections)
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(envPrefix+"REPO_PATH", "/tmp/repo")
	t.Setenv(envPrefix+"STORAGE_PATH", "/tmp/storage")
	t.Setenv(envPrefix+"DATABASE_URL", "/tmp/db.sqlite")
	t.Setenv(envPrefix+"DATABASE_CONNECTIONS", "4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RepoPath != "/tmp/repo" || cfg.StoragePath != "/tmp/storage" || cfg.DatabaseURL != "/tmp/db.sqlite" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.DatabaseConnections != 4 {
		t.Fatalf("DatabaseConnections = %d, want 4", cfg.DatabaseConnections)
	}
}

func TestLoadRejectsInvalidDatabaseConnections(t *testing.T) {
	clearEnv(t)
	t.Setenv(envPrefix+"DATABASE_CONNECTIONS", "not-a-number")
	if _, err := Load(); err == nil {
		t.Fatalf("Load with invalid DATABASE_CONNECTIONS should fail")
	}
}
