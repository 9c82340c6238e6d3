package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeFile(t, `{"postgres_password":"secret","http_addr":":9000","log_level":"debug"}`)
	t.Setenv("MONEYTRACK_HTTP_ADDR", ":7000")
	t.Setenv("MONEYTRACK_BANK_SYNC_INTERVAL", "30s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":7000" {
		t.Errorf("env should override file, got %q", cfg.HTTPAddr)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("file value lost, got %q", cfg.LogLevel)
	}
	if cfg.GRPCAddr != ":50051" || cfg.AMQPQueue != "notifications_queue" || cfg.DefaultCurrency != "LKR" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.BankSyncInterval != 30*time.Second {
		t.Errorf("interval = %s", cfg.BankSyncInterval)
	}
	if !strings.Contains(cfg.DSN(), ":secret@localhost:5432/moneytrack") {
		t.Errorf("dsn = %s", cfg.DSN())
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("MONEYTRACK_POSTGRES_DSN", "postgres://u:p@db/x")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DSN() != "postgres://u:p@db/x" {
		t.Errorf("dsn = %s", cfg.DSN())
	}
}

func TestLoadRejects(t *testing.T) {
	if _, err := Load(writeFile(t, `{"postgres_password":`)); err == nil {
		t.Error("invalid json accepted")
	}
	if _, err := Load(writeFile(t, `{}`)); err == nil {
		t.Error("missing database settings accepted")
	}
	if _, err := Load(writeFile(t, `{"postgres_password":"x","credentials_key":"abcd"}`)); err == nil {
		t.Error("short credentials key accepted")
	}
}

func TestKey(t *testing.T) {
	cfg := Config{CredentialsKey: strings.Repeat("ab", 32)}
	key, err := cfg.Key()
	if err != nil {
		t.Fatal(err)
	}
	if key[0] != 0xab || key[31] != 0xab {
		t.Errorf("key decoded wrong: %x", key)
	}
}
