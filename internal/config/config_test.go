package config

import (
	"os"
	"testing"
)

var configKeys = []string{"DATABASE_URL", "PORT", "LOG_LEVEL", "RECEIPT_PARSER_URL", "RECEIPT_PARSER_KEY"}

func TestLoadDefaults(t *testing.T) {
	for _, key := range configKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := Load()
	if cfg.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %q, want empty (in-memory store)", cfg.DatabaseURL)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/forkthebill")
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("RECEIPT_PARSER_URL", "https://parser.example.com/parse")
	t.Setenv("RECEIPT_PARSER_KEY", "secret")

	cfg := Load()
	if cfg.DatabaseURL != "postgres://localhost/forkthebill" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.ReceiptParserURL != "https://parser.example.com/parse" {
		t.Errorf("ReceiptParserURL = %q", cfg.ReceiptParserURL)
	}
	if cfg.ReceiptParserKey != "secret" {
		t.Errorf("ReceiptParserKey = %q", cfg.ReceiptParserKey)
	}
}
