package config

import "os"

// Config holds all application configuration
type Config struct {
	DatabaseURL      string
	Port             string
	LogLevel         string
	ReceiptParserURL string
	ReceiptParserKey string
}

// Load reads configuration from environment variables. An empty DATABASE_URL
// selects the in-memory store.
func Load() *Config {
	return &Config{
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		Port:             getEnv("PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		ReceiptParserURL: getEnv("RECEIPT_PARSER_URL", ""),
		ReceiptParserKey: getEnv("RECEIPT_PARSER_KEY", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
