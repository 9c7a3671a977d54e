package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Database
	DBPath string

	// Auth
	APIKey string

	// Rewrite service
	AnthropicAPIKey string
	AnthropicModel  string

	// Section engine
	CatalogPath        string // optional YAML catalog override
	CustomSectionLimit int

	// Import pipeline
	ImportWorkers   int
	ImportQueueSize int
	JobTTL          time.Duration
	MaxUploadBytes  int64

	// PDF
	PDFFallbackPdftotext bool
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		DBPath: envOr("GUIDEGEN_DB", "guidegen.db"),

		APIKey: os.Getenv("GUIDEGEN_API_KEY"),

		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  envOr("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),

		CatalogPath:        os.Getenv("CATALOG_PATH"),
		CustomSectionLimit: envInt("CUSTOM_SECTION_LIMIT", 5),

		ImportWorkers:   envInt("IMPORT_WORKERS", 2),
		ImportQueueSize: envInt("IMPORT_QUEUE_SIZE", 32),
		JobTTL:          envDuration("JOB_TTL", 1*time.Hour),
		MaxUploadBytes:  envInt64("MAX_UPLOAD_BYTES", 10485760), // 10MB

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.CustomSectionLimit <= 0 {
		cfg.CustomSectionLimit = 5
	}
	if cfg.ImportWorkers <= 0 {
		cfg.ImportWorkers = 2
	}
	if cfg.ImportQueueSize <= 0 {
		cfg.ImportQueueSize = 32
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10485760
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("GUIDEGEN_API_KEY is required")
	}
	if c.AnthropicAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
