// ABOUTME: Application configuration from .env, environment, and XDG defaults
// ABOUTME: Resolves CRM webhook, store locations, and import tuning knobs
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

// AppName is used for XDG directories.
const AppName = "crmpulse"

// Environment variable names.
const (
	EnvBitrixWebhook      = "CRMPULSE_BITRIX_WEBHOOK"
	EnvDatabaseURL        = "CRMPULSE_DATABASE_URL"
	EnvDBPath             = "CRMPULSE_DB_PATH"
	EnvSalesCategory      = "CRMPULSE_SALES_CATEGORY"
	EnvFallbackCategoryID = "CRMPULSE_FALLBACK_CATEGORY_ID"
	EnvVocabulary         = "CRMPULSE_VOCABULARY"
	EnvLogLevel           = "CRMPULSE_LOG_LEVEL"
	EnvRateLimit          = "CRMPULSE_RATE_LIMIT"
	EnvDescriptionLimit   = "CRMPULSE_TASK_DESCRIPTION_LIMIT"
)

// Config holds every setting the commands need.
type Config struct {
	BitrixWebhook      string
	DatabaseURL        string
	DBPath             string
	SalesCategory      string
	FallbackCategoryID string
	VocabularyPath     string
	LogLevel           string
	RateLimit          float64
	DescriptionLimit   int
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		DBPath:             filepath.Join(xdg.DataHome, AppName, "crmpulse.db"),
		SalesCategory:      "продаж",
		FallbackCategoryID: "0",
		LogLevel:           "info",
		RateLimit:          2,
		DescriptionLimit:   500,
	}
}

// Load reads an optional .env file from the working directory and then the
// environment. Values already present in the environment win over .env.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := Default()

	if v := strings.TrimSpace(getenv(EnvBitrixWebhook)); v != "" {
		cfg.BitrixWebhook = strings.TrimRight(v, "/") + "/"
	}
	if v := getenv(EnvDatabaseURL); v != "" {
		cfg.DatabaseURL = v
	}
	if v := getenv(EnvDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := getenv(EnvSalesCategory); v != "" {
		cfg.SalesCategory = v
	}
	if v := getenv(EnvFallbackCategoryID); v != "" {
		cfg.FallbackCategoryID = v
	}
	if v := getenv(EnvVocabulary); v != "" {
		cfg.VocabularyPath = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv(EnvRateLimit); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil || rate <= 0 {
			return nil, fmt.Errorf("invalid %s: %q", EnvRateLimit, v)
		}
		cfg.RateLimit = rate
	}
	if v := getenv(EnvDescriptionLimit); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return nil, fmt.Errorf("invalid %s: %q", EnvDescriptionLimit, v)
		}
		cfg.DescriptionLimit = limit
	}

	return cfg, nil
}

// HasRemoteStore reports whether a hosted relational store is configured.
func (c *Config) HasRemoteStore() bool {
	return c.DatabaseURL != ""
}
