// Package config provides configuration management functionality.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir         string // Directory for cached vendor CSV exports
	ReportsDir      string // Directory for rendered spreadsheet reports
	LogLevel        string
	Port            int
	DevMode         bool
	ProjectionYears int     // Valuation horizon in years
	TargetYield     float64 // Investor's required yield for target-price discounting
	GrowthLogShift  float64 // Shift for the logarithmic growth weighting
}

// Load reads configuration from environment variables.
//
// Cache and report directories default to relative paths and may be
// overridden via STOCKTINKER_DATA and STOCKTINKER_REPORTS. Directories are
// not created here; the components that write into them create them
// idempotently on first use.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:         getEnv("STOCKTINKER_DATA", "morningstar_data"),
		ReportsDir:      getEnv("STOCKTINKER_REPORTS", "reports"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Port:            getEnvAsInt("PORT", 8011),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		ProjectionYears: getEnvAsInt("PROJECTION_YEARS", 10),
		TargetYield:     getEnvAsFloat("TARGET_YIELD", 0.15),
		GrowthLogShift:  getEnvAsFloat("GROWTH_LOG_SHIFT", 2),
	}

	return cfg, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
