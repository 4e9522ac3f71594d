package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath    string
	OutputDir string

	// CurrencySymbol is the symbol package prices are quoted in.
	// The source catalog uses the Bangladeshi taka.
	CurrencySymbol string

	CategoryName string
	CategoryDesc string

	// MaxSkipDetail caps how many skip reasons the CLI prints inline;
	// the full list always goes into the xlsx report.
	MaxSkipDetail int
	AutoReport    bool

	LogLevel string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "healio.db")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		CurrencySymbol: getEnv("CURRENCY_SYMBOL", "৳"),

		CategoryName: getEnv("IMPORT_CATEGORY", "Medicine"),
		CategoryDesc: getEnv("IMPORT_CATEGORY_DESC", "Pharmaceutical medicines"),

		MaxSkipDetail: getEnvInt("IMPORT_MAX_SKIP_DETAIL", 10),
		AutoReport:    getEnvBool("IMPORT_AUTO_REPORT", false),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
