package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External APIs
	Tushare  TushareConfig
	Telegram TelegramConfig

	// Strategy
	Strategy StrategyConfig

	// Schedule
	Schedule ScheduleConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool

	// 결과 캐시 유지 시간
	ResultTTL time.Duration
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// TushareConfig holds Tushare Pro API configuration
type TushareConfig struct {
	Token      string
	BaseURL    string
	RatePerMin int
	Timeout    time.Duration
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	Token   string
	ChatID  string
	BaseURL string
}

// Enabled reports whether both the token and the chat id are set
func (t TelegramConfig) Enabled() bool {
	return t.Token != "" && t.ChatID != ""
}

// StrategyConfig holds strategy selection and data window settings
type StrategyConfig struct {
	Active       []string // ACTIVE_STRATEGIES
	ActiveSet    bool     // ACTIVE_STRATEGIES explicitly set (wins over the YAML file)
	ParamsJSON   string   // STRATEGY_PARAMS (raw JSON, parsed by the strategy package)
	ConfigPath   string   // STRATEGY_CONFIG (optional YAML)
	TopN         int
	BackfillDays int
	HistoryDays  int
	MinDataRows  int
}

// ScheduleConfig holds the daily trigger settings
type ScheduleConfig struct {
	Cron         string // robfig/cron with seconds field
	BackfillCron string // optional evening backfill; empty disables
	Timezone     string
}

// Location resolves the schedule timezone
func (s ScheduleConfig) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:      getEnv("REDIS_HOST", "localhost"),
			Port:      getEnv("REDIS_PORT", "6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			Enabled:   getEnvAsBool("REDIS_ENABLED", false),
			ResultTTL: getEnvAsDuration("RESULT_CACHE_TTL", "48h"),
		},

		// External APIs
		Tushare: TushareConfig{
			Token:      getEnv("TUSHARE_TOKEN", getEnv("TS_TOKEN", "")),
			BaseURL:    getEnv("TUSHARE_BASE_URL", "http://api.tushare.pro"),
			RatePerMin: getEnvAsInt("TUSHARE_RATE_PER_MIN", 120),
			Timeout:    getEnvAsDuration("TUSHARE_TIMEOUT", "30s"),
		},

		Telegram: TelegramConfig{
			Token:   getEnv("TG_TOKEN", ""),
			ChatID:  getEnv("TG_CHAT_ID", ""),
			BaseURL: getEnv("TG_BASE_URL", "https://api.telegram.org"),
		},

		Strategy: StrategyConfig{
			Active:       getEnvAsList("ACTIVE_STRATEGIES", []string{"standard"}),
			ActiveSet:    os.Getenv("ACTIVE_STRATEGIES") != "",
			ParamsJSON:   getEnv("STRATEGY_PARAMS", ""),
			ConfigPath:   getEnv("STRATEGY_CONFIG", ""),
			TopN:         getEnvAsInt("TOP_N", 10),
			BackfillDays: getEnvAsInt("BACKFILL_DAYS", 200),
			HistoryDays:  getEnvAsInt("HISTORY_DAYS", 250),
			MinDataRows:  getEnvAsInt("MIN_DATA_ROWS", 10000),
		},

		Schedule: ScheduleConfig{
			Cron:         getEnv("SCHEDULE_CRON", "0 30 8 * * *"),
			BackfillCron: getEnv("SCHEDULE_BACKFILL_CRON", ""),
			Timezone:     getEnv("SCHEDULE_TZ", "Asia/Shanghai"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Database URL is required
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Strategy.TopN < 1 {
		return fmt.Errorf("TOP_N must be >= 1")
	}
	if c.Strategy.HistoryDays < 1 || c.Strategy.BackfillDays < 0 {
		return fmt.Errorf("HISTORY_DAYS must be >= 1 and BACKFILL_DAYS >= 0")
	}

	if _, err := c.Schedule.Location(); err != nil {
		return fmt.Errorf("SCHEDULE_TZ: %w", err)
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{".env"}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsList splits a comma separated value, dropping blanks
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
