package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Engine modes
const (
	ModeAsync = "async" // hand runs to the worker pool, return a run id
	ModeSync  = "sync"  // simulate inline and return the full result
	ModeLite  = "lite"  // stand-in engines only, no simulation
)

// Market data sources
const (
	SourceSynthetic = "synthetic"
	SourcePostgres  = "postgres"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database (optional, empty URL keeps runs in memory)
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	Engine     EngineConfig
	Defaults   DefaultsConfig
	Agent      AgentConfig
	MarketData MarketDataConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Requests per minute per client on submission endpoints (0 disables)
	RateLimitPerMinute int
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

// Enabled reports whether a database URL was configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// EngineConfig controls how backtests are executed
type EngineConfig struct {
	Mode         string
	Workers      int
	QueueSize    int
	RunTimeout   time.Duration
	RunRetention time.Duration
	SkipWeekends bool
}

// DefaultsConfig holds request defaults owned by the process, not the caller
type DefaultsConfig struct {
	ModelName     string
	ModelProvider string
	AnalysisCash  float64
}

// AgentConfig configures the decision-making capability
type AgentConfig struct {
	ServiceURL     string  // remote decision service; empty uses local analysts
	RateLimit      float64 // decisions per second
	Burst          int
	AnalystsConfig string // optional YAML file with analyst weights
	MaxPositionPct float64
}

// MarketDataConfig selects where price history comes from
type MarketDataConfig struct {
	Source   string
	CacheTTL time.Duration
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "5000"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Engine: EngineConfig{
			Mode:         getEnv("ENGINE_MODE", ModeAsync),
			Workers:      getEnvAsInt("ENGINE_WORKERS", 4),
			QueueSize:    getEnvAsInt("ENGINE_QUEUE_SIZE", 64),
			RunTimeout:   getEnvAsDuration("RUN_TIMEOUT", "5m"),
			RunRetention: getEnvAsDuration("RUN_RETENTION", "24h"),
			SkipWeekends: getEnvAsBool("SKIP_WEEKENDS", true),
		},

		Defaults: DefaultsConfig{
			ModelName:     getEnv("DEFAULT_MODEL_NAME", "gpt-4o"),
			ModelProvider: getEnv("DEFAULT_MODEL_PROVIDER", "OpenAI"),
			AnalysisCash:  getEnvAsFloat("DEFAULT_ANALYSIS_CASH", 100000),
		},

		Agent: AgentConfig{
			ServiceURL:     getEnv("AGENT_SERVICE_URL", ""),
			RateLimit:      getEnvAsFloat("AGENT_RATE_LIMIT", 0),
			Burst:          getEnvAsInt("AGENT_BURST", 1),
			AnalystsConfig: getEnv("ANALYSTS_CONFIG", ""),
			MaxPositionPct: getEnvAsFloat("MAX_POSITION_PCT", 0.25),
		},

		MarketData: MarketDataConfig{
			Source:   getEnv("MARKET_DATA_SOURCE", SourceSynthetic),
			CacheTTL: getEnvAsDuration("MARKET_DATA_CACHE_TTL", "1h"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 0),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if configuration values are consistent
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Engine.Mode {
	case ModeAsync, ModeSync, ModeLite:
	default:
		return fmt.Errorf("ENGINE_MODE must be one of: async, sync, lite")
	}

	if c.Engine.Workers <= 0 {
		return fmt.Errorf("ENGINE_WORKERS must be > 0")
	}
	if c.Engine.QueueSize <= 0 {
		return fmt.Errorf("ENGINE_QUEUE_SIZE must be > 0")
	}

	switch c.MarketData.Source {
	case SourceSynthetic:
	case SourcePostgres:
		if !c.Database.Enabled() {
			return fmt.Errorf("MARKET_DATA_SOURCE=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("MARKET_DATA_SOURCE must be one of: synthetic, postgres")
	}

	if c.Agent.MaxPositionPct <= 0 || c.Agent.MaxPositionPct > 1 {
		return fmt.Errorf("MAX_POSITION_PCT must be in (0, 1]")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
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
