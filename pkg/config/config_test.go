package config

import (
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// Check defaults
	if cfg.Port != "5000" {
		t.Errorf("Expected Port to be 5000, got %s", cfg.Port)
	}

	if cfg.Env != "development" {
		t.Errorf("Expected Env to be development, got %s", cfg.Env)
	}

	if cfg.Engine.Mode != ModeAsync {
		t.Errorf("Expected Engine.Mode to be async, got %s", cfg.Engine.Mode)
	}

	if cfg.Defaults.ModelName != "gpt-4o" || cfg.Defaults.ModelProvider != "OpenAI" {
		t.Errorf("Unexpected model defaults: %s/%s", cfg.Defaults.ModelName, cfg.Defaults.ModelProvider)
	}

	if cfg.Database.Enabled() {
		t.Error("Expected database to be disabled without DATABASE_URL")
	}

	if cfg.Redis.Enabled {
		t.Error("Expected redis to be disabled by default")
	}
}

func TestLoadWithCustomValues(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ENV", "production")
	t.Setenv("ENGINE_MODE", "sync")
	t.Setenv("ENGINE_WORKERS", "8")
	t.Setenv("RUN_TIMEOUT", "30s")
	t.Setenv("DEFAULT_MODEL_NAME", "llama3")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "9000" {
		t.Errorf("Expected Port to be 9000, got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Errorf("Expected Env to be production, got %s", cfg.Env)
	}
	if cfg.Engine.Mode != ModeSync {
		t.Errorf("Expected Engine.Mode to be sync, got %s", cfg.Engine.Mode)
	}
	if cfg.Engine.Workers != 8 {
		t.Errorf("Expected Engine.Workers to be 8, got %d", cfg.Engine.Workers)
	}
	if cfg.Engine.RunTimeout != 30*time.Second {
		t.Errorf("Expected RunTimeout to be 30s, got %v", cfg.Engine.RunTimeout)
	}
	if cfg.Defaults.ModelName != "llama3" {
		t.Errorf("Expected ModelName to be llama3, got %s", cfg.Defaults.ModelName)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected LogLevel to be debug, got %s", cfg.LogLevel)
	}
}

func TestValidateInvalidEnv(t *testing.T) {
	t.Setenv("ENV", "invalid")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when ENV is invalid, got nil")
	}
}

func TestValidateInvalidEngineMode(t *testing.T) {
	t.Setenv("ENGINE_MODE", "turbo")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when ENGINE_MODE is invalid, got nil")
	}
}

func TestValidatePostgresSourceRequiresDatabase(t *testing.T) {
	t.Setenv("MARKET_DATA_SOURCE", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when postgres market data has no DATABASE_URL, got nil")
	}
}

func TestValidateMaxPositionPct(t *testing.T) {
	t.Setenv("MAX_POSITION_PCT", "1.5")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when MAX_POSITION_PCT > 1, got nil")
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "2h")

	duration := getEnvAsDuration("TEST_DURATION", "1h")
	expected := 2 * time.Hour

	if duration != expected {
		t.Errorf("Expected duration to be %v, got %v", expected, duration)
	}
}

func TestGetEnvAsDurationFallback(t *testing.T) {
	t.Setenv("TEST_DURATION", "not-a-duration")

	if got := getEnvAsDuration("TEST_DURATION", "1h"); got != time.Hour {
		t.Errorf("Expected fallback duration 1h, got %v", got)
	}
}

func TestGetEnvAsInt(t *testing.T) {
	t.Setenv("TEST_INT", "100")

	value := getEnvAsInt("TEST_INT", 50)
	if value != 100 {
		t.Errorf("Expected value to be 100, got %d", value)
	}
}

func TestGetEnvAsFloat(t *testing.T) {
	t.Setenv("TEST_FLOAT", "0.5")

	if value := getEnvAsFloat("TEST_FLOAT", 1); value != 0.5 {
		t.Errorf("Expected value to be 0.5, got %v", value)
	}

	t.Setenv("TEST_FLOAT", "abc")
	if value := getEnvAsFloat("TEST_FLOAT", 1); value != 1 {
		t.Errorf("Expected fallback value 1, got %v", value)
	}
}

func TestGetEnvAsBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")

	value := getEnvAsBool("TEST_BOOL", false)
	if value != true {
		t.Errorf("Expected value to be true, got %v", value)
	}
}
