package agents

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config describes the local analysts and how their signals are combined
type Config struct {
	Version          string          `yaml:"version" json:"version"`
	Default          []string        `yaml:"default" json:"default"` // used when a request selects none
	Analysts         []AnalystConfig `yaml:"analysts" json:"analysts"`
	PortfolioManager ManagerConfig   `yaml:"portfolio_manager" json:"portfolio_manager"`
}

// AnalystConfig tunes one analyst
type AnalystConfig struct {
	ID        string  `yaml:"id" json:"id"`
	Weight    float64 `yaml:"weight" json:"weight"`
	Lookback  int     `yaml:"lookback" json:"lookback"`   // 거래일 수
	Threshold float64 `yaml:"threshold" json:"threshold"` // |score| 이 값 이상이면 방향성 시그널
}

// ManagerConfig tunes signal aggregation
type ManagerConfig struct {
	BuyThreshold  float64  `yaml:"buy_threshold" json:"buy_threshold"`
	SellThreshold float64  `yaml:"sell_threshold" json:"sell_threshold"`
	BlackList     []string `yaml:"blacklist" json:"blacklist"`
}

// DefaultConfig returns the built-in analyst set
func DefaultConfig() *Config {
	return &Config{
		Version: "1",
		Default: []string{AnalystMomentum, AnalystMeanReversion, AnalystTrendFollowing, AnalystVolatility},
		Analysts: []AnalystConfig{
			{ID: AnalystMomentum, Weight: 0.3, Lookback: 20, Threshold: 0.2},
			{ID: AnalystMeanReversion, Weight: 0.2, Lookback: 14, Threshold: 0.2},
			{ID: AnalystTrendFollowing, Weight: 0.3, Lookback: 26, Threshold: 0.2},
			{ID: AnalystVolatility, Weight: 0.2, Lookback: 20, Threshold: 0.2},
		},
		PortfolioManager: ManagerConfig{
			BuyThreshold:  0.15,
			SellThreshold: -0.15,
			BlackList:     []string{},
		},
	}
}

// LoadConfig reads an analysts YAML file
// KnownFields(true)로 오타/미사용 필드 즉시 실패
func LoadConfig(path string) (*Config, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read analysts config: %w", err)
	}
	cfg, err := ParseConfig(data)
	return cfg, data, err
}

// ParseConfig decodes and validates analysts YAML
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode analysts config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ids, weights and thresholds
func (c *Config) Validate() error {
	if len(c.Analysts) == 0 {
		return fmt.Errorf("analysts: at least one analyst is required")
	}

	seen := make(map[string]bool, len(c.Analysts))
	for i, a := range c.Analysts {
		if _, ok := builders[a.ID]; !ok {
			return fmt.Errorf("analysts[%d].id: unknown analyst %q", i, a.ID)
		}
		if seen[a.ID] {
			return fmt.Errorf("analysts[%d].id: duplicate analyst %q", i, a.ID)
		}
		seen[a.ID] = true
		if a.Weight <= 0 {
			return fmt.Errorf("analysts[%d].weight: must be > 0", i)
		}
		if a.Lookback < 2 {
			return fmt.Errorf("analysts[%d].lookback: must be >= 2", i)
		}
		if a.Threshold < 0 || a.Threshold >= 1 {
			return fmt.Errorf("analysts[%d].threshold: must be in [0, 1)", i)
		}
	}

	for _, id := range c.Default {
		if !seen[id] {
			return fmt.Errorf("default: analyst %q is not configured", id)
		}
	}

	pm := c.PortfolioManager
	if pm.BuyThreshold <= 0 || pm.BuyThreshold > 1 {
		return fmt.Errorf("portfolio_manager.buy_threshold: must be in (0, 1]")
	}
	if pm.SellThreshold >= 0 || pm.SellThreshold < -1 {
		return fmt.Errorf("portfolio_manager.sell_threshold: must be in [-1, 0)")
	}
	return nil
}

// Hash is a SHA256 of the canonical JSON form, recorded with every run
func (c *Config) Hash() (string, error) {
	jsonBytes, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}
