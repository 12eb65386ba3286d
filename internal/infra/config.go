// Package infra holds configuration and logging for the venue process.
package infra

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	ProviderFinnhub   = "finnhub"
	ProviderSynthetic = "synthetic"
)

// Config holds every runtime setting. Decimal-valued settings are kept as
// strings in the file and parsed on access so no precision is lost. Secrets
// can be overridden through environment variables after the file is loaded.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	Market struct {
		Symbols       []string          `yaml:"symbols"`
		Seeds         map[string]string `yaml:"seeds"`
		SnapshotDepth int               `yaml:"snapshot_depth"`
	} `yaml:"market"`

	Provider struct {
		Name       string `yaml:"name"` // finnhub | synthetic
		BaseURL    string `yaml:"base_url"`
		APIKey     string `yaml:"api_key"`
		TimeoutSec int    `yaml:"timeout_sec"`
	} `yaml:"provider"`

	RefPrice struct {
		RotatePeriodSec int    `yaml:"rotate_period_sec"`
		TickIntervalMS  int    `yaml:"tick_interval_ms"`
		OfficialWeight  string `yaml:"official_weight"`
		HintWeight      string `yaml:"hint_weight"`
		MeanReversion   string `yaml:"mean_reversion"`
		MaxMoveBps      int64  `yaml:"max_move_bps"`
		NoiseBps        int64  `yaml:"noise_bps"`
		HintTTLSec      int    `yaml:"hint_ttl_sec"`
	} `yaml:"refprice"`

	Journal struct {
		Path string `yaml:"path"`
	} `yaml:"journal"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file, applies environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Market.SnapshotDepth <= 0 {
		c.Market.SnapshotDepth = 10
	}
	if c.Provider.Name == "" {
		c.Provider.Name = ProviderSynthetic
	}
	if c.Provider.TimeoutSec <= 0 {
		c.Provider.TimeoutSec = 10
	}
	if c.RefPrice.RotatePeriodSec <= 0 {
		c.RefPrice.RotatePeriodSec = 15
	}
	if c.RefPrice.TickIntervalMS <= 0 {
		c.RefPrice.TickIntervalMS = 250
	}
	if c.RefPrice.NoiseBps == 0 {
		c.RefPrice.NoiseBps = 5
	}
	if c.RefPrice.HintTTLSec <= 0 {
		c.RefPrice.HintTTLSec = 30
	}
	if c.Journal.Path == "" {
		c.Journal.Path = "data/alphabook.db"
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if len(c.Market.Symbols) == 0 {
		return fmt.Errorf("at least one market symbol is required")
	}
	if _, err := c.SeedPrices(); err != nil {
		return err
	}

	switch c.Provider.Name {
	case ProviderFinnhub:
		if c.Provider.APIKey == "" {
			return fmt.Errorf("finnhub provider requires an API key")
		}
	case ProviderSynthetic:
		// zero configuration by design
	default:
		return fmt.Errorf("unknown provider: %s", c.Provider.Name)
	}

	for name, v := range map[string]string{
		"official_weight": c.RefPrice.OfficialWeight,
		"hint_weight":     c.RefPrice.HintWeight,
		"mean_reversion":  c.RefPrice.MeanReversion,
	} {
		if v == "" {
			continue
		}
		dv, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if dv.Sign() < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if c.RefPrice.NoiseBps < 0 || c.RefPrice.MaxMoveBps < 0 {
		return fmt.Errorf("bps bounds must not be negative")
	}

	return nil
}

// SeedPrices parses the per-symbol static fallback prices.
func (c *Config) SeedPrices() (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(c.Market.Seeds))
	for sym, raw := range c.Market.Seeds {
		seed, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid seed price for %s: %w", sym, err)
		}
		if seed.Sign() <= 0 {
			return nil, fmt.Errorf("seed price for %s must be positive", sym)
		}
		out[sym] = seed
	}
	return out, nil
}

// decimalOr parses s, falling back to def when s is empty.
func decimalOr(s string, def decimal.Decimal) decimal.Decimal {
	if s == "" {
		return def
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return def
	}
	return v
}

// OfficialWeight returns the blend weight of the official price.
func (c *Config) OfficialWeight() decimal.Decimal {
	return decimalOr(c.RefPrice.OfficialWeight, decimal.RequireFromString("0.7"))
}

// HintWeight returns the blend weight of the book mid hint.
func (c *Config) HintWeight() decimal.Decimal {
	return decimalOr(c.RefPrice.HintWeight, decimal.RequireFromString("0.3"))
}

// MeanReversion returns the per-tick reversion speed.
func (c *Config) MeanReversion() decimal.Decimal {
	return decimalOr(c.RefPrice.MeanReversion, decimal.RequireFromString("0.1"))
}

// overrideWithEnv replaces settings when the environment provides them.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("ALPHABOOK_PROVIDER_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if name := os.Getenv("ALPHABOOK_PROVIDER"); name != "" {
		cfg.Provider.Name = name
	}
	if addr := os.Getenv("ALPHABOOK_HTTP_ADDR"); addr != "" {
		cfg.HTTP.Addr = addr
	}
}
