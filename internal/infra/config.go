package infra

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultRestURL is the public market-data REST endpoint.
	DefaultRestURL = "https://api-pub.bitfinex.com/v2/"
	// DefaultWSURL is the public market-data WebSocket endpoint.
	DefaultWSURL = "wss://api-pub.bitfinex.com/ws/2"

	defaultTickerRetries  = 3
	defaultTickerDelayMS  = 1000
	defaultFrameQueueSize = 1024
)

// Config holds the full application configuration, loaded from YAML with
// environment overrides applied afterwards.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	API struct {
		Bitfinex struct {
			RestURL            string `yaml:"rest_url"`
			WSURL              string `yaml:"ws_url"`
			TickerRetries      int    `yaml:"ticker_retries"`
			TickerRetryDelayMS int    `yaml:"ticker_retry_delay_ms"`
			FrameQueueSize     int    `yaml:"frame_queue_size"`
			Reconnect          bool   `yaml:"reconnect"`
		} `yaml:"bitfinex"`
	} `yaml:"api"`

	Portfolio struct {
		Balances         map[string]decimal.Decimal `yaml:"balances"`
		TargetCurrencies []string                   `yaml:"target_currencies"`
	} `yaml:"portfolio"`

	Subscriptions struct {
		Trades  []string `yaml:"trades"`
		Candles []struct {
			Symbol    string `yaml:"symbol"`
			Timeframe string `yaml:"timeframe"`
		} `yaml:"candles"`
	} `yaml:"subscriptions"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file, applies environment
// overrides and defaults, and validates the result.
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
	bfx := &c.API.Bitfinex
	if bfx.RestURL == "" {
		bfx.RestURL = DefaultRestURL
	}
	if bfx.WSURL == "" {
		bfx.WSURL = DefaultWSURL
	}
	if bfx.TickerRetries <= 0 {
		bfx.TickerRetries = defaultTickerRetries
	}
	if bfx.TickerRetryDelayMS <= 0 {
		bfx.TickerRetryDelayMS = defaultTickerDelayMS
	}
	if bfx.FrameQueueSize <= 0 {
		bfx.FrameQueueSize = defaultFrameQueueSize
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	bfx := c.API.Bitfinex
	if !strings.HasPrefix(bfx.RestURL, "http://") && !strings.HasPrefix(bfx.RestURL, "https://") {
		return fmt.Errorf("invalid REST URL: %s", bfx.RestURL)
	}
	if !strings.HasPrefix(bfx.WSURL, "ws://") && !strings.HasPrefix(bfx.WSURL, "wss://") {
		return fmt.Errorf("invalid WS URL: %s", bfx.WSURL)
	}

	if len(c.Portfolio.TargetCurrencies) == 0 {
		return fmt.Errorf("at least one target currency is required")
	}
	for currency, qty := range c.Portfolio.Balances {
		if currency == "" {
			return fmt.Errorf("balance with empty currency code")
		}
		if qty.IsNegative() {
			return fmt.Errorf("negative balance for %s: %s", currency, qty)
		}
	}

	return nil
}

// overrideWithEnv replaces endpoint settings when environment variables are
// present, which keeps test and staging targets out of the config file.
func overrideWithEnv(cfg *Config) {
	if url := os.Getenv("FINEX_REST_URL"); url != "" {
		cfg.API.Bitfinex.RestURL = url
	}
	if url := os.Getenv("FINEX_WS_URL"); url != "" {
		cfg.API.Bitfinex.WSURL = url
	}
}
