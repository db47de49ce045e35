// Package config loads the application configuration from a YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	Chain   string  `mapstructure:"chain"`
	Feed    Feed    `mapstructure:"feed"`
	RPC     RPC     `mapstructure:"rpc"`
	Signal  Signal  `mapstructure:"signal"`
	Pricing Pricing `mapstructure:"pricing"`
	Monitor Monitor `mapstructure:"monitor"`
	Storage Storage `mapstructure:"storage"`
	Metrics Metrics `mapstructure:"metrics"`
}

// Feed configures the discovery feed client.
type Feed struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// RPC configures the EVM JSON-RPC client.
type RPC struct {
	Endpoints  []string      `mapstructure:"endpoints"`
	Factory    string        `mapstructure:"factory"`
	Router     string        `mapstructure:"router"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// Signal configures the social signal classifier.
type Signal struct {
	AllowedHandles      []string      `mapstructure:"allowed_handles"`
	MaxAge              time.Duration `mapstructure:"max_age"`
	RejectFutureSignals bool          `mapstructure:"reject_future_signals"`
}

// Pricing configures the price oracle.
type Pricing struct {
	NativeToken    string        `mapstructure:"native_token"`
	USDToken       string        `mapstructure:"usd_token"`
	NativeDecimals int           `mapstructure:"native_decimals"`
	USDDecimals    int           `mapstructure:"usd_decimals"`
	Protocol       string        `mapstructure:"protocol"`
	NativeTTL      time.Duration `mapstructure:"native_ttl"`
	StaleAfter     time.Duration `mapstructure:"stale_after"`
}

// Monitor configures the poll cycle runner.
type Monitor struct {
	Interval        time.Duration `mapstructure:"interval"`
	Workers         int           `mapstructure:"workers"`
	MinLiquidityUSD float64       `mapstructure:"min_liquidity_usd"`
}

// Storage configures the persistence backends. Empty DSNs fall back to
// in-memory stores.
type Storage struct {
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	ClickhouseDSN string `mapstructure:"clickhouse_dsn"`
}

// Metrics configures the observability endpoint.
type Metrics struct {
	Addr string `mapstructure:"addr"`
}

// Load reads configuration from path. Environment variables prefixed with
// RADAR_ override file values, e.g. RADAR_STORAGE_POSTGRES_DSN.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("RADAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("chain", "base")

	v.SetDefault("feed.timeout", 15*time.Second)
	v.SetDefault("feed.max_retries", 3)

	v.SetDefault("rpc.timeout", 10*time.Second)
	v.SetDefault("rpc.max_retries", 3)

	v.SetDefault("signal.max_age", 30*time.Second)

	v.SetDefault("pricing.native_token", "0x4200000000000000000000000000000000000006")
	v.SetDefault("pricing.usd_token", "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	v.SetDefault("pricing.native_decimals", 18)
	v.SetDefault("pricing.usd_decimals", 6)
	v.SetDefault("pricing.protocol", "aerodrome")
	v.SetDefault("pricing.native_ttl", 30*time.Second)
	v.SetDefault("pricing.stale_after", 10*time.Minute)

	v.SetDefault("monitor.interval", 30*time.Second)
	v.SetDefault("monitor.workers", 8)

	v.SetDefault("metrics.addr", ":9090")
}

func (c *Config) validate() error {
	if c.Feed.BaseURL == "" {
		return fmt.Errorf("feed.base_url is required")
	}
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be positive")
	}
	if c.Monitor.Workers <= 0 {
		return fmt.Errorf("monitor.workers must be positive")
	}
	return nil
}
