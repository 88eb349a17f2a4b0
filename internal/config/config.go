// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Venues     VenuesConfig     `mapstructure:"venues"`
	Aggregator AggregatorConfig `mapstructure:"aggregator"`
	Broadcast  BroadcastConfig  `mapstructure:"broadcast"`
	Bridge     BridgeConfig     `mapstructure:"bridge"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// VenuesConfig holds the exchange connection parameters shared by every
// venue adapter and the set of tickers to subscribe across all of them.
type VenuesConfig struct {
	Tickers        []string      `mapstructure:"tickers"` // e.g. ["BTC","ETH","SOL"]
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	BinanceSpotURL string        `mapstructure:"binance_spot_url"`
	BinanceFutURL  string        `mapstructure:"binance_futures_url"`
	BybitSpotURL   string        `mapstructure:"bybit_spot_url"`
	BybitLinearURL string        `mapstructure:"bybit_linear_url"`
	OKXPublicURL   string        `mapstructure:"okx_public_url"`
	OIPollInterval time.Duration `mapstructure:"oi_poll_interval"`
}

// AggregatorConfig holds the derived-state thresholds, environment-
// configurable with documented defaults.
type AggregatorConfig struct {
	SpotLogThreshold       float64 `mapstructure:"spot_log_threshold"`
	WhaleThreshold         float64 `mapstructure:"whale_threshold"`
	MaxWhales              int     `mapstructure:"max_whales"`
	LiqDangerThreshold     float64 `mapstructure:"liq_danger_threshold"`
	LiqDisplayDangerThresh float64 `mapstructure:"liq_display_danger_threshold"`
	MegaWhaleThreshold     float64 `mapstructure:"mega_whale_threshold"`
}

// SpotLogThresholdDecimal returns the spot notional log threshold as decimal.
func (c *AggregatorConfig) SpotLogThresholdDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.SpotLogThreshold)
}

// WhaleThresholdDecimal returns the whale notional threshold as decimal.
func (c *AggregatorConfig) WhaleThresholdDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.WhaleThreshold)
}

// MegaWhaleThresholdDecimal returns the mega-whale notional threshold as decimal.
func (c *AggregatorConfig) MegaWhaleThresholdDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MegaWhaleThreshold)
}

// BroadcastConfig holds the downstream WebSocket server settings.
type BroadcastConfig struct {
	Addr       string `mapstructure:"addr"`        // WS_ADDR
	BufferSize int    `mapstructure:"buffer_size"` // WS_BUFFER_SIZE
}

// BridgeConfig holds the optional external futures bridge client settings.
type BridgeConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URL           string        `mapstructure:"url"` // IBKR_BRIDGE_WS_URL
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables, both under a service-specific prefix and the
	// bare names operators are used to setting, so either works.
	v.SetEnvPrefix("CRYPTOFEED")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "CRYPTOFEED_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "CRYPTOFEED_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "CRYPTOFEED_LOG_LEVEL", "LOG_LEVEL")

	// Venues
	v.BindEnv("venues.tickers", "CRYPTOFEED_TICKERS", "TICKERS")
	v.BindEnv("venues.binance_spot_url", "CRYPTOFEED_BINANCE_SPOT_URL")
	v.BindEnv("venues.binance_futures_url", "CRYPTOFEED_BINANCE_FUTURES_URL")
	v.BindEnv("venues.bybit_spot_url", "CRYPTOFEED_BYBIT_SPOT_URL")
	v.BindEnv("venues.bybit_linear_url", "CRYPTOFEED_BYBIT_LINEAR_URL")
	v.BindEnv("venues.okx_public_url", "CRYPTOFEED_OKX_PUBLIC_URL", "WS_URL")

	// Aggregator thresholds also bind to bare (unprefixed) env vars.
	v.BindEnv("aggregator.spot_log_threshold", "SPOT_LOG_THRESHOLD")
	v.BindEnv("aggregator.whale_threshold", "WHALE_THRESHOLD")
	v.BindEnv("aggregator.max_whales", "MAX_WHALES")
	v.BindEnv("aggregator.liq_danger_threshold", "LIQ_DANGER_THRESHOLD")
	v.BindEnv("aggregator.liq_display_danger_threshold", "LIQ_DISPLAY_DANGER_THRESHOLD")
	v.BindEnv("aggregator.mega_whale_threshold", "MEGA_WHALE_THRESHOLD")

	// Broadcast
	v.BindEnv("broadcast.addr", "WS_ADDR")
	v.BindEnv("broadcast.buffer_size", "WS_BUFFER_SIZE")

	// Bridge
	v.BindEnv("bridge.url", "IBKR_BRIDGE_WS_URL")

	// Telemetry
	v.BindEnv("telemetry.enabled", "CRYPTOFEED_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "CRYPTOFEED_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "CRYPTOFEED_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "cryptofeed")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Venue defaults
	v.SetDefault("venues.tickers", []string{"BTC", "ETH", "SOL"})
	v.SetDefault("venues.initial_backoff", "1s")
	v.SetDefault("venues.max_backoff", "30s")
	v.SetDefault("venues.idle_timeout", "120s")
	v.SetDefault("venues.binance_spot_url", "wss://stream.binance.com:9443")
	v.SetDefault("venues.binance_futures_url", "wss://fstream.binance.com")
	v.SetDefault("venues.bybit_spot_url", "wss://stream.bybit.com/v5/public/spot")
	v.SetDefault("venues.bybit_linear_url", "wss://stream.bybit.com/v5/public/linear")
	v.SetDefault("venues.okx_public_url", "wss://ws.okx.com:8443/ws/v5/public")
	v.SetDefault("venues.oi_poll_interval", "10s")

	// Aggregator defaults — every threshold must have a documented default.
	v.SetDefault("aggregator.spot_log_threshold", 50000.0)
	v.SetDefault("aggregator.whale_threshold", 100000.0)
	v.SetDefault("aggregator.max_whales", 20)
	v.SetDefault("aggregator.liq_danger_threshold", 1000000.0)
	v.SetDefault("aggregator.liq_display_danger_threshold", 500000.0)
	v.SetDefault("aggregator.mega_whale_threshold", 1000000.0)

	// Broadcast defaults
	v.SetDefault("broadcast.addr", "0.0.0.0:9001")
	v.SetDefault("broadcast.buffer_size", 10000)

	// Bridge defaults
	v.SetDefault("bridge.enabled", false)
	v.SetDefault("bridge.url", "ws://127.0.0.1:8765/ws")
	v.SetDefault("bridge.reconnect_wait", "5s")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "cryptofeed")
	v.SetDefault("telemetry.prometheus_port", 2223)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.Venues.Tickers) == 0 {
		return fmt.Errorf("venues.tickers cannot be empty")
	}
	if c.Broadcast.Addr == "" {
		return fmt.Errorf("broadcast.addr is required")
	}
	if c.Broadcast.BufferSize <= 0 {
		return fmt.Errorf("broadcast.buffer_size must be positive")
	}
	if c.Bridge.Enabled && c.Bridge.URL == "" {
		return fmt.Errorf("bridge.url is required when bridge.enabled is true")
	}
	return nil
}
