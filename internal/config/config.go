// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Market    MarketConfig    `mapstructure:"market"`
	Exchanges ExchangesConfig `mapstructure:"exchanges"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Health    HealthConfig    `mapstructure:"health"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// MarketConfig holds the market selection.
type MarketConfig struct {
	// Symbol is passed to each exchange verbatim; casing is exchange-specific
	// (Binance and Bitstamp both expect lowercase, e.g. "ethbtc").
	Symbol string `mapstructure:"symbol"`
}

// ExchangesConfig holds outbound websocket settings shared by all feeds.
type ExchangesConfig struct {
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	BinanceURL     string        `mapstructure:"binance_url"`
	BitstampURL    string        `mapstructure:"bitstamp_url"`
}

// StreamConfig holds the subscriber-facing stream server settings.
type StreamConfig struct {
	Address              string `mapstructure:"address"`
	MaxSubscribersPerSec int    `mapstructure:"max_subscribers_per_sec"`
	TUIMode              bool   `mapstructure:"-"` // Set at runtime, not from config file
}

// HealthConfig holds the health endpoint settings.
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
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

	// Environment variables
	v.SetEnvPrefix("SPREADGET")
	v.AutomaticEnv()

	// Bind env vars to config keys
	bindEnvVars(v)

	// Set defaults
	setDefaults(v)

	// Read config file (optional)
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
	v.BindEnv("app.name", "SPREADGET_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "SPREADGET_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "SPREADGET_LOG_LEVEL", "LOG_LEVEL")

	// Market
	v.BindEnv("market.symbol", "SPREADGET_SYMBOL")

	// Exchanges
	v.BindEnv("exchanges.binance_url", "SPREADGET_BINANCE_WS_URL", "BINANCE_WS_URL")
	v.BindEnv("exchanges.bitstamp_url", "SPREADGET_BITSTAMP_WS_URL", "BITSTAMP_WS_URL")

	// Stream
	v.BindEnv("stream.address", "SPREADGET_STREAM_ADDRESS")

	// Telemetry
	v.BindEnv("telemetry.enabled", "SPREADGET_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "SPREADGET_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "SPREADGET_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "spreadget")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Market defaults
	v.SetDefault("market.symbol", "ethbtc")

	// Exchange defaults
	v.SetDefault("exchanges.connect_timeout", "10s")
	v.SetDefault("exchanges.binance_url", "wss://stream.binance.com:9443")
	v.SetDefault("exchanges.bitstamp_url", "wss://ws.bitstamp.net")

	// Stream defaults
	v.SetDefault("stream.address", "0.0.0.0:54321")
	v.SetDefault("stream.max_subscribers_per_sec", 50)

	// Health defaults
	v.SetDefault("health.port", 8081)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "spreadget")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Market.Symbol == "" {
		return fmt.Errorf("market.symbol is required")
	}
	if c.Exchanges.BinanceURL == "" {
		return fmt.Errorf("exchanges.binance_url is required")
	}
	if c.Exchanges.BitstampURL == "" {
		return fmt.Errorf("exchanges.bitstamp_url is required")
	}
	if c.Exchanges.ConnectTimeout <= 0 {
		return fmt.Errorf("exchanges.connect_timeout must be positive")
	}
	if _, _, err := net.SplitHostPort(c.Stream.Address); err != nil {
		return fmt.Errorf("invalid stream.address %q: %w", c.Stream.Address, err)
	}
	return nil
}
