package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the adapter.
type Config struct {
	Server    Server    `mapstructure:"server"`
	Terminal  Terminal  `mapstructure:"terminal"`
	Stream    Stream    `mapstructure:"stream"`
	Reconcile Reconcile `mapstructure:"reconcile"`
	Logger    Logger    `mapstructure:"logger"`
	Database  Database  `mapstructure:"database"`
}

// Server holds the configuration for the HTTP server.
type Server struct {
	Port   int    `mapstructure:"port"`
	ApiKey string `mapstructure:"api_key"`
}

// Terminal holds the configuration for the MT5 terminal bridge.
type Terminal struct {
	BaseURL        string  `mapstructure:"base_url"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// Stream holds the configuration for the closed-trade transaction stream.
type Stream struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
	// LookbackStart is the inclusive start of the order history window,
	// RFC3339. Orders completed before this instant are never aggregated.
	LookbackStart string `mapstructure:"lookback_start"`
	BufferSize    int    `mapstructure:"buffer_size"`
}

// Reconcile holds the configuration for the trade reconciliation engine.
type Reconcile struct {
	// StrictOrphans makes aggregation fail on order buckets with no
	// recognised buy or sell side instead of logging and skipping them.
	StrictOrphans bool `mapstructure:"strict_orphans"`
}

// Database holds the configuration for the account store.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("server.port", 5000)
	viper.SetDefault("terminal.rate_limit", 20)      // requests per second
	viper.SetDefault("terminal.rate_limit_burst", 5) // burst size
	viper.SetDefault("terminal.timeout_seconds", 10)
	viper.SetDefault("stream.interval_seconds", 1)
	viper.SetDefault("stream.lookback_start", "2024-01-01T00:00:00Z")
	viper.SetDefault("stream.buffer_size", 64)
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "json")
	viper.SetDefault("database.dsn", "accounts.db")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
