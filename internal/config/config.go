package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Upbit    Upbit    `mapstructure:"upbit"`
	Trading  Trading  `mapstructure:"trading"`
	Logger   Logger   `mapstructure:"logger"`
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
	Secrets  Secrets  `mapstructure:"secrets"`
}

// Upbit holds the configuration for the Upbit REST API.
type Upbit struct {
	BaseURL        string  `mapstructure:"base_url"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// Server holds the configuration for the JSON API server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Secrets holds the location of the symmetric key used to encrypt stored
// exchange credentials.
type Secrets struct {
	KeyFile string `mapstructure:"key_file"`
}

// Trading holds the configuration for the auto-trading loop.
type Trading struct {
	TickInterval    int     `mapstructure:"tick_interval"` // seconds between cycles
	QuoteCurrency   string  `mapstructure:"quote_currency"`
	ScanCount       int     `mapstructure:"scan_count"`  // markets inspected for volume ranking
	TopMarketCount  int     `mapstructure:"top_markets"` // candidates per cycle
	CandleInterval  string  `mapstructure:"candle_interval"`
	CandleCount     int     `mapstructure:"candle_count"`
	FeeRate         float64 `mapstructure:"fee_rate"`
	MaxParallelUser int     `mapstructure:"max_parallel_users"`
	DefaultStrategy string  `mapstructure:"default_strategy"`
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
	viper.SetDefault("upbit.base_url", "https://api.upbit.com")
	viper.SetDefault("upbit.rate_limit", 8) // requests per second
	viper.SetDefault("upbit.rate_limit_burst", 3)
	viper.SetDefault("upbit.timeout_seconds", 10)
	viper.SetDefault("trading.tick_interval", 600)
	viper.SetDefault("trading.quote_currency", "KRW")
	viper.SetDefault("trading.scan_count", 30)
	viper.SetDefault("trading.top_markets", 5)
	viper.SetDefault("trading.candle_interval", "day")
	viper.SetDefault("trading.candle_count", 30)
	viper.SetDefault("trading.fee_rate", 0.0005)
	viper.SetDefault("trading.max_parallel_users", 4)
	viper.SetDefault("trading.default_strategy", "rsi_oversold")
	viper.SetDefault("secrets.key_file", "secure/encryption.key")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
