// Package config loads simtraderd's configuration from a TOML file with
// environment-variable overrides, following the teacher's viper-based
// convention.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/wyfcoding/simtrading/internal/platform/logging"
)

// Config is the root configuration for the simtraderd binary.
type Config struct {
	ServiceName string `mapstructure:"service_name"`
	Environment string `mapstructure:"environment"`

	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Logger   logging.Config `mapstructure:"logger"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Trading  TradingConfig  `mapstructure:"trading"`
}

type HTTPConfig struct {
	Host         string `mapstructure:"host" default:"0.0.0.0"`
	Port         int    `mapstructure:"port" default:"8080"`
	ReadTimeout  int    `mapstructure:"read_timeout" default:"30"`
	WriteTimeout int    `mapstructure:"write_timeout" default:"30"`
}

type DatabaseConfig struct {
	Driver             string `mapstructure:"driver" default:"mysql"`
	DSN                string `mapstructure:"dsn"`
	MaxOpenConns       int    `mapstructure:"max_open_conns" default:"25"`
	MaxIdleConns       int    `mapstructure:"max_idle_conns" default:"5"`
	ConnMaxLifetime    int    `mapstructure:"conn_max_lifetime" default:"300"`
	LogEnabled         bool   `mapstructure:"log_enabled" default:"false"`
	SlowQueryThreshold int    `mapstructure:"slow_query_threshold" default:"1000"`
}

type RedisConfig struct {
	Host         string `mapstructure:"host" default:"127.0.0.1"`
	Port         int    `mapstructure:"port" default:"6379"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db" default:"0"`
	MaxPoolSize  int    `mapstructure:"max_pool_size" default:"50"`
	ConnTimeout  int    `mapstructure:"conn_timeout" default:"5"`
	ReadTimeout  int    `mapstructure:"read_timeout" default:"3"`
	WriteTimeout int    `mapstructure:"write_timeout" default:"3"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	GroupID        string   `mapstructure:"group_id" default:"simtrading-matching"`
	SessionTimeout int      `mapstructure:"session_timeout" default:"10"`
	MaxRetries     int      `mapstructure:"max_retries" default:"3"`
	RetryBackoffMS int      `mapstructure:"retry_backoff_ms" default:"100"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" default:"true"`
	Path    string `mapstructure:"path" default:"/metrics"`
}

// TradingConfig carries the configuration surface spec.md §9 requires the
// implementer to expose.
type TradingConfig struct {
	InitialCashMinorUnits   int64         `mapstructure:"initial_cash_minor_units" default:"1000000"`
	MaxQtyPerOrder          int64         `mapstructure:"max_qty_per_order" default:"10000"`
	MaxPriceMinorUnits      int64         `mapstructure:"max_price_minor_units" default:"10000000"`
	DefaultPriceMinorUnits  int64         `mapstructure:"default_price_minor_units" default:"50000"`
	FillRateFloor           float64       `mapstructure:"fill_rate_floor" default:"0.65"`
	FillRateCeiling         float64       `mapstructure:"fill_rate_ceiling" default:"0.75"`
	RetryDelay              time.Duration `mapstructure:"retry_delay" default:"3m"`
	RetryMax                int           `mapstructure:"retry_max" default:"5"`
	FreshnessWindow         time.Duration `mapstructure:"freshness_window" default:"5m"`
	MarketOpen              string        `mapstructure:"market_open" default:"09:00"`
	MarketClose             string        `mapstructure:"market_close" default:"15:30"`
	MarketTimezone          string        `mapstructure:"market_timezone" default:"Asia/Seoul"`
	MatchingWorkerCount     int           `mapstructure:"matching_worker_count" default:"3"`
	RetryDispatcherCount    int           `mapstructure:"retry_dispatcher_count" default:"1"`
	CacheCleanupInterval    time.Duration `mapstructure:"cache_cleanup_interval" default:"1h"`
}

// Load reads configPath (TOML) into cfg, applying environment overrides of
// the form SIMTRADING_SECTION_KEY, and the defaults set in applyDefaults
// (which mirror the `default:` struct tags; the tags themselves are not
// read) for unset values.
func Load(configPath string, cfg *Config) error {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	v.SetEnvPrefix("SIMTRADING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	applyDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "simtraderd")
	v.SetDefault("environment", "dev")
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 30)
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.log_enabled", false)
	v.SetDefault("database.slow_query_threshold", 1000)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_pool_size", 50)
	v.SetDefault("redis.conn_timeout", 5)
	v.SetDefault("redis.read_timeout", 3)
	v.SetDefault("redis.write_timeout", 3)
	v.SetDefault("kafka.group_id", "simtrading-matching")
	v.SetDefault("kafka.session_timeout", 10)
	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.retry_backoff_ms", 100)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/app.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.with_caller", true)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("trading.initial_cash_minor_units", 1_000_000)
	v.SetDefault("trading.max_qty_per_order", 10_000)
	v.SetDefault("trading.max_price_minor_units", 10_000_000)
	v.SetDefault("trading.default_price_minor_units", 50_000)
	v.SetDefault("trading.fill_rate_floor", 0.65)
	v.SetDefault("trading.fill_rate_ceiling", 0.75)
	v.SetDefault("trading.retry_delay", "3m")
	v.SetDefault("trading.retry_max", 5)
	v.SetDefault("trading.freshness_window", "5m")
	v.SetDefault("trading.market_open", "09:00")
	v.SetDefault("trading.market_close", "15:30")
	v.SetDefault("trading.market_timezone", "Asia/Seoul")
	v.SetDefault("trading.matching_worker_count", 3)
	v.SetDefault("trading.retry_dispatcher_count", 1)
	v.SetDefault("trading.cache_cleanup_interval", "1h")
}
