package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "github.com/rzzdr/actuarial-risk-core/pkg/utils/errors"
)

// Config for the whole application
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	API        APIConfig        `mapstructure:"api"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Pricing    PricingConfig    `mapstructure:"pricing"`
	Syndicate  SyndicateConfig  `mapstructure:"syndicate"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// General application configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// Configuration for the API server
type APIConfig struct {
	Host                 string        `mapstructure:"host"`
	Port                 int           `mapstructure:"port"`
	ReadTimeout          time.Duration `mapstructure:"read_timeout"`
	WriteTimeout         time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout      time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins       []string      `mapstructure:"allowed_origins"`
	MaxCopulaSimulations int           `mapstructure:"max_copula_simulations"`
	MaxCopulaVariables   int           `mapstructure:"max_copula_variables"`
	MaxCopulaValues      int           `mapstructure:"max_copula_values"`
	SimulationRate       float64       `mapstructure:"simulation_rate"`
	SimulationBurst      int           `mapstructure:"simulation_burst"`
}

// Configuration for the aggregate loss simulator
type SimulationConfig struct {
	Workers           int     `mapstructure:"workers"`
	DefaultTrials     int     `mapstructure:"default_trials"`
	MaxTrials         int     `mapstructure:"max_trials"`
	CheckInterval     int     `mapstructure:"check_interval"`
	MaxClaimsPerTrial float64 `mapstructure:"max_claims_per_trial"`
}

// Configuration for the rating model. Target loss ratio keys are lowercased
// by viper.
type PricingConfig struct {
	ILFBaseLimit           float64            `mapstructure:"ilf_base_limit"`
	ILFZ                   float64            `mapstructure:"ilf_z"`
	FixedFactor            float64            `mapstructure:"fixed_factor"`
	NoADRID                string             `mapstructure:"no_adr_id"`
	DefaultTargetLossRatio float64            `mapstructure:"default_target_loss_ratio"`
	TargetLossRatios       map[string]float64 `mapstructure:"target_loss_ratios"`
	RateTablesPath         string             `mapstructure:"rate_tables_path"`
}

// Configuration for the syndicate quartile model
type SyndicateConfig struct {
	DefaultSimulations  int     `mapstructure:"default_simulations"`
	MaxSimulations      int     `mapstructure:"max_simulations"`
	DefaultAlpha        float64 `mapstructure:"default_alpha"`
	DefaultNetThreshold float64 `mapstructure:"default_net_threshold"`
	DefaultLookback     int     `mapstructure:"default_lookback"`
	CurrentYear         int     `mapstructure:"current_year"`
}

// Configuration for the quartile model cache
type CacheConfig struct {
	Backend    string        `mapstructure:"backend"`
	TTL        time.Duration `mapstructure:"ttl"`
	MaxEntries int           `mapstructure:"max_entries"`
	Redis      RedisConfig   `mapstructure:"redis"`
	Breaker    BreakerConfig `mapstructure:"breaker"`
}

// Circuit breaker settings for the remote cache
type BreakerConfig struct {
	MaxFailures int           `mapstructure:"max_failures"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Redis connection settings
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// Configuration for Kafka
type KafkaConfig struct {
	Enabled     bool              `mapstructure:"enabled"`
	Brokers     []string          `mapstructure:"brokers"`
	GroupID     string            `mapstructure:"group_id"`
	StartOffset string            `mapstructure:"start_offset"`
	Topics      KafkaTopicsConfig `mapstructure:"topics"`
	Retry       KafkaRetryConfig  `mapstructure:"retry"`
}

// Redelivery of messages whose handler failed
type KafkaRetryConfig struct {
	MaxAttempts     uint          `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

// Kafka topics configuration
type KafkaTopicsConfig struct {
	PricingRequests     string `mapstructure:"pricing_requests"`
	Quotes              string `mapstructure:"quotes"`
	SimulationSummaries string `mapstructure:"simulation_summaries"`
	// empty disables dead-lettering
	DeadLetter string `mapstructure:"dead_letter"`
}

// Configuration for metrics
type MetricsConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// Configuration for Prometheus metrics
type PrometheusConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load reads defaults, an optional config file and ACTUARIAL_ environment overrides
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path := os.Getenv("ACTUARIAL_CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, apperrors.Wrap(err, "failed to read config file")
		}
	}

	v.SetEnvPrefix("ACTUARIAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal config")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the settings that have no safe fallback
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return apperrors.Validation("cache.redis.addr is required for the redis backend")
		}
	default:
		return apperrors.Validationf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return apperrors.Validation("kafka.brokers is required when kafka is enabled")
	}
	if c.Simulation.MaxTrials < c.Simulation.DefaultTrials {
		return apperrors.Validationf("simulation.max_trials %d is below default_trials %d",
			c.Simulation.MaxTrials, c.Simulation.DefaultTrials)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "actuarial-risk-core")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.read_timeout", "10s")
	v.SetDefault("api.write_timeout", "60s")
	v.SetDefault("api.shutdown_timeout", "30s")
	v.SetDefault("api.allowed_origins", []string{"*"})
	v.SetDefault("api.max_copula_simulations", 100000)
	v.SetDefault("api.max_copula_variables", 50)
	v.SetDefault("api.max_copula_values", 2000000)
	v.SetDefault("api.simulation_rate", 0)
	v.SetDefault("api.simulation_burst", 4)

	// Simulation defaults
	v.SetDefault("simulation.workers", 4)
	v.SetDefault("simulation.default_trials", 10000)
	v.SetDefault("simulation.max_trials", 5000000)
	v.SetDefault("simulation.check_interval", 1024)
	v.SetDefault("simulation.max_claims_per_trial", 100000.0)

	// Pricing defaults
	v.SetDefault("pricing.ilf_base_limit", 1e6)
	v.SetDefault("pricing.ilf_z", 1.9704)
	v.SetDefault("pricing.fixed_factor", 1.1)
	v.SetDefault("pricing.no_adr_id", "No ADR")
	v.SetDefault("pricing.default_target_loss_ratio", 0.731)
	v.SetDefault("pricing.target_loss_ratios", map[string]float64{})
	v.SetDefault("pricing.rate_tables_path", "")

	// Syndicate defaults
	v.SetDefault("syndicate.default_simulations", 10000)
	v.SetDefault("syndicate.max_simulations", 200000)
	v.SetDefault("syndicate.default_alpha", 2.0)
	v.SetDefault("syndicate.default_net_threshold", 20.0)
	v.SetDefault("syndicate.default_lookback", 10)
	v.SetDefault("syndicate.current_year", 0)

	// Cache defaults
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.max_entries", 256)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.prefix", "actuarial:quartiles")
	v.SetDefault("cache.breaker.max_failures", 5)
	v.SetDefault("cache.breaker.timeout", "30s")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.group_id", "actuarial-risk-engine")
	v.SetDefault("kafka.start_offset", "earliest")
	v.SetDefault("kafka.topics.pricing_requests", "pricing.requests")
	v.SetDefault("kafka.topics.quotes", "pricing.quotes")
	v.SetDefault("kafka.topics.simulation_summaries", "aggregate.summaries")
	v.SetDefault("kafka.topics.dead_letter", "pricing.requests.dlq")
	v.SetDefault("kafka.retry.max_attempts", 5)
	v.SetDefault("kafka.retry.initial_interval", "200ms")
	v.SetDefault("kafka.retry.max_interval", "5s")

	// Metrics defaults
	v.SetDefault("metrics.prometheus.enabled", true)
	v.SetDefault("metrics.prometheus.port", 9090)
}
