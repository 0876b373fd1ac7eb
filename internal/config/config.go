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
	HTTP       HTTPConfig       `mapstructure:"http"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Pricing    PricingConfig    `mapstructure:"pricing"`
	Volatility VolatilityConfig `mapstructure:"volatility"`
	Deals      DealsConfig      `mapstructure:"deals"`
	Feeds      FeedsConfig      `mapstructure:"feeds"`
	P2P        P2PConfig        `mapstructure:"p2p"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Health     HealthConfig     `mapstructure:"health"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// HTTPConfig holds the REST listener settings.
type HTTPConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// DatabaseConfig selects the persistence driver. An empty DSN with driver
// "memory" keeps everything in process.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres | memory
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// UsesPostgres reports whether the postgres driver is configured.
func (c DatabaseConfig) UsesPostgres() bool {
	return c.Driver == "postgres"
}

// PricingConfig holds fixed-spread pricing settings.
type PricingConfig struct {
	// Spot rates older than this lose confidence.
	FreshnessWindow time.Duration `mapstructure:"freshness_window"`
	// MaxStalenessPenalty caps the confidence lost to staleness.
	MaxStalenessPenalty int `mapstructure:"max_staleness_penalty"`
	// Default spread used when no config row matches.
	DefaultBaseSpread float64       `mapstructure:"default_base_spread"`
	DefaultMinSpread  float64       `mapstructure:"default_min_spread"`
	DefaultMaxSpread  float64       `mapstructure:"default_max_spread"`
	ConfigCacheTTL    time.Duration `mapstructure:"config_cache_ttl"`
	// P2P indicative rates below this data quality add a warning.
	MinP2PDataQuality int `mapstructure:"min_p2p_data_quality"`
}

// DefaultFixedSpread returns base, min and max spread percents as decimals.
func (c PricingConfig) DefaultFixedSpread() (base, min, max decimal.Decimal) {
	return decimal.NewFromFloat(c.DefaultBaseSpread),
		decimal.NewFromFloat(c.DefaultMinSpread),
		decimal.NewFromFloat(c.DefaultMaxSpread)
}

// VolatilityConfig holds analyzer settings and the system default config.
type VolatilityConfig struct {
	MinDataPoints       int     `mapstructure:"min_data_points"`
	FullConfidencePoint int     `mapstructure:"full_confidence_points"`
	DefaultWindowHours  int     `mapstructure:"default_window_hours"`
	BaseSpread          float64 `mapstructure:"base_spread"`
	Multiplier          float64 `mapstructure:"multiplier"`
	LowThreshold        float64 `mapstructure:"low_threshold"`
	MediumThreshold     float64 `mapstructure:"medium_threshold"`
	HighThreshold       float64 `mapstructure:"high_threshold"`
	CriticalThreshold   float64 `mapstructure:"critical_threshold"`
	MaxSpread           float64 `mapstructure:"max_spread"`
	SmoothingFactor     float64 `mapstructure:"smoothing_factor"`
}

// DealsConfig holds orchestrator settings.
type DealsConfig struct {
	ExecutionTimeout      time.Duration `mapstructure:"execution_timeout"`
	PollInterval          time.Duration `mapstructure:"poll_interval"`
	MinCounterpartyRating float64       `mapstructure:"min_counterparty_rating"`
	MinCompletedTrades    int           `mapstructure:"min_completed_trades"`
	PaymentMethod         string        `mapstructure:"payment_method"`
	// Partners are upserted into the partner directory at startup.
	Partners []PartnerSeed `mapstructure:"partners"`
}

// PartnerSeed is a partner entry loaded from configuration.
type PartnerSeed struct {
	ID        string `mapstructure:"id"`
	Name      string `mapstructure:"name"`
	Inactive  bool   `mapstructure:"inactive"`
	MinAmount string `mapstructure:"min_amount"`
	MaxAmount string `mapstructure:"max_amount"`
}

// FeedsConfig holds market data endpoints.
type FeedsConfig struct {
	SpotBaseURL       string            `mapstructure:"spot_base_url"`
	P2PBaseURL        string            `mapstructure:"p2p_base_url"`
	Timeout           time.Duration     `mapstructure:"timeout"`
	CacheTTL          time.Duration     `mapstructure:"cache_ttl"`
	RequestsPerMinute int               `mapstructure:"requests_per_minute"`
	MinOffers         int               `mapstructure:"min_offers"`
	Static            map[string]string `mapstructure:"static"` // symbol -> price, used when no URL is set
}

// P2PConfig holds the P2P venue connection.
type P2PConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	WebSocketURL      string        `mapstructure:"websocket_url"`
	APIKey            string        `mapstructure:"api_key"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	// Simulate replaces the venue with an in-process paper venue.
	Simulate      bool          `mapstructure:"simulate"`
	SimulateDelay time.Duration `mapstructure:"simulate_delay"`
}

// KafkaConfig holds the notification topic.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// NotifyConfig holds dispatcher settings.
type NotifyConfig struct {
	BufferSize int  `mapstructure:"buffer_size"`
	WebSocket  bool `mapstructure:"websocket"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	Provider     string `mapstructure:"provider"` // zipkin | otlp-grpc | otlp-http | console
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string `mapstructure:"otlp_headers"`
}

// HealthConfig holds the probe listener.
type HealthConfig struct {
	Port int `mapstructure:"port"`
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
	v.SetEnvPrefix("FXD")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
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
	v.BindEnv("app.name", "FXD_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "FXD_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "FXD_LOG_LEVEL", "LOG_LEVEL")

	// HTTP
	v.BindEnv("http.port", "FXD_HTTP_PORT", "PORT")

	// Database
	v.BindEnv("database.driver", "FXD_DB_DRIVER")
	v.BindEnv("database.dsn", "FXD_DB_DSN", "DATABASE_URL")
	v.BindEnv("database.auto_migrate", "FXD_DB_AUTO_MIGRATE")

	// Feeds
	v.BindEnv("feeds.spot_base_url", "FXD_SPOT_URL", "SPOT_FEED_URL")
	v.BindEnv("feeds.p2p_base_url", "FXD_P2P_FEED_URL", "P2P_FEED_URL")

	// P2P venue
	v.BindEnv("p2p.base_url", "FXD_P2P_URL", "P2P_VENUE_URL")
	v.BindEnv("p2p.websocket_url", "FXD_P2P_WS_URL", "P2P_VENUE_WS_URL")
	v.BindEnv("p2p.api_key", "FXD_P2P_API_KEY", "P2P_API_KEY")
	v.BindEnv("p2p.simulate", "FXD_P2P_SIMULATE")

	// Deals
	v.BindEnv("deals.execution_timeout", "FXD_EXECUTION_TIMEOUT")

	// Kafka
	v.BindEnv("kafka.enabled", "FXD_KAFKA_ENABLED")
	v.BindEnv("kafka.brokers", "FXD_KAFKA_BROKERS", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "FXD_KAFKA_TOPIC")

	// Telemetry
	v.BindEnv("telemetry.enabled", "FXD_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "FXD_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.provider", "FXD_OTEL_PROVIDER")
	v.BindEnv("telemetry.otlp_endpoint", "FXD_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.otlp_headers", "FXD_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "fxdesk")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// HTTP defaults
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.shutdown_timeout", "15s")
	v.SetDefault("http.allowed_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", false)

	// Pricing defaults
	v.SetDefault("pricing.freshness_window", "60s")
	v.SetDefault("pricing.max_staleness_penalty", 30)
	v.SetDefault("pricing.default_base_spread", 0.5)
	v.SetDefault("pricing.default_min_spread", 0.1)
	v.SetDefault("pricing.default_max_spread", 2.0)
	v.SetDefault("pricing.config_cache_ttl", "30s")
	v.SetDefault("pricing.min_p2p_data_quality", 50)

	// Volatility defaults
	v.SetDefault("volatility.min_data_points", 10)
	v.SetDefault("volatility.full_confidence_points", 50)
	v.SetDefault("volatility.default_window_hours", 24)
	v.SetDefault("volatility.base_spread", 0.5)
	v.SetDefault("volatility.multiplier", 1.5)
	v.SetDefault("volatility.low_threshold", 5)
	v.SetDefault("volatility.medium_threshold", 10)
	v.SetDefault("volatility.high_threshold", 15)
	v.SetDefault("volatility.critical_threshold", 20)
	v.SetDefault("volatility.max_spread", 3.0)
	v.SetDefault("volatility.smoothing_factor", 0.7)

	// Deals defaults
	v.SetDefault("deals.execution_timeout", "5m")
	v.SetDefault("deals.poll_interval", "5s")
	v.SetDefault("deals.partners", []map[string]any{
		{"id": "demo", "name": "Demo Partner", "min_amount": "10", "max_amount": "1000000"},
	})
	v.SetDefault("deals.min_counterparty_rating", 4.5)
	v.SetDefault("deals.min_completed_trades", 50)
	v.SetDefault("deals.payment_method", "BANK_TRANSFER")

	// Feeds defaults
	v.SetDefault("feeds.timeout", "10s")
	v.SetDefault("feeds.cache_ttl", "5s")
	v.SetDefault("feeds.requests_per_minute", 600)
	v.SetDefault("feeds.min_offers", 3)

	// P2P defaults
	v.SetDefault("p2p.timeout", "15s")
	v.SetDefault("p2p.requests_per_minute", 300)
	v.SetDefault("p2p.simulate", true)
	v.SetDefault("p2p.simulate_delay", "2s")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "fxdesk.deal-events")
	v.SetDefault("kafka.batch_timeout", "10ms")
	v.SetDefault("kafka.write_timeout", "5s")

	// Notify defaults
	v.SetDefault("notify.buffer_size", 256)
	v.SetDefault("notify.websocket", true)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "fxdesk")
	v.SetDefault("telemetry.provider", "zipkin")

	// Health defaults
	v.SetDefault("health.port", 8081)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported database.driver: %q", c.Database.Driver)
	}

	base, lo, hi := c.Pricing.DefaultFixedSpread()
	if lo.IsNegative() || lo.GreaterThan(base) || base.GreaterThan(hi) {
		return fmt.Errorf("pricing default spread must satisfy 0 <= min <= base <= max")
	}

	if c.Volatility.SmoothingFactor < 0 || c.Volatility.SmoothingFactor > 1 {
		return fmt.Errorf("volatility.smoothing_factor must be within [0,1]")
	}
	if !(c.Volatility.LowThreshold <= c.Volatility.MediumThreshold &&
		c.Volatility.MediumThreshold <= c.Volatility.HighThreshold &&
		c.Volatility.HighThreshold <= c.Volatility.CriticalThreshold) {
		return fmt.Errorf("volatility thresholds must be ascending")
	}
	if c.Volatility.MinDataPoints < 1 {
		return fmt.Errorf("volatility.min_data_points must be positive")
	}

	if c.Deals.ExecutionTimeout <= 0 {
		return fmt.Errorf("deals.execution_timeout must be positive")
	}
	for i, p := range c.Deals.Partners {
		if p.ID == "" {
			return fmt.Errorf("deals.partners[%d].id is required", i)
		}
		for _, amount := range []string{p.MinAmount, p.MaxAmount} {
			if amount == "" {
				continue
			}
			if _, err := decimal.NewFromString(amount); err != nil {
				return fmt.Errorf("deals.partners[%d]: invalid amount %q", i, amount)
			}
		}
	}

	if !c.P2P.Simulate && c.P2P.BaseURL == "" {
		return fmt.Errorf("p2p.base_url is required unless p2p.simulate is set")
	}

	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("kafka.brokers and kafka.topic are required when kafka is enabled")
	}

	return nil
}
