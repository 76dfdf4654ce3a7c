package config

import (
	"fmt"
	"time"

	"github.com/quangdang46/talent-passport/shared/env"
	"github.com/quangdang46/talent-passport/shared/messaging"
	"github.com/quangdang46/talent-passport/shared/monitoring"
)

// HTTPConfig holds listener settings
type HTTPConfig struct {
	Addr           string
	AllowedOrigins []string
	RatePerSecond  float64
	Burst          int
	RequestTimeout time.Duration
}

// EnokiConfig holds the upstream sponsor API settings
type EnokiConfig struct {
	APIURL      string
	PrivateKey  string
	Timeout     time.Duration
	MaxFailures uint32
	ResetAfter  time.Duration
}

// QuotaConfig limits sponsorships per sender. A zero limit disables it.
type QuotaConfig struct {
	RedisURL string
	Limit    int
	Window   time.Duration
}

// Config contains configuration for the sponsorship proxy
type Config struct {
	HTTP                   HTTPConfig
	Enoki                  EnokiConfig
	Quota                  QuotaConfig
	Network                string
	AllowedMoveCallTargets []string
	AllowedAddresses       []string
	EnableEvents           bool
	RabbitMQ               messaging.RabbitMQConfig
	Sentry                 monitoring.SentryConfig
	LogLevel               string
	Environment            string
}

// NewConfig creates and loads configuration from environment variables
func NewConfig() *Config {
	environment := env.GetString("ENVIRONMENT", "development")
	return &Config{
		HTTP: HTTPConfig{
			Addr:           env.GetString("SPONSOR_HTTP_ADDR", ":8090"),
			AllowedOrigins: env.GetStringSlice("SPONSOR_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://127.0.0.1:5173"}),
			RatePerSecond:  env.GetFloat("SPONSOR_RATE_PER_SECOND", 2),
			Burst:          env.GetInt("SPONSOR_BURST", 5),
			RequestTimeout: env.GetDuration("SPONSOR_REQUEST_TIMEOUT", 30*time.Second),
		},
		Enoki: EnokiConfig{
			APIURL:      env.GetString("ENOKI_API_URL", "https://api.enoki.mystenlabs.com"),
			PrivateKey:  env.GetString("ENOKI_PRIVATE_KEY", ""),
			Timeout:     env.GetDuration("UPSTREAM_TIMEOUT", 15*time.Second),
			MaxFailures: uint32(env.GetInt("UPSTREAM_MAX_FAILURES", 5)),
			ResetAfter:  env.GetDuration("UPSTREAM_RESET_TIMEOUT", 30*time.Second),
		},
		Quota: QuotaConfig{
			RedisURL: env.GetString("REDIS_URL", ""),
			Limit:    env.GetInt("SPONSOR_SENDER_QUOTA", 0),
			Window:   env.GetDuration("SPONSOR_QUOTA_WINDOW", 24*time.Hour),
		},
		Network:                env.GetString("SUI_NETWORK", "testnet"),
		AllowedMoveCallTargets: env.GetStringSlice("SPONSOR_ALLOWED_MOVE_TARGETS", nil),
		AllowedAddresses:       env.GetStringSlice("SPONSOR_ALLOWED_ADDRESSES", nil),
		EnableEvents:           env.GetBool("ENABLE_EVENTS", false),
		RabbitMQ: messaging.RabbitMQConfig{
			RabbitMQHost:     env.GetString("RABBITMQ_HOST", "localhost"),
			RabbitMQPort:     env.GetInt("RABBITMQ_PORT", 5672),
			RabbitMQUser:     env.GetString("RABBITMQ_USER", "guest"),
			RabbitMQPassword: env.GetString("RABBITMQ_PASSWORD", "guest"),
			RabbitMQExchange: env.GetString("RABBITMQ_EXCHANGE", "sponsorship.events"),
		},
		Sentry: monitoring.SentryConfig{
			DSN:              env.GetString("SENTRY_DSN", ""),
			Environment:      environment,
			Release:          env.GetString("RELEASE_VERSION", ""),
			SampleRate:       env.GetFloat("SENTRY_SAMPLE_RATE", 1.0),
			TracesSampleRate: env.GetFloat("SENTRY_TRACES_SAMPLE_RATE", 0.1),
			ServiceName:      "sponsorship-proxy",
		},
		LogLevel:    env.GetString("LOG_LEVEL", "info"),
		Environment: environment,
	}
}

// LoadConfig is an alias for NewConfig for consistency
func LoadConfig() *Config {
	return NewConfig()
}

// Enabled reports whether sponsorship can be offered at all
func (c *Config) Enabled() bool {
	return c.Enoki.PrivateKey != ""
}

func (c *Config) Validate() error {
	switch c.Network {
	case "mainnet", "testnet", "devnet":
	default:
		return fmt.Errorf("unsupported SUI_NETWORK %q", c.Network)
	}
	if c.Enoki.APIURL == "" {
		return fmt.Errorf("ENOKI_API_URL is required")
	}
	if c.HTTP.RatePerSecond <= 0 || c.HTTP.Burst < 1 {
		return fmt.Errorf("SPONSOR_RATE_PER_SECOND and SPONSOR_BURST must be positive")
	}
	if c.Quota.Limit > 0 && c.Quota.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required when SPONSOR_SENDER_QUOTA is set")
	}
	if c.Environment == "production" && !c.Enabled() {
		return fmt.Errorf("ENOKI_PRIVATE_KEY must be set in production")
	}
	return nil
}
