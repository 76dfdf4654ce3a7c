package config

import (
	"fmt"
	"time"

	"github.com/quangdang46/talent-passport/shared/env"
	"github.com/quangdang46/talent-passport/shared/redis"
)

const devSaltSecret = "passport-development-salt-secret"

// ProviderConfig describes the OpenID provider used for login
type ProviderConfig struct {
	Name        string
	ClientID    string
	RedirectURL string
	Scopes      []string
}

// ProverConfig holds proving service settings
type ProverConfig struct {
	URL         string
	Timeout     time.Duration
	MaxAttempts int
}

// SuiConfig holds network RPC settings
type SuiConfig struct {
	RPCURL         string
	Network        string
	Timeout        time.Duration
	MaxEpochOffset uint64
}

// StorageConfig selects where sessions and pending logins live
type StorageConfig struct {
	Driver     string // bbolt, redis or memory
	Path       string
	Profile    string
	PendingTTL time.Duration
}

// Config contains configuration for the auth client
type Config struct {
	Provider        ProviderConfig
	Prover          ProverConfig
	Sui             SuiConfig
	Storage         StorageConfig
	RedisConfig     redis.RedisConfig
	SaltSecret      string
	SponsorProxyURL string
	CallbackAddr    string
	LogLevel        string
	Environment     string
	MetricsAddr     string
}

// NewConfig creates and loads configuration from environment variables
func NewConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Name:        env.GetString("ZKLOGIN_PROVIDER", "google"),
			ClientID:    env.GetString("ZKLOGIN_CLIENT_ID", ""),
			RedirectURL: env.GetString("ZKLOGIN_REDIRECT_URL", "http://127.0.0.1:5173/auth/callback"),
			Scopes:      env.GetStringSlice("ZKLOGIN_SCOPES", []string{"openid", "email", "profile"}),
		},
		Prover: ProverConfig{
			URL:         env.GetString("ZKLOGIN_PROVER_URL", ""),
			Timeout:     env.GetDuration("PROVER_TIMEOUT", 15*time.Second),
			MaxAttempts: env.GetInt("PROVER_MAX_ATTEMPTS", 3),
		},
		Sui: SuiConfig{
			RPCURL:         env.GetString("SUI_RPC_URL", "https://fullnode.testnet.sui.io:443"),
			Network:        env.GetString("SUI_NETWORK", "testnet"),
			Timeout:        env.GetDuration("RPC_TIMEOUT", 15*time.Second),
			MaxEpochOffset: env.GetUint64("ZKLOGIN_MAX_EPOCH_OFFSET", 2),
		},
		Storage: StorageConfig{
			Driver:     env.GetString("STORAGE_DRIVER", "bbolt"),
			Path:       env.GetString("STORAGE_PATH", "./data/passport.db"),
			Profile:    env.GetString("STORAGE_PROFILE", "default"),
			PendingTTL: env.GetDuration("PENDING_LOGIN_TTL", 10*time.Minute),
		},
		RedisConfig:     loadRedisConfig(),
		SaltSecret:      env.GetString("ZKLOGIN_SALT_SECRET", devSaltSecret),
		SponsorProxyURL: env.GetString("SPONSOR_PROXY_URL", ""),
		CallbackAddr:    env.GetString("CALLBACK_ADDR", "127.0.0.1:5173"),
		LogLevel:        env.GetString("LOG_LEVEL", "info"),
		Environment:     env.GetString("ENVIRONMENT", "development"),
		MetricsAddr:     env.GetString("METRICS_ADDR", ""),
	}
}

// LoadConfig is an alias for NewConfig for consistency
func LoadConfig() *Config {
	return NewConfig()
}

func loadRedisConfig() redis.RedisConfig {
	return redis.RedisConfig{
		RedisHost:     env.GetString("REDIS_HOST", "localhost"),
		RedisPort:     env.GetInt("REDIS_PORT", 6379),
		RedisPassword: env.GetString("REDIS_PASSWORD", ""),
		RedisDB:       env.GetInt("REDIS_DB", 0),
	}
}

// Validate checks settings every command needs. The client id and prover URL
// are checked by the operations that use them.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "bbolt":
		if c.Storage.Path == "" {
			return fmt.Errorf("STORAGE_PATH is required for the bbolt driver")
		}
	case "redis":
		if c.RedisConfig.RedisHost == "" {
			return fmt.Errorf("REDIS_HOST is required for the redis driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.Storage.PendingTTL <= 0 {
		return fmt.Errorf("PENDING_LOGIN_TTL must be positive")
	}
	if c.Prover.MaxAttempts < 1 {
		return fmt.Errorf("PROVER_MAX_ATTEMPTS must be at least 1")
	}
	if c.SaltSecret == "" {
		return fmt.Errorf("ZKLOGIN_SALT_SECRET is required")
	}
	if c.Environment == "production" && c.SaltSecret == devSaltSecret {
		return fmt.Errorf("ZKLOGIN_SALT_SECRET must be set in production")
	}
	return nil
}

// UsesDevelopmentSalt reports whether the built-in salt secret is in use
func (c *Config) UsesDevelopmentSalt() bool {
	return c.SaltSecret == devSaltSecret
}
