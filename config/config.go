package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the server.
// Tags use mapstructure for Viper unmarshalling; values come from an optional
// yaml file, environment variables, and defaults, in that order of priority.
type ServerConfig struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogPretty   bool   `mapstructure:"LOG_PRETTY"`

	// Second factor provider (Authy-shaped HTTP API). The API key doubles as
	// the shared HMAC secret for callback signature verification, matching
	// the provider's signing convention. It is deployment configuration;
	// this service never generates or rotates it.
	SecondFactorBaseURL string `mapstructure:"SECOND_FACTOR_BASE_URL"`
	SecondFactorAPIKey  string `mapstructure:"SECOND_FACTOR_API_KEY"`

	// Phone verification provider (Twilio-Verify-shaped HTTP API).
	PhoneVerifyBaseURL    string `mapstructure:"PHONE_VERIFY_BASE_URL"`
	PhoneVerifyServiceSID string `mapstructure:"PHONE_VERIFY_SERVICE_SID"`
	PhoneVerifyAPIKey     string `mapstructure:"PHONE_VERIFY_API_KEY"`
	PhoneVerifyAPISecret  string `mapstructure:"PHONE_VERIFY_API_SECRET"`

	SessionTTLMin int `mapstructure:"SESSION_TTL_MIN"`
	BcryptCost    int `mapstructure:"BCRYPT_COST"`
}

// SessionTTL returns the configured session lifetime as a duration.
func (c *ServerConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMin) * time.Minute
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/stepauth/")
	v.AddConfigPath("$HOME/.stepauth")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/stepauth_dev")
	v.SetDefault("MONGO_DB_NAME", "stepauth_dev")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("SECOND_FACTOR_BASE_URL", "https://api.authy.com")
	v.SetDefault("PHONE_VERIFY_BASE_URL", "https://verify.twilio.com")
	v.SetDefault("SESSION_TTL_MIN", 60)
	v.SetDefault("BCRYPT_COST", 0) // 0 falls back to bcrypt.DefaultCost

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is acceptable; defaults and env vars apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if cfg.SecondFactorAPIKey == "" {
		return nil, fmt.Errorf("SECOND_FACTOR_API_KEY must be set")
	}

	return &cfg, nil
}
