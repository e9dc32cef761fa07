package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration. Values come from config.yaml
// with GAMESTORE_-prefixed environment variables taking precedence.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	JWTSecret    string `mapstructure:"jwt_secret"`
	TokenTTLDays int    `mapstructure:"token_ttl_days"`
}

type BusinessConfig struct {
	WithdrawMinimum int64 `mapstructure:"withdraw_minimum"`
	WithdrawFee     int64 `mapstructure:"withdraw_fee"`
	TopupMinimum    int64 `mapstructure:"topup_minimum"`
}

// TokenTTL returns the configured token lifetime as a duration.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLDays) * 24 * time.Hour
}

// Load reads configuration from the given directory, falling back to
// defaults when no config file is present.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)

	v.SetEnvPrefix("GAMESTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", "8080")
	v.SetDefault("database.path", "gamestore.db")
	v.SetDefault("auth.jwt_secret", "gamestore-secret-key")
	v.SetDefault("auth.token_ttl_days", 30)
	v.SetDefault("business.withdraw_minimum", 50000)
	v.SetDefault("business.withdraw_fee", 2500)
	v.SetDefault("business.topup_minimum", 10000)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
