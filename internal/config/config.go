package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config holds the application settings read from app.env and the environment.
type Config struct {
	ServerAddress    string        `mapstructure:"SERVER_ADDRESS"`
	PostgresConn     string        `mapstructure:"POSTGRES_CONN"`
	MigrationURL     string        `mapstructure:"MIGRATION_URL"`
	TokenSecret      string        `mapstructure:"TOKEN_AUTH_SECRET"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	RequestTimeout   time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	DBConnectTimeout time.Duration `mapstructure:"DB_CONNECT_TIMEOUT"`
}

var defaults = map[string]any{
	"SERVER_ADDRESS":     ":8080",
	"POSTGRES_CONN":      "",
	"MIGRATION_URL":      "file://migrations",
	"TOKEN_AUTH_SECRET":  "",
	"LOG_LEVEL":          "info",
	"REQUEST_TIMEOUT":    5 * time.Second,
	"DB_CONNECT_TIMEOUT": 2 * time.Minute,
}

// LoadConfig reads app.env from path, if present, and lets environment variables override it.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AutomaticEnv()

	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, errors.Wrap(err, "read config")
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, errors.Wrap(err, "decode config")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.PostgresConn == "" {
		return errors.New("POSTGRES_CONN is required")
	}
	if c.TokenSecret == "" {
		return errors.New("TOKEN_AUTH_SECRET is required")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	return nil
}
