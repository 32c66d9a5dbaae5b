// Package config loads service configuration from an optional YAML file
// overlaid by environment variables. Environment always wins so container
// deployments can override a baked-in file.
package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"databaseUrl"`
	RedisURL    string `yaml:"redisUrl"`
	AMQPURL     string `yaml:"amqpUrl"`
	DBMigrate   bool   `yaml:"dbMigrate"`

	AuthMode       string `yaml:"authMode"`
	AuthHMACSecret string `yaml:"authHmacSecret"`
	AuthJWKSURL    string `yaml:"authJwksUrl"`

	RateRPS   float64 `yaml:"rateRps"`
	RateBurst int     `yaml:"rateBurst"`

	WebhookMaxAttempts int `yaml:"webhookMaxAttempts"`
}

func defaults() Config {
	return Config{
		Port:               "8080",
		DBMigrate:          true,
		AuthMode:           "dev",
		RateRPS:            0, // 0 disables rate limiting
		RateBurst:          20,
		WebhookMaxAttempts: 10,
	}
}

// Load reads the YAML file at path (skipped when path is empty or missing)
// and overlays environment variables.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path != "" {
		b, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, err
			}
		} else if !os.IsNotExist(err) {
			return cfg, err
		}
	}
	overlayEnv(&cfg)
	return cfg, nil
}

// FromEnv builds a Config from defaults plus environment only.
func FromEnv() Config {
	cfg := defaults()
	overlayEnv(&cfg)
	return cfg
}

func overlayEnv(cfg *Config) {
	setStr(&cfg.Port, "PORT")
	setStr(&cfg.DatabaseURL, "DATABASE_URL")
	setStr(&cfg.RedisURL, "REDIS_URL")
	setStr(&cfg.AMQPURL, "AMQP_URL")
	setStr(&cfg.AuthMode, "AUTH_MODE")
	setStr(&cfg.AuthHMACSecret, "AUTH_HMAC_SECRET")
	setStr(&cfg.AuthJWKSURL, "AUTH_JWKS_URL")
	if v := os.Getenv("DB_MIGRATE"); v != "" {
		cfg.DBMigrate = v != "false"
	}
	if v := os.Getenv("RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateRPS = f
		}
	}
	if v := os.Getenv("RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateBurst = n
		}
	}
	if v := os.Getenv("WEBHOOK_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WebhookMaxAttempts = n
		}
	}
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
