package config

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	DB struct {
		DSN string `yaml:"dsn"`
	} `yaml:"db"`
	Stripe struct {
		APIBaseURL    string `yaml:"api_base_url"`
		SecretKey     string `yaml:"secret_key"`
		WebhookSecret string `yaml:"webhook_secret"`
	} `yaml:"stripe"`
	Relays struct {
		SMSURL   string `yaml:"sms_url"`
		PushURL  string `yaml:"push_url"`
		EmailURL string `yaml:"email_url"`
	} `yaml:"relays"`
	Currency string `yaml:"currency"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Server.Addr == "" {
		return nil, errors.New("server.addr is required")
	}
	if cfg.DB.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	if cfg.Stripe.SecretKey == "" || cfg.Stripe.WebhookSecret == "" {
		return nil, errors.New("stripe config is incomplete")
	}
	if cfg.Currency == "" {
		cfg.Currency = "eur"
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}
	if v := os.Getenv("STRIPE_API_BASE_URL"); v != "" {
		cfg.Stripe.APIBaseURL = v
	}
	if v := os.Getenv("STRIPE_SECRET_KEY"); v != "" {
		cfg.Stripe.SecretKey = v
	}
	if v := os.Getenv("STRIPE_WEBHOOK_SECRET"); v != "" {
		cfg.Stripe.WebhookSecret = v
	}
	if v := os.Getenv("SMS_RELAY_URL"); v != "" {
		cfg.Relays.SMSURL = v
	}
	if v := os.Getenv("PUSH_RELAY_URL"); v != "" {
		cfg.Relays.PushURL = v
	}
	if v := os.Getenv("EMAIL_RELAY_URL"); v != "" {
		cfg.Relays.EmailURL = v
	}
	if v := os.Getenv("CURRENCY"); v != "" {
		cfg.Currency = v
	}
}
