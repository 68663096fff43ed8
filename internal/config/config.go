package config

import (
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		Env  string `yaml:"env"`
	} `yaml:"server"`

	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`

	JWT struct {
		Secret string `yaml:"secret"`
		TTL    int    `yaml:"ttl"` // minutes
	} `yaml:"jwt"`

	Email struct {
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUsername string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		FromEmail    string `yaml:"from_email"`
		FromName     string `yaml:"from_name"`
		Enabled      bool   `yaml:"enabled"`
	} `yaml:"email"`

	PayPal struct {
		ClientID      string `yaml:"client_id"`
		Secret        string `yaml:"secret"`
		WebhookSecret string `yaml:"webhook_secret"`
		BaseURL       string `yaml:"base_url"`
		ReturnURL     string `yaml:"return_url"`
		CancelURL     string `yaml:"cancel_url"`
	} `yaml:"paypal"`

	Culqi struct {
		PublicKey      string `yaml:"public_key"`
		SecretKey      string `yaml:"secret_key"`
		CallbackSecret string `yaml:"callback_secret"`
	} `yaml:"culqi"`

	Billing struct {
		Currency        string `yaml:"currency"`          // ISO code, e.g. "PEN"
		CycleDays       int    `yaml:"cycle_days"`        // manual/wallet cycle length
		GraceDays       int    `yaml:"grace_days"`        // past_due grace before cancel
		SweepMinutes    int    `yaml:"sweep_minutes"`     // billing sweep interval
		ResettleMinutes int    `yaml:"resettle_minutes"`  // unsettled payment reprocess interval
	} `yaml:"billing"`

	FirstAdminEmail    string `yaml:"first_admin_email"`
	FirstAdminPassword string `yaml:"first_admin_password"`
}

var AppConfig *Config

// LoadConfig reads config.yaml, or builds the configuration from environment
// variables when DATABASE_URL is set (test and container deployments).
func LoadConfig() {
	var cfg Config

	dbURL := os.Getenv("DATABASE_URL")

	if dbURL == "" {
		configPath := os.Getenv("CONFIG_PATH")
		if configPath == "" {
			configPath = "config/config.yaml"
		}

		f, err := os.Open(configPath)
		if err != nil {
			log.Fatalf("Failed to open config file at %s: %v", configPath, err)
		}
		defer f.Close()

		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil {
			log.Fatalf("Failed to parse config file at %s: %v", configPath, err)
		}

		applyDefaults(&cfg)
		AppConfig = &cfg
		return
	}

	cfg.Database.DSN = dbURL
	cfg.Server.Env = os.Getenv("SERVER_ENV")
	cfg.Server.Port, _ = strconv.Atoi(os.Getenv("SERVER_PORT"))
	cfg.JWT.Secret = os.Getenv("JWT_SECRET")
	cfg.JWT.TTL = 60

	cfg.PayPal.ClientID = os.Getenv("PAYPAL_CLIENT_ID")
	cfg.PayPal.Secret = os.Getenv("PAYPAL_SECRET")
	cfg.PayPal.WebhookSecret = os.Getenv("PAYPAL_WEBHOOK_SECRET")
	cfg.Culqi.PublicKey = os.Getenv("CULQI_PUBLIC_KEY")
	cfg.Culqi.SecretKey = os.Getenv("CULQI_SECRET_KEY")
	cfg.Culqi.CallbackSecret = os.Getenv("CULQI_CALLBACK_SECRET")
	cfg.FirstAdminEmail = os.Getenv("FIRST_ADMIN_EMAIL")
	cfg.FirstAdminPassword = os.Getenv("FIRST_ADMIN_PASSWORD")

	applyDefaults(&cfg)
	AppConfig = &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.JWT.TTL == 0 {
		cfg.JWT.TTL = 60
	}
	if cfg.Billing.Currency == "" {
		cfg.Billing.Currency = "PEN"
	}
	if cfg.Billing.CycleDays == 0 {
		cfg.Billing.CycleDays = 30
	}
	if cfg.Billing.GraceDays == 0 {
		cfg.Billing.GraceDays = 7
	}
	if cfg.Billing.SweepMinutes == 0 {
		cfg.Billing.SweepMinutes = 60
	}
	if cfg.Billing.ResettleMinutes == 0 {
		cfg.Billing.ResettleMinutes = 15
	}
	if cfg.PayPal.BaseURL == "" {
		cfg.PayPal.BaseURL = "https://www.paypal.com/webapps/billing/subscriptions"
	}
}

func GetConfig() *Config {
	if AppConfig == nil {
		LoadConfig()
	}
	return AppConfig
}
