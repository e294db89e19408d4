package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		Env  string `yaml:"env"`
	} `yaml:"server"`

	Database struct {
		Driver string `yaml:"driver"` // postgres, mysql, sqlite
		DSN    string `yaml:"url"`
	} `yaml:"database"`

	JWT struct {
		Secret     string `yaml:"secret"`
		CookieName string `yaml:"cookie_name"`
	} `yaml:"jwt"`

	Gateway struct {
		APIBase           string `yaml:"api_base"`
		SecretKey         string `yaml:"secret_key"`
		WebhookSecret     string `yaml:"webhook_secret"`
		WebhookToleranceS int    `yaml:"webhook_tolerance_seconds"`
		TimeoutSeconds    int    `yaml:"timeout_seconds"`
		Currency          string `yaml:"currency"`
		SuccessURL        string `yaml:"success_url"`
		CancelURL         string `yaml:"cancel_url"`
	} `yaml:"gateway"`

	Email struct {
		SMTPHost       string `yaml:"smtp_host"`
		SMTPPort       int    `yaml:"smtp_port"`
		SMTPUser       string `yaml:"smtp_user"`
		SMTPPassword   string `yaml:"smtp_password"`
		FromEmail      string `yaml:"from_email"`
		FromName       string `yaml:"from_name"`
		UseSSL         bool   `yaml:"use_ssl"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		TemplatesDir   string `yaml:"templates_dir"` // пусто - только встроенные шаблоны
		Disabled       bool   `yaml:"disabled"`      // true - письма только логируются
	} `yaml:"email"`

	Payments struct {
		RefundPolicy string `yaml:"refund_policy"` // manual, revoke
	} `yaml:"payments"`

	Notifications struct {
		ImmediateDrain       int `yaml:"immediate_drain"`
		SweepBatchSize       int `yaml:"sweep_batch_size"`
		SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
		MaxAttempts          int `yaml:"max_attempts"` // 0 - упавшие письма не переотправляются
	} `yaml:"notifications"`

	Redis struct {
		Addr            string `yaml:"addr"` // пусто - rate limit отключен
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		RateLimit       int    `yaml:"rate_limit"`
		RateLimitWindow int    `yaml:"rate_limit_window_seconds"`
	} `yaml:"redis"`
}

var AppConfig *Config

// Default возвращает конфигурацию с безопасными значениями по умолчанию
func Default() *Config {
	var cfg Config
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 4000
	cfg.Server.Env = "development"
	cfg.Database.Driver = "postgres"
	cfg.JWT.CookieName = "session"
	cfg.Gateway.APIBase = "https://api.stripe.com"
	cfg.Gateway.WebhookToleranceS = 300
	cfg.Gateway.TimeoutSeconds = 10
	cfg.Gateway.Currency = "eur"
	cfg.Email.SMTPPort = 587
	cfg.Email.FromName = "Membership Office"
	cfg.Email.TimeoutSeconds = 10
	cfg.Payments.RefundPolicy = "manual"
	cfg.Notifications.ImmediateDrain = 10
	cfg.Notifications.SweepBatchSize = 50
	cfg.Notifications.SweepIntervalSeconds = 300
	cfg.Redis.RateLimit = 10
	cfg.Redis.RateLimitWindow = 60
	return &cfg
}

// LoadConfig загружает конфиг в AppConfig.
// Если задан DATABASE_URL - конфигурация целиком из переменных окружения,
// иначе из YAML файла (CONFIG_PATH, по умолчанию config/config.yaml).
func LoadConfig() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	var (
		cfg *Config
		err error
	)
	if os.Getenv("DATABASE_URL") == "" {
		configPath := getEnv("CONFIG_PATH", "config/config.yaml")
		log.Printf("Loading configuration from %s", configPath)
		cfg, err = LoadFile(configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	} else {
		log.Println("Loading configuration from environment variables")
		cfg = FromEnv()
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	AppConfig = cfg
}

// LoadFile читает YAML поверх значений по умолчанию
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file at %s: %w", path, err)
	}
	defer f.Close()

	cfg := Default()
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file at %s: %w", path, err)
	}
	return cfg, nil
}

// FromEnv собирает конфиг из переменных окружения (docker, тесты)
func FromEnv() *Config {
	cfg := Default()

	cfg.Server.Env = getEnv("SERVER_ENV", cfg.Server.Env)
	cfg.Server.Port = getEnvAsInt("SERVER_PORT", cfg.Server.Port)
	cfg.Database.Driver = getEnv("DATABASE_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = os.Getenv("DATABASE_URL")
	cfg.JWT.Secret = os.Getenv("JWT_SECRET")

	cfg.Gateway.APIBase = getEnv("GATEWAY_API_BASE", cfg.Gateway.APIBase)
	cfg.Gateway.SecretKey = os.Getenv("GATEWAY_SECRET_KEY")
	cfg.Gateway.WebhookSecret = os.Getenv("GATEWAY_WEBHOOK_SECRET")
	cfg.Gateway.SuccessURL = getEnv("GATEWAY_SUCCESS_URL", "http://localhost:3000/membership/confirm?session_id={CHECKOUT_SESSION_ID}")
	cfg.Gateway.CancelURL = getEnv("GATEWAY_CANCEL_URL", "http://localhost:3000/membership")

	cfg.Email.SMTPHost = os.Getenv("SMTP_HOST")
	cfg.Email.SMTPPort = getEnvAsInt("SMTP_PORT", cfg.Email.SMTPPort)
	cfg.Email.SMTPUser = os.Getenv("SMTP_USER")
	cfg.Email.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	cfg.Email.FromEmail = getEnv("SMTP_FROM", "membership@example.org")
	cfg.Email.TemplatesDir = os.Getenv("TEMPLATES_DIR")
	cfg.Email.Disabled = cfg.Email.SMTPHost == ""

	cfg.Payments.RefundPolicy = getEnv("REFUND_POLICY", cfg.Payments.RefundPolicy)
	cfg.Notifications.MaxAttempts = getEnvAsInt("EMAIL_MAX_ATTEMPTS", cfg.Notifications.MaxAttempts)

	cfg.Redis.Addr = os.Getenv("REDIS_ADDR")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")

	return cfg
}

// Validate проверяет обязательные поля
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database url is required")
	}
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	switch c.Payments.RefundPolicy {
	case "manual", "revoke":
	default:
		return fmt.Errorf("unsupported refund policy: %s", c.Payments.RefundPolicy)
	}
	return nil
}

func (c *Config) GatewayTimeout() time.Duration {
	return time.Duration(c.Gateway.TimeoutSeconds) * time.Second
}

func (c *Config) EmailTimeout() time.Duration {
	return time.Duration(c.Email.TimeoutSeconds) * time.Second
}

func GetConfig() *Config {
	if AppConfig == nil {
		LoadConfig()
	}
	return AppConfig
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}
