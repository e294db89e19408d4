package email

import (
	"fmt"
	"time"

	"membership_backend/internal/config"
)

// SMTPConfig содержит конфигурацию SMTP сервера
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
	UseSSL    bool
	Timeout   time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *SMTPConfig {
	return &SMTPConfig{
		Host:    "localhost",
		Port:    587,
		Timeout: 10 * time.Second,
	}
}

// ConfigFromApp собирает SMTPConfig из конфигурации приложения
func ConfigFromApp(cfg *config.Config) *SMTPConfig {
	c := DefaultConfig()
	c.Host = cfg.Email.SMTPHost
	c.Port = cfg.Email.SMTPPort
	c.Username = cfg.Email.SMTPUser
	c.Password = cfg.Email.SMTPPassword
	c.FromEmail = cfg.Email.FromEmail
	c.FromName = cfg.Email.FromName
	c.UseSSL = cfg.Email.UseSSL
	if t := cfg.EmailTimeout(); t > 0 {
		c.Timeout = t
	}
	return c
}

// FromHeader возвращает значение заголовка From
func (c *SMTPConfig) FromHeader() string {
	if c.FromName == "" {
		return c.FromEmail
	}
	return fmt.Sprintf("%s <%s>", c.FromName, c.FromEmail)
}
