package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	RabbitMQ RabbitMQConfig
	Worker   WorkerConfig
	Mailer   MailerConfig
	Database DatabaseConfig
	LogLevel string
}

type ServerConfig struct {
	Host string
	Port string
}

type RabbitMQConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	VHost    string
}

type WorkerConfig struct {
	Queue       string
	Prefetch    int
	SendTimeout time.Duration
}

type MailerConfig struct {
	// Driver selects the mailer implementation: "mock" or "smtp".
	Driver     string
	SMTPHost   string
	SMTPPort   int
	Username   string
	Password   string
	From       string
	Encryption string
}

// DatabaseConfig configures the failed-delivery outbox. The outbox is
// optional: when Host is empty the service runs without a database and
// failed deliveries are only logged.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8000"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      os.Getenv("RABBITMQ_URL"),
			Host:     getEnv("RABBITMQ_HOST", "localhost"),
			Port:     getEnv("RABBITMQ_PORT", "5672"),
			User:     getEnv("RABBITMQ_USER", "guest"),
			Password: getEnv("RABBITMQ_PASSWORD", "guest"),
			VHost:    getEnv("RABBITMQ_VHOST", "/"),
		},
		Worker: WorkerConfig{
			Queue:       getEnv("NOTIFICATION_QUEUE", "medical_notifications"),
			Prefetch:    1,
			SendTimeout: 10 * time.Second,
		},
		Mailer: MailerConfig{
			Driver:     getEnv("MAILER_DRIVER", "mock"),
			SMTPHost:   getEnv("SMTP_SERVER", "smtp.gmail.com"),
			Username:   getEnv("EMAIL_USER", "notifications@hospital.com"),
			Password:   os.Getenv("EMAIL_PASSWORD"),
			From:       getEnv("EMAIL_FROM", "notifications@hospital.com"),
			Encryption: getEnv("SMTP_ENCRYPTION", "starttls"),
		},
		Database: DatabaseConfig{
			Host:     os.Getenv("DB_HOST"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   getEnv("DB_NAME", "notifications"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	smtpPort, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}
	config.Mailer.SMTPPort = smtpPort

	if config.Mailer.Driver != "mock" && config.Mailer.Driver != "smtp" {
		return nil, fmt.Errorf("invalid MAILER_DRIVER %q (expected mock or smtp)", config.Mailer.Driver)
	}

	return config, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// OutboxEnabled reports whether the failed-delivery outbox is configured.
func (c *DatabaseConfig) OutboxEnabled() bool {
	return c.Host != ""
}

// ConnectionString returns a DSN string for GORM
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.Host, c.User, c.Password, c.DBName, c.Port, c.SSLMode)
}

func (c *RabbitMQConfig) ConnectionURL() string {
	if c.URL != "" {
		return c.URL
	}
	vhost := c.VHost
	if vhost == "/" {
		vhost = ""
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%s/%s",
		c.User, c.Password, c.Host, c.Port, vhost)
}
