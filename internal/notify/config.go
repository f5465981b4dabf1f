package notify

import (
	"fmt"
	"time"
)

type Config struct {
	FromEmail   string `env:"FROM_EMAIL" envDefault:"noreply@example.com"`
	FromName    string `env:"FROM_NAME" envDefault:"Waitlist"`
	AdminEmail  string `env:"ADMIN_EMAIL"`
	ProductName string `env:"PRODUCT_NAME" envDefault:"our product"`
	AppURL      string `env:"APP_URL" envDefault:"http://localhost:3000"`

	ResendAPIKey   string `env:"RESEND_API_KEY"`
	SendGridAPIKey string `env:"SENDGRID_API_KEY"`
	SMTPHost       string `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	SMTPPort       int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser       string `env:"SMTP_USER"`
	SMTPPass       string `env:"SMTP_PASS"`

	Timeout time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"15s"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_SIGNUP_TOPIC" envDefault:"waitlist.joined"`
}

func (c Config) sender() string {
	if c.FromName == "" {
		return c.FromEmail
	}
	return fmt.Sprintf("%s <%s>", c.FromName, c.FromEmail)
}

func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0 && c.KafkaTopic != ""
}
