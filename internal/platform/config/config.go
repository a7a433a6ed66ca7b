package config

import (
	"os"
	"strings"
	"time"
)

// Mailchimp holds credentials for the outbound contact-list API.
type Mailchimp struct {
	APIKey       string
	ListID       string
	ServerPrefix string
	// BaseURL overrides the derived https://{prefix}.api.mailchimp.com/3.0
	// endpoint; used by tests.
	BaseURL string
	Timeout time.Duration
}

// Stripe holds credentials for the payment-processor API and its webhook
// signature secret.
type Stripe struct {
	APIKey        string
	WebhookSecret string
	BaseURL       string
	Timeout       time.Duration
}

// Blob selects and configures the blob-store backend.
type Blob struct {
	// Backend is one of "file", "redis", "postgres", "memory".
	Backend     string
	Dir         string
	RedisURL    string
	RedisPrefix string
	PostgresDSN string
}

// Admin secures the read/replay surface. PasswordHash is a bcrypt hash, never
// the plaintext password.
type Admin struct {
	User         string
	PasswordHash string
}

// Kafka configures the optional audit-log fan-out. Empty Brokers disables it.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Config is built once in main and passed by reference into constructors.
// Nothing outside this package reads the environment.
type Config struct {
	Addr                   string
	LogFormat              string
	MemberfulWebhookSecret string
	Mailchimp              Mailchimp
	Stripe                 Stripe
	Blob                   Blob
	Admin                  Admin
	Kafka                  Kafka
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	addr := os.Getenv("CHIMPLINK_ADDR")
	if addr == "" {
		addr = ":5050"
	}

	blobBackend := os.Getenv("BLOB_BACKEND")
	if blobBackend == "" {
		blobBackend = "file"
	}
	blobDir := os.Getenv("BLOB_DIR")
	if blobDir == "" {
		blobDir = "."
	}

	kafkaTopic := os.Getenv("KAFKA_AUDIT_TOPIC")
	if kafkaTopic == "" {
		kafkaTopic = "chimplink.audit"
	}
	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}

	return Config{
		Addr:                   addr,
		LogFormat:              os.Getenv("LOG_FORMAT"),
		MemberfulWebhookSecret: os.Getenv("MEMBERFUL_WEBHOOK_SECRET"),
		Mailchimp: Mailchimp{
			APIKey:       os.Getenv("MAILCHIMP_API_KEY"),
			ListID:       os.Getenv("MAILCHIMP_LIST_ID"),
			ServerPrefix: os.Getenv("MAILCHIMP_SERVER_PREFIX"),
			Timeout:      10 * time.Second,
		},
		Stripe: Stripe{
			APIKey:        os.Getenv("STRIPE_API_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			Timeout:       10 * time.Second,
		},
		Blob: Blob{
			Backend:     blobBackend,
			Dir:         blobDir,
			RedisURL:    os.Getenv("BLOB_REDIS_URL"),
			RedisPrefix: os.Getenv("BLOB_REDIS_PREFIX"),
			PostgresDSN: os.Getenv("BLOB_POSTGRES_DSN"),
		},
		Admin: Admin{
			User:         os.Getenv("LOGS_USER"),
			PasswordHash: os.Getenv("LOGS_PASSWORD_HASH"),
		},
		Kafka: Kafka{
			Brokers: brokers,
			Topic:   kafkaTopic,
		},
	}
}
