package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is loaded from the environment, with an optional .env file for
// local development.
type Config struct {
	Issuer string `env:"AUTH_ISSUER" envDefault:"lms-auth"`

	// SigningKeyFile points at a PKCS8 Ed25519 private key PEM. When empty
	// an ephemeral keypair is generated and sessions do not survive
	// restarts.
	SigningKeyFile string        `env:"AUTH_SIGNING_KEY_FILE"`
	SessionTTL     time.Duration `env:"AUTH_SESSION_TTL" envDefault:"24h"`

	DatabaseFile string `env:"AUTH_DATABASE_FILE" envDefault:"auth.db"`

	Env       string `env:"ENV" envDefault:"dev"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Port                 int           `env:"PORT" envDefault:"8080"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"15m"`

	// Postmark credentials. When unset, emails are logged instead of sent.
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	MailFrom             string `env:"MAIL_FROM" envDefault:"no-reply@openlearnhub.io"`
	MailReplyTo          string `env:"MAIL_REPLY_TO" envDefault:"support@openlearnhub.io"`

	// FrontendURL is the public origin verification and reset links point at.
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	ProductName string `env:"PRODUCT_NAME" envDefault:"OpenLearnHub"`
}

// LoadConfig reads configuration from the environment. A missing .env file
// is not an error.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
