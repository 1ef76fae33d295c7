package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"ctf-arena/internal/ctf"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`

	JWTSecret    string        `env:"JWT_SECRET,required,notEmpty"`
	TokenTTL     time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"false"`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"json"`

	RedisURL       string        `env:"REDIS_URL"`
	AttachmentsDir string        `env:"ATTACHMENTS_DIR" envDefault:"data/attachments"`
	StaticDir      string        `env:"STATIC_DIR"`
	PollInterval   time.Duration `env:"SCOREBOARD_POLL_INTERVAL" envDefault:"30s"`
	ClientURL      string        `env:"CLIENT_URL" envDefault:"http://localhost:8080"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`

	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	// AuthRateLimit is requests per minute per client IP on /api/auth. Zero disables it.
	AuthRateLimit int `env:"AUTH_RATE_LIMIT" envDefault:"20"`
}

// Load reads envFile (if it exists) into the process environment, then
// parses the environment. Variables already set win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.LogFormat {
	case "json", "text", "pretty":
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q", c.LogFormat)
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	if c.AdminEmail != "" {
		email, err := ctf.NormalizeEmail(c.AdminEmail)
		if err != nil {
			return fmt.Errorf("ADMIN_EMAIL: %w", err)
		}
		c.AdminEmail = email
		if err := ctf.ValidatePassword(c.AdminPassword); err != nil {
			return fmt.Errorf("ADMIN_PASSWORD: %w", err)
		}
	}
	return nil
}

func (c *Config) SMTPEnabled() bool { return c.SMTPHost != "" }
