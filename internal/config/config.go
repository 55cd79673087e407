// internal/config/config.go
package config

import (
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	IdentityLocal    = "local"
	IdentityFirebase = "firebase"
	IdentityCognito  = "cognito"
	IdentityClerk    = "clerk"

	EmailNone = "none"
	EmailSES  = "ses"
	EmailSMTP = "smtp"

	AvatarsLocal = "local"
	AvatarsS3    = "s3"
	AvatarsGCS   = "gcs"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
}

type IdentityConfig struct {
	Provider string        `yaml:"provider"`
	TokenTTL time.Duration `yaml:"token_ttl"`

	FirebaseProjectID string `yaml:"firebase_project_id"`
	CognitoPoolID     string `yaml:"cognito_pool_id"`
	CognitoClientID   string `yaml:"cognito_client_id"`
}

type EmailConfig struct {
	Provider     string `yaml:"provider"`
	From         string `yaml:"from"`
	Region       string `yaml:"region"`
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUsername string `yaml:"smtp_username"`
}

type AvatarsConfig struct {
	Provider      string `yaml:"provider"`
	Dir           string `yaml:"dir"`
	Bucket        string `yaml:"bucket"`
	Region        string `yaml:"region"`
	PublicBaseURL string `yaml:"public_base_url"`
	MaxUploadMB   int64  `yaml:"max_upload_mb"`
}

type LeagueConfig struct {
	ChallengeExpiryDays       int `yaml:"challenge_expiry_days"`
	NotificationRetentionDays int `yaml:"notification_retention_days"`
}

type SchedulerConfig struct {
	ChallengeExpiryCron     string `yaml:"challenge_expiry_cron"`
	NotificationCleanupCron string `yaml:"notification_cleanup_cron"`
}

// Secrets never live in config.yaml; they are read from the environment
// (or the .env file next to it).
type Secrets struct {
	AppSecretKey            string `env:"APP_SECRET_KEY"`
	FirebaseCredentialsJSON string `env:"FIREBASE_CREDENTIALS_JSON"`
	ClerkSecretKey          string `env:"CLERK_SECRET_KEY"`
	AWSAccessKeyID          string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey      string `env:"AWS_SECRET_ACCESS_KEY"`
	SMTPPassword            string `env:"SMTP_PASSWORD"`
	GCSCredentialsJSON      string `env:"GCS_CREDENTIALS_JSON"`
}

type Config struct {
	App struct {
		Name            string        `yaml:"name"`
		Environment     string        `yaml:"environment"`
		Port            int           `yaml:"port"`
		BaseURL         string        `yaml:"base_url"`
		CORSOrigins     []string      `yaml:"cors_origins"`
		TrustProxy      bool          `yaml:"trust_proxy"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"app"`

	Database  DatabaseConfig  `yaml:"database"`
	Identity  IdentityConfig  `yaml:"identity"`
	Email     EmailConfig     `yaml:"email"`
	Avatars   AvatarsConfig   `yaml:"avatars"`
	League    LeagueConfig    `yaml:"league"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Secrets Secrets `yaml:"-"`
}

// Load loads both .env and yaml configuration
func Load(configPath string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	secrets, err := env.ParseAs[Secrets]()
	if err != nil {
		return nil, fmt.Errorf("error reading environment: %w", err)
	}
	cfg.Secrets = secrets

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML config data and fills defaults. It does not read
// secrets or validate.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Environment == "" {
		c.App.Environment = "development"
	}
	if c.App.ShutdownTimeout == 0 {
		c.App.ShutdownTimeout = 30 * time.Second
	}
	if c.Identity.Provider == "" {
		c.Identity.Provider = IdentityLocal
	}
	if c.Identity.TokenTTL == 0 {
		c.Identity.TokenTTL = 24 * time.Hour
	}
	if c.Email.Provider == "" {
		c.Email.Provider = EmailNone
	}
	if c.Email.From == "" {
		c.Email.From = "noreply@tennisleague.com"
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
	if c.Avatars.Provider == "" {
		c.Avatars.Provider = AvatarsLocal
	}
	if c.Avatars.Dir == "" {
		c.Avatars.Dir = "data/uploads"
	}
	if c.Avatars.MaxUploadMB == 0 {
		c.Avatars.MaxUploadMB = 5
	}
	if c.League.ChallengeExpiryDays == 0 {
		c.League.ChallengeExpiryDays = 14
	}
	if c.League.NotificationRetentionDays == 0 {
		c.League.NotificationRetentionDays = 90
	}
	if c.Scheduler.ChallengeExpiryCron == "" {
		c.Scheduler.ChallengeExpiryCron = "0 * * * *"
	}
	if c.Scheduler.NotificationCleanupCron == "" {
		c.Scheduler.NotificationCleanupCron = "30 3 * * *"
	}
}

// IsDevelopment reports whether the app runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database filename is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if err := c.validateIdentity(); err != nil {
		return err
	}
	if err := c.validateEmail(); err != nil {
		return err
	}
	if err := c.validateAvatars(); err != nil {
		return err
	}

	if c.League.ChallengeExpiryDays < 0 {
		return fmt.Errorf("league challenge_expiry_days must not be negative")
	}
	if c.League.NotificationRetentionDays < 0 {
		return fmt.Errorf("league notification_retention_days must not be negative")
	}

	crons := map[string]string{
		"challenge_expiry_cron":     c.Scheduler.ChallengeExpiryCron,
		"notification_cleanup_cron": c.Scheduler.NotificationCleanupCron,
	}
	for name, expr := range crons {
		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("scheduler %s is invalid: %w", name, err)
		}
	}

	return nil
}

func (c *Config) validateIdentity() error {
	switch c.Identity.Provider {
	case IdentityLocal:
		if len(c.Secrets.AppSecretKey) < 32 {
			return fmt.Errorf("APP_SECRET_KEY must be at least 32 bytes for local identity")
		}
	case IdentityFirebase:
		if c.Identity.FirebaseProjectID == "" {
			return fmt.Errorf("identity firebase_project_id is required for firebase")
		}
	case IdentityCognito:
		if c.Identity.CognitoPoolID == "" || c.Identity.CognitoClientID == "" {
			return fmt.Errorf("identity cognito_pool_id and cognito_client_id are required for cognito")
		}
	case IdentityClerk:
		if c.Secrets.ClerkSecretKey == "" {
			return fmt.Errorf("CLERK_SECRET_KEY is required for clerk")
		}
	default:
		return fmt.Errorf("unsupported identity provider: %s", c.Identity.Provider)
	}
	if c.Identity.TokenTTL < time.Minute {
		return fmt.Errorf("identity token_ttl must be at least 1m")
	}
	return nil
}

func (c *Config) validateEmail() error {
	if _, err := mail.ParseAddress(c.Email.From); err != nil {
		return fmt.Errorf("email from address is invalid: %w", err)
	}
	switch c.Email.Provider {
	case EmailNone:
	case EmailSES:
		if c.Email.Region == "" {
			return fmt.Errorf("email region is required for ses")
		}
		if c.Secrets.AWSAccessKeyID == "" || c.Secrets.AWSSecretAccessKey == "" {
			return fmt.Errorf("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are required for ses")
		}
	case EmailSMTP:
		if strings.TrimSpace(c.Email.SMTPHost) == "" {
			return fmt.Errorf("email smtp_host is required for smtp")
		}
	default:
		return fmt.Errorf("unsupported email provider: %s", c.Email.Provider)
	}
	return nil
}

func (c *Config) validateAvatars() error {
	switch c.Avatars.Provider {
	case AvatarsLocal:
	case AvatarsS3:
		if c.Avatars.Bucket == "" || c.Avatars.Region == "" {
			return fmt.Errorf("avatars bucket and region are required for s3")
		}
	case AvatarsGCS:
		if c.Avatars.Bucket == "" {
			return fmt.Errorf("avatars bucket is required for gcs")
		}
	default:
		return fmt.Errorf("unsupported avatars provider: %s", c.Avatars.Provider)
	}
	if c.Avatars.MaxUploadMB < 1 {
		return fmt.Errorf("avatars max_upload_mb must be at least 1")
	}
	return nil
}
