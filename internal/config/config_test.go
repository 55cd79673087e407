package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaultsAndSecrets(t *testing.T) {
	t.Setenv("APP_SECRET_KEY", testSecret)
	path := writeConfig(t, `
app:
  name: courtside
  port: 8080
database:
  driver: sqlite
  filename: data/courtside.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Secrets.AppSecretKey != testSecret {
		t.Fatalf("expected secret from env, got %q", cfg.Secrets.AppSecretKey)
	}
	if cfg.Identity.Provider != IdentityLocal {
		t.Fatalf("identity provider: %s", cfg.Identity.Provider)
	}
	if cfg.Identity.TokenTTL != 24*time.Hour {
		t.Fatalf("token ttl: %s", cfg.Identity.TokenTTL)
	}
	if cfg.Email.From != "noreply@tennisleague.com" {
		t.Fatalf("email from: %s", cfg.Email.From)
	}
	if cfg.League.ChallengeExpiryDays != 14 {
		t.Fatalf("challenge expiry: %d", cfg.League.ChallengeExpiryDays)
	}
	if !cfg.IsDevelopment() {
		t.Fatalf("expected development environment by default")
	}
}

func TestLoadReadsDotEnvNextToConfig(t *testing.T) {
	path := writeConfig(t, `
app:
  name: courtside
  port: 8080
database:
  driver: sqlite
  filename: data/courtside.db
`)
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := os.WriteFile(envPath, []byte("APP_SECRET_KEY="+testSecret+"\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("APP_SECRET_KEY") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Secrets.AppSecretKey != testSecret {
		t.Fatalf("expected secret from .env, got %q", cfg.Secrets.AppSecretKey)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Parse([]byte(`
app:
  name: courtside
  port: 8080
database:
  driver: sqlite
  filename: test.db
`))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		cfg.Secrets.AppSecretKey = testSecret
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing name", func(c *Config) { c.App.Name = "" }, "app name"},
		{"bad driver", func(c *Config) { c.Database.Driver = "postgres" }, "unsupported database driver"},
		{"short secret", func(c *Config) { c.Secrets.AppSecretKey = "short" }, "APP_SECRET_KEY"},
		{"unknown identity", func(c *Config) { c.Identity.Provider = "ldap" }, "unsupported identity provider"},
		{"firebase without project", func(c *Config) { c.Identity.Provider = IdentityFirebase }, "firebase_project_id"},
		{"cognito without pool", func(c *Config) { c.Identity.Provider = IdentityCognito }, "cognito_pool_id"},
		{"clerk without key", func(c *Config) { c.Identity.Provider = IdentityClerk }, "CLERK_SECRET_KEY"},
		{"ses without region", func(c *Config) { c.Email.Provider = EmailSES }, "region"},
		{"smtp without host", func(c *Config) { c.Email.Provider = EmailSMTP }, "smtp_host"},
		{"bad from address", func(c *Config) { c.Email.From = "not an address" }, "from address"},
		{"s3 without bucket", func(c *Config) { c.Avatars.Provider = AvatarsS3 }, "bucket"},
		{"bad cron", func(c *Config) { c.Scheduler.ChallengeExpiryCron = "every hour" }, "challenge_expiry_cron"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected nil, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
