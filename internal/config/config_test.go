package config

import (
	"testing"
	"time"
)

// setRequiredEnv sets the minimum environment Load needs and blanks the keys
// individual tests care about.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	t.Setenv("DB_PASSWORD", "test")
	for _, key := range []string{
		"ENV", "EXPOSE_SECRETS", "EMAIL_PROVIDER", "AWS_REGION", "SMTP_HOST",
		"SESSION_TOKEN_EXPIRY", "OTP_EXPIRY", "RESET_TOKEN_EXPIRY", "NOTIFY_TIMEOUT",
		"SERVER_READ_TIMEOUT", "SERVER_WRITE_TIMEOUT", "SERVER_IDLE_TIMEOUT",
		"FRONTEND_URL", "ALLOWED_ORIGINS", "PORT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"SessionTokenExpiry", cfg.Auth.SessionTokenExpiry, 30 * 24 * time.Hour},
		{"OTPExpiry", cfg.Auth.OTPExpiry, 10 * time.Minute},
		{"ResetTokenExpiry", cfg.Auth.ResetTokenExpiry, 10 * time.Minute},
		{"NotifyTimeout", cfg.Email.NotifyTimeout, 15 * time.Second},
		{"ReadTimeout", cfg.Server.ReadTimeout, 15 * time.Second},
		{"WriteTimeout", cfg.Server.WriteTimeout, 15 * time.Second},
		{"IdleTimeout", cfg.Server.IdleTimeout, 60 * time.Second},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}

	if cfg.Server.Port != "5000" {
		t.Errorf("Port: got %q, want 5000", cfg.Server.Port)
	}
	if cfg.Server.Env != EnvDevelopment {
		t.Errorf("Env: got %q, want %q", cfg.Server.Env, EnvDevelopment)
	}
	if cfg.Server.DevMode {
		t.Error("DevMode should be off unless EXPOSE_SECRETS is set")
	}
	if cfg.Email.Provider != EmailProviderLog {
		t.Errorf("Email.Provider: got %q, want %q", cfg.Email.Provider, EmailProviderLog)
	}
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when JWT_SECRET is missing")
	}
}

func TestLoad_MissingDBPassword(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DB_PASSWORD", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DB_PASSWORD is missing")
	}
}

func TestLoad_ShortSecretInProduction(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENV", EnvProduction)
	t.Setenv("JWT_SECRET", "only-twenty-chars!!!")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for a 20 character secret in production")
	}
}

func TestLoad_DevModeRequiresDevelopment(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("EXPOSE_SECRETS", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}
	if !cfg.Server.DevMode {
		t.Error("DevMode should be on in development with EXPOSE_SECRETS=true")
	}

	t.Setenv("ENV", EnvTest)
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}
	if cfg.Server.DevMode {
		t.Error("DevMode should stay off outside development")
	}
}

func TestLoad_ExposeSecretsRejectedInProduction(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENV", EnvProduction)
	t.Setenv("JWT_SECRET", "a-production-secret-that-is-long-enough")
	t.Setenv("EXPOSE_SECRETS", "true")

	if _, err := Load(); err == nil {
		t.Fatal("expected EXPOSE_SECRETS to be rejected in production")
	}
}

func TestLoad_EmailProviderValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{"ses without region", map[string]string{"EMAIL_PROVIDER": "ses"}, true},
		{"ses with region", map[string]string{"EMAIL_PROVIDER": "ses", "AWS_REGION": "us-east-1"}, false},
		{"smtp without host", map[string]string{"EMAIL_PROVIDER": "smtp"}, true},
		{"smtp with host", map[string]string{"EMAIL_PROVIDER": "SMTP", "SMTP_HOST": "smtp.example.com"}, false},
		{"unknown provider", map[string]string{"EMAIL_PROVIDER": "pigeon"}, true},
		{"zero notify timeout", map[string]string{"NOTIFY_TIMEOUT": "0s"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("OTP_EXPIRY", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}
	if cfg.Auth.OTPExpiry != 10*time.Minute {
		t.Errorf("OTPExpiry with invalid value: got %v, want %v", cfg.Auth.OTPExpiry, 10*time.Minute)
	}
}

func TestLoad_FrontendURLTrailingSlashTrimmed(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FRONTEND_URL", "https://app.example.com/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}
	if cfg.Email.FrontendURL != "https://app.example.com" {
		t.Errorf("FrontendURL: got %q", cfg.Email.FrontendURL)
	}
}

func TestParseAllowedOrigins_Production(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	origins := parseAllowedOrigins(EnvProduction)
	if len(origins) != 2 || origins[0] != "https://a.example.com" || origins[1] != "https://b.example.com" {
		t.Errorf("unexpected origins: %v", origins)
	}
}
