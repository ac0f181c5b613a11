package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("GOOGLE_CLIENT_ID", "google-client")
	t.Setenv("APPLE_CLIENT_ID", "com.runon.app")
	t.Setenv("GOOGLE_SEARCH_API_KEY", "search-key")
	t.Setenv("GOOGLE_SEARCH_ENGINE_ID", "engine")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	if cfg.JWTExpiry != time.Hour {
		t.Errorf("JWTExpiry = %v, want 1h", cfg.JWTExpiry)
	}
	if cfg.RateLimitRequests != 100 || cfg.RateLimitWindow != time.Minute {
		t.Errorf("rate limit = %d/%v, want 100/1m", cfg.RateLimitRequests, cfg.RateLimitWindow)
	}
	if cfg.SearchCacheTTL != time.Hour || cfg.SearchTimeout != 10*time.Second || cfg.GeocoderTimeout != 5*time.Second {
		t.Errorf("timeouts = %v %v %v", cfg.SearchCacheTTL, cfg.SearchTimeout, cfg.GeocoderTimeout)
	}
	if cfg.UndatedResultPolicy != "skip" || cfg.StorageBackend != "postgres" {
		t.Errorf("policy = %q, backend = %q", cfg.UndatedResultPolicy, cfg.StorageBackend)
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	setRequired(t)
	t.Setenv("JWT_EXPIRY", "30m")
	t.Setenv("RATE_LIMIT_WINDOW", "120")
	t.Setenv("RATE_LIMIT_REQUESTS", "5")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("UNDATED_RESULT_POLICY", "now")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.JWTExpiry != 30*time.Minute {
		t.Errorf("JWTExpiry = %v", cfg.JWTExpiry)
	}
	if cfg.RateLimitWindow != 2*time.Minute {
		t.Errorf("RateLimitWindow = %v, want bare seconds to parse", cfg.RateLimitWindow)
	}
	if cfg.RateLimitRequests != 5 || !cfg.MinIOUseSSL || cfg.UndatedResultPolicy != "now" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "runon.yaml")
	content := `
port: "9090"
search_cache_ttl: 2h
storage_backend: memory
rabbitmq_exchange: yaml.events
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("RABBITMQ_EXCHANGE", "env.events")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != "9090" || cfg.SearchCacheTTL != 2*time.Hour || cfg.StorageBackend != "memory" {
		t.Errorf("yaml values not applied: %+v", cfg)
	}
	if cfg.RabbitMQExchange != "env.events" {
		t.Errorf("RabbitMQExchange = %q, want env to win", cfg.RabbitMQExchange)
	}
	if cfg.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want default kept", cfg.Host)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad duration", map[string]string{"JWT_EXPIRY": "soon"}},
		{"bad int", map[string]string{"RATE_LIMIT_REQUESTS": "many"}},
		{"missing file", map[string]string{"CONFIG_FILE": "/nonexistent/runon.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_FILE", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := Default()
		c.JWTSecretKey = "s"
		c.GoogleClientID = "g"
		c.AppleClientID = "a"
		c.SearchAPIKey = "k"
		c.SearchEngineID = "e"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing secrets", func(c *Config) { c.JWTSecretKey = ""; c.AppleClientID = "" },
			"Required environment variables not set: JWT_SECRET_KEY, APPLE_CLIENT_ID"},
		{"ttl too short", func(c *Config) { c.SearchCacheTTL = 30 * time.Minute }, "SEARCH_CACHE_TTL"},
		{"ttl too long", func(c *Config) { c.SearchCacheTTL = 25 * time.Hour }, "SEARCH_CACHE_TTL"},
		{"zero expiry", func(c *Config) { c.JWTExpiry = 0 }, "JWT_EXPIRY"},
		{"zero rate", func(c *Config) { c.RateLimitRequests = 0 }, "RATE_LIMIT_REQUESTS"},
		{"bad policy", func(c *Config) { c.UndatedResultPolicy = "today" }, "UNDATED_RESULT_POLICY"},
		{"bad backend", func(c *Config) { c.StorageBackend = "mongo" }, "STORAGE_BACKEND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
