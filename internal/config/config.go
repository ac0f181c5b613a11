package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the gateway settings. Values come from defaults, then the
// optional YAML file named by CONFIG_FILE, then environment variables.
type Config struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	JWTSecretKey string        `yaml:"jwt_secret_key"`
	JWTExpiry    time.Duration `yaml:"jwt_expiry"`

	GoogleClientID string `yaml:"google_client_id"`
	AppleClientID  string `yaml:"apple_client_id"`
	AppleJWKSURL   string `yaml:"apple_jwks_url"`

	RateLimitRequests int           `yaml:"rate_limit_requests"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window"`

	SearchAPIKey        string        `yaml:"search_api_key"`
	SearchEngineID      string        `yaml:"search_engine_id"`
	SearchBaseURL       string        `yaml:"search_base_url"`
	SearchTimeout       time.Duration `yaml:"search_timeout"`
	SearchCacheTTL      time.Duration `yaml:"search_cache_ttl"`
	UndatedResultPolicy string        `yaml:"undated_result_policy"`

	GeocoderBaseURL   string        `yaml:"geocoder_base_url"`
	GeocoderUserAgent string        `yaml:"geocoder_user_agent"`
	GeocoderTimeout   time.Duration `yaml:"geocoder_timeout"`

	CalendarBaseURL string `yaml:"calendar_base_url"`

	StorageBackend string `yaml:"storage_backend"`
	DBHost         string `yaml:"db_host"`
	DBPort         string `yaml:"db_port"`
	DBUser         string `yaml:"db_user"`
	DBPassword     string `yaml:"db_password"`
	DBName         string `yaml:"db_name"`
	DBSSLMode      string `yaml:"db_ssl_mode"`

	// Empty RabbitMQURL disables the event bus.
	RabbitMQURL      string `yaml:"rabbitmq_url"`
	RabbitMQExchange string `yaml:"rabbitmq_exchange"`

	// Empty MinIOEndpoint disables profile picture uploads.
	MinIOEndpoint       string `yaml:"minio_endpoint"`
	MinIOPublicEndpoint string `yaml:"minio_public_endpoint"`
	MinIOAccessKey      string `yaml:"minio_access_key"`
	MinIOSecretKey      string `yaml:"minio_secret_key"`
	MinIOBucket         string `yaml:"minio_bucket"`
	MinIOUseSSL         bool   `yaml:"minio_use_ssl"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Host:                "0.0.0.0",
		Port:                "8080",
		LogLevel:            "info",
		JWTExpiry:           time.Hour,
		AppleJWKSURL:        "https://appleid.apple.com/auth/keys",
		RateLimitRequests:   100,
		RateLimitWindow:     60 * time.Second,
		SearchBaseURL:       "https://www.googleapis.com",
		SearchTimeout:       10 * time.Second,
		SearchCacheTTL:      time.Hour,
		UndatedResultPolicy: "skip",
		GeocoderBaseURL:     "https://nominatim.openstreetmap.org",
		GeocoderUserAgent:   "runon-gateway",
		GeocoderTimeout:     5 * time.Second,
		StorageBackend:      "postgres",
		DBHost:              "localhost",
		DBPort:              "5432",
		DBUser:              "postgres",
		DBPassword:          "postgres",
		DBName:              "runon",
		DBSSLMode:           "disable",
		RabbitMQExchange:    "runon.events",
		MinIOBucket:         "runon-profile-pictures",
	}
}

// Load builds the configuration from defaults, the CONFIG_FILE YAML file
// and the environment.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"GATEWAY_HOST":            &c.Host,
		"GATEWAY_PORT":            &c.Port,
		"LOG_LEVEL":               &c.LogLevel,
		"JWT_SECRET_KEY":          &c.JWTSecretKey,
		"GOOGLE_CLIENT_ID":        &c.GoogleClientID,
		"APPLE_CLIENT_ID":         &c.AppleClientID,
		"APPLE_JWKS_URL":          &c.AppleJWKSURL,
		"GOOGLE_SEARCH_API_KEY":   &c.SearchAPIKey,
		"GOOGLE_SEARCH_ENGINE_ID": &c.SearchEngineID,
		"SEARCH_BASE_URL":         &c.SearchBaseURL,
		"UNDATED_RESULT_POLICY":   &c.UndatedResultPolicy,
		"GEOCODER_BASE_URL":       &c.GeocoderBaseURL,
		"GEOCODER_USER_AGENT":     &c.GeocoderUserAgent,
		"CALENDAR_BASE_URL":       &c.CalendarBaseURL,
		"STORAGE_BACKEND":         &c.StorageBackend,
		"DB_HOST":                 &c.DBHost,
		"DB_PORT":                 &c.DBPort,
		"DB_USER":                 &c.DBUser,
		"DB_PASSWORD":             &c.DBPassword,
		"DB_NAME":                 &c.DBName,
		"DB_SSL_MODE":             &c.DBSSLMode,
		"RABBITMQ_URL":            &c.RabbitMQURL,
		"RABBITMQ_EXCHANGE":       &c.RabbitMQExchange,
		"MINIO_ENDPOINT":          &c.MinIOEndpoint,
		"MINIO_PUBLIC_ENDPOINT":   &c.MinIOPublicEndpoint,
		"MINIO_ACCESS_KEY":        &c.MinIOAccessKey,
		"MINIO_SECRET_KEY":        &c.MinIOSecretKey,
		"MINIO_BUCKET_NAME":       &c.MinIOBucket,
	}
	for key, dst := range strs {
		*dst = getEnv(key, *dst)
	}

	durations := map[string]*time.Duration{
		"JWT_EXPIRY":        &c.JWTExpiry,
		"RATE_LIMIT_WINDOW": &c.RateLimitWindow,
		"SEARCH_TIMEOUT":    &c.SearchTimeout,
		"SEARCH_CACHE_TTL":  &c.SearchCacheTTL,
		"GEOCODER_TIMEOUT":  &c.GeocoderTimeout,
	}
	for key, dst := range durations {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
	}

	if v := os.Getenv("RATE_LIMIT_REQUESTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_REQUESTS: %w", err)
		}
		c.RateLimitRequests = n
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		c.MinIOUseSSL = v == "true"
	}
	return nil
}

// Validate reports missing required settings and out-of-range values
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"JWT_SECRET_KEY", c.JWTSecretKey},
		{"GOOGLE_CLIENT_ID", c.GoogleClientID},
		{"APPLE_CLIENT_ID", c.AppleClientID},
		{"GOOGLE_SEARCH_API_KEY", c.SearchAPIKey},
		{"GOOGLE_SEARCH_ENGINE_ID", c.SearchEngineID},
	}
	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("Required environment variables not set: %s", strings.Join(missing, ", "))
	}

	var errs []error
	if c.JWTExpiry <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRY must be positive"))
	}
	if c.RateLimitRequests <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS must be positive"))
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}
	if c.SearchCacheTTL < time.Hour || c.SearchCacheTTL > 24*time.Hour {
		errs = append(errs, fmt.Errorf("SEARCH_CACHE_TTL must be between 1h and 24h, got %s", c.SearchCacheTTL))
	}
	switch strings.ToLower(c.UndatedResultPolicy) {
	case "skip", "now":
	default:
		errs = append(errs, fmt.Errorf("UNDATED_RESULT_POLICY must be skip or now, got %q", c.UndatedResultPolicy))
	}
	switch c.StorageBackend {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be postgres or memory, got %q", c.StorageBackend))
	}
	return errors.Join(errs...)
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration accepts Go duration syntax or a bare number of seconds
func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}
