package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var ErrEmptyEnvironmentVariable = errors.New("empty environment variable")

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	DocumentDB DocumentDBConfig
	Auth       AuthConfig
	Tenant     TenantConfig
	Services   ServicesConfig
	Redis      RedisConfig
	Push       PushConfig
	ImageProxy ImageProxyConfig
	Server     ServerConfig
}

// DatabaseConfig holds relational database connection settings
type DatabaseConfig struct {
	Host     string
	Username string
	Password string
	Name     string
}

// ConnectionString builds the postgres DSN from the individual settings
func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s", d.Username, d.Password, d.Host, d.Name)
}

// DocumentDBConfig holds the document store connection settings
type DocumentDBConfig struct {
	URI      string
	Database string
}

// AuthConfig holds authentication-related configuration
type AuthConfig struct {
	JWTSecret    string
	SignupSecret string
}

// TenantConfig holds tenant resolution settings
type TenantConfig struct {
	// DefaultCode is returned when no binding, header or claim matches.
	// Empty means unresolved requests are rejected.
	DefaultCode string
	// RootDomain enables <code>.<root-domain> subdomain resolution when set.
	RootDomain string
}

// ServicesConfig holds external service credentials
type ServicesConfig struct {
	FCMCredentialsFile string
	ResendAPIKey       string
	DefaultEmailSender string
}

// RedisConfig holds optional Redis settings for the tenant resolve cache
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// PushConfig holds notice push routing settings. In test mode topics get a
// _TEST suffix so staging announcements never reach production devices.
type PushConfig struct {
	EventChannelID     string
	EmergencyChannelID string
	NoticeChannelID    string
	TestMode           bool
}

// ImageProxyConfig holds the outbound image proxy allow-list
type ImageProxyConfig struct {
	AllowHosts    []string
	AllowSuffixes []string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int
}

// Load reads and validates all required environment variables
func Load() (*Config, error) {
	// Load env.local in non-production environments
	if os.Getenv("GO_ENV") != "production" {
		if err := godotenv.Load("env.local"); err != nil {
			return nil, fmt.Errorf("failed to load env.local: %w", err)
		}
	}

	cfg := &Config{}

	var err error
	if cfg.Database.Host, err = requireEnv("DB_HOST"); err != nil {
		return nil, err
	}
	if cfg.Database.Username, err = requireEnv("DB_USERNAME"); err != nil {
		return nil, err
	}
	if cfg.Database.Password, err = requireEnv("DB_PASSWORD"); err != nil {
		return nil, err
	}
	if cfg.Database.Name, err = requireEnv("DB_NAME"); err != nil {
		return nil, err
	}

	if cfg.DocumentDB.URI, err = requireEnv("MONGO_URI"); err != nil {
		return nil, err
	}
	cfg.DocumentDB.Database = envOrDefault("MONGO_DATABASE", "portal")

	if cfg.Auth.JWTSecret, err = requireEnv("JWT_SECRET"); err != nil {
		return nil, err
	}
	cfg.Auth.SignupSecret = os.Getenv("ADMIN_SIGNUP_SECRET")

	cfg.Tenant.DefaultCode = os.Getenv("TENANT_DEFAULT_CODE")
	cfg.Tenant.RootDomain = os.Getenv("TENANT_ROOT_DOMAIN")

	if cfg.Services.FCMCredentialsFile, err = requireEnv("FCM_CREDENTIALS_FILE"); err != nil {
		return nil, err
	}
	if cfg.Services.ResendAPIKey, err = requireEnv("RESEND_API_KEY"); err != nil {
		return nil, err
	}
	cfg.Services.DefaultEmailSender = envOrDefault("DEFAULT_EMAIL_SENDER", "no-reply@portal.local")

	cfg.Redis.Enabled = os.Getenv("REDIS_ENABLED") == "true"
	if cfg.Redis.Enabled {
		if cfg.Redis.Host, err = requireEnv("REDIS_HOST"); err != nil {
			return nil, err
		}
		cfg.Redis.Port = envIntOrDefault("REDIS_PORT", 6379)
		cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
		cfg.Redis.DB = envIntOrDefault("REDIS_DB", 0)
	}

	cfg.Push.EventChannelID = envOrDefault("EVENT_CHANNEL_ID", "event-channel")
	cfg.Push.EmergencyChannelID = envOrDefault("EMERGENCY_CHANNEL_ID", "emergency-channel")
	cfg.Push.NoticeChannelID = envOrDefault("NOTICE_CHANNEL_ID", "notice-channel")
	cfg.Push.TestMode = os.Getenv("PUSH_TEST_MODE") == "true"

	cfg.ImageProxy.AllowHosts = splitCSV(envOrDefault("IMG_PROXY_ALLOW_HOSTS",
		"images.unsplash.com,postfiles.pstatic.net"))
	cfg.ImageProxy.AllowSuffixes = splitCSV(envOrDefault("IMG_PROXY_ALLOW_SUFFIXES",
		".pstatic.net,.naver.com,.naver.net"))

	cfg.Server.Port = envIntOrDefault("PORT", 8080)

	return cfg, nil
}

func requireEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyEnvironmentVariable, key)
	}
	return value, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
