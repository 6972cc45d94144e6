package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	ServerPort    int           `yaml:"port"`
	AppEnv        string        `yaml:"app_env"`
	StoreDriver   string        `yaml:"store_driver"`  // sqlite or postgres
	DatabasePath  string        `yaml:"database_path"` // SQLite file
	DatabaseURL   string        `yaml:"database_url"`  // Postgres connection string
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	ResetTokenTTL time.Duration `yaml:"reset_token_ttl"`
	FrontendURL   string        `yaml:"frontend_url"`
	CORSOrigins   []string      `yaml:"cors_origins"`

	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For and
	// X-Real-IP headers are believed. Empty means the peer address is used.
	TrustedProxies []string `yaml:"trusted_proxies"`

	RedisURL      string        `yaml:"redis_url"`
	VerifierURL   string        `yaml:"verifier_url"`
	NotifyTimeout time.Duration `yaml:"notify_timeout"`
	PurgeSchedule string        `yaml:"purge_schedule"`
	LogLevel      string        `yaml:"log_level"`
	LogFormat     string        `yaml:"log_format"`
	SMTP          SMTPConfig    `yaml:"smtp"`
}

// SMTPConfig configures outbound mail. An empty Host disables delivery.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// IsProduction reports whether the app runs with production settings.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// DataSource returns the connection string for the configured store driver.
func (c *Config) DataSource() string {
	if c.StoreDriver == "postgres" {
		return c.DatabaseURL
	}
	return c.DatabasePath
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE, and environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:    8000,
		AppEnv:        "development",
		StoreDriver:   "sqlite",
		DatabasePath:  "./alumni.db",
		TokenTTL:      30 * time.Minute,
		ResetTokenTTL: time.Hour,
		FrontendURL:   "http://localhost:5173",
		CORSOrigins:   []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		NotifyTimeout: 10 * time.Second,
		PurgeSchedule: "@every 15m",
		LogLevel:      "info",
		LogFormat:     "console",
		SMTP:          SMTPConfig{Port: 587},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	var err error
	if cfg.ServerPort, err = getInt("PORT", cfg.ServerPort); err != nil {
		return nil, err
	}
	if cfg.SMTP.Port, err = getInt("SMTP_PORT", cfg.SMTP.Port); err != nil {
		return nil, err
	}
	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", cfg.TokenTTL); err != nil {
		return nil, err
	}
	if cfg.ResetTokenTTL, err = getDuration("RESET_TOKEN_TTL", cfg.ResetTokenTTL); err != nil {
		return nil, err
	}
	if cfg.NotifyTimeout, err = getDuration("NOTIFY_TIMEOUT", cfg.NotifyTimeout); err != nil {
		return nil, err
	}

	cfg.AppEnv = getEnv("APP_ENV", cfg.AppEnv)
	cfg.StoreDriver = getEnv("STORE_DRIVER", cfg.StoreDriver)
	cfg.DatabasePath = getEnv("DATABASE_PATH", cfg.DatabasePath)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.FrontendURL = getEnv("FRONTEND_URL", cfg.FrontendURL)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.VerifierURL = getEnv("VERIFIER_URL", cfg.VerifierURL)
	cfg.PurgeSchedule = getEnv("PURGE_SCHEDULE", cfg.PurgeSchedule)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.SMTP.Host = getEnv("SMTP_SERVER", cfg.SMTP.Host)
	cfg.SMTP.Username = getEnv("SMTP_USER", cfg.SMTP.Username)
	cfg.SMTP.Password = getEnv("SMTP_PASS", cfg.SMTP.Password)
	cfg.SMTP.From = getEnv("SMTP_FROM", cfg.SMTP.From)
	if origins := getEnv("CORS_ORIGINS", ""); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}
	if proxies := getEnv("TRUSTED_PROXIES", ""); proxies != "" {
		cfg.TrustedProxies = splitList(proxies)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("STORE_DRIVER must be sqlite or postgres, got %q", c.StoreDriver)
	}
	if c.StoreDriver == "postgres" && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for the postgres store")
	}
	if c.JWTSecret == "" {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		c.JWTSecret = "development-secret"
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if _, err := c.TrustedNetworks(); err != nil {
		return err
	}
	return nil
}

// TrustedNetworks parses TrustedProxies. A bare IP is a single-address network.
func (c *Config) TrustedNetworks() ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(c.TrustedProxies))
	for _, entry := range c.TrustedProxies {
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q", entry)
			}
			bits := 8 * net.IPv6len
			if ip.To4() != nil {
				ip, bits = ip.To4(), 8*net.IPv4len
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, network, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", entry, err)
		}
		nets = append(nets, network)
	}
	return nets, nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
