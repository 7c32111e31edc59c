package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Session   SessionConfig
	Auth      AuthConfig
	Mail      MailConfig
	Templates TemplatesConfig
	RateLimit RateLimitConfig
	Dispatch  DispatchConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type SessionConfig struct {
	Secret       string
	CookieName   string
	IdleTimeout  time.Duration
	MaxAge       time.Duration
	SecureCookie bool
}

type AuthConfig struct {
	LockoutThreshold   int
	LockoutDuration    time.Duration
	RegistrationLimit  int
	RegistrationWindow time.Duration
	LoginPerMinute     int
	TimingDelayBase    time.Duration
	TimingDelayJitter  time.Duration
	CleanupInterval    time.Duration
}

// MailConfig selects and configures the outbound transport ("smtp", "ses" or "mailgun")
type MailConfig struct {
	Transport      string
	FromAddress    string
	FromName       string
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPassword   string
	SMTPSecurity   string // "tls", "ssl" or "none"
	SMTPTimeout    time.Duration
	SESRegion      string
	MailgunDomain  string
	MailgunAPIKey  string
	MailgunAPIBase string
}

// TemplatesConfig selects where signature templates are read from ("fs" or "s3")
type TemplatesConfig struct {
	Backend     string
	Dir         string
	S3Bucket    string
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Prefix    string
}

// RateLimitConfig selects the counter store backing action rate limits ("memory" or "redis")
type RateLimitConfig struct {
	Store         string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type DispatchConfig struct {
	ItemDelay  time.Duration
	BurstEvery int
	BurstDelay time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	sessionSecret := getEnv("SESSION_SECRET", "")
	if sessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "subsignature"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Session: SessionConfig{
			Secret:       sessionSecret,
			CookieName:   getEnv("SESSION_COOKIE_NAME", "subsignature-session"),
			IdleTimeout:  getEnvAsDuration("SESSION_IDLE_TIMEOUT", 900*time.Second),
			MaxAge:       getEnvAsDuration("SESSION_MAX_AGE", 8*time.Hour),
			SecureCookie: getEnvAsBool("SESSION_SECURE_COOKIE", env == "production"),
		},
		Auth: AuthConfig{
			LockoutThreshold:   getEnvAsInt("LOCKOUT_THRESHOLD", 5),
			LockoutDuration:    getEnvAsDuration("LOCKOUT_DURATION", 900*time.Second),
			RegistrationLimit:  getEnvAsInt("REGISTRATION_LIMIT", 5),
			RegistrationWindow: getEnvAsDuration("REGISTRATION_WINDOW", 900*time.Second),
			LoginPerMinute:     getEnvAsInt("LOGIN_REQUESTS_PER_MINUTE", 20),
			TimingDelayBase:    getEnvAsDuration("TIMING_DELAY_BASE", 200*time.Millisecond),
			TimingDelayJitter:  getEnvAsDuration("TIMING_DELAY_JITTER", 100*time.Millisecond),
			CleanupInterval:    getEnvAsDuration("CLEANUP_INTERVAL", 5*time.Minute),
		},
		Mail: MailConfig{
			Transport:      strings.ToLower(getEnv("MAIL_TRANSPORT", "smtp")),
			FromAddress:    getEnv("MAIL_FROM_ADDRESS", ""),
			FromName:       getEnv("MAIL_FROM_NAME", "SubSignature System"),
			SMTPHost:       getEnv("SMTP_HOST", ""),
			SMTPPort:       getEnvAsInt("SMTP_PORT", 587),
			SMTPUser:       getEnv("SMTP_USER", ""),
			SMTPPassword:   getEnv("SMTP_PASSWORD", ""),
			SMTPSecurity:   strings.ToLower(getEnv("SMTP_SECURITY", "tls")),
			SMTPTimeout:    getEnvAsDuration("SMTP_TIMEOUT", 15*time.Second),
			SESRegion:      getEnv("SES_REGION", "us-east-1"),
			MailgunDomain:  getEnv("MAILGUN_DOMAIN", ""),
			MailgunAPIKey:  getEnv("MAILGUN_API_KEY", ""),
			MailgunAPIBase: getEnv("MAILGUN_API_BASE", "https://api.mailgun.net/v3"),
		},
		Templates: TemplatesConfig{
			Backend:     strings.ToLower(getEnv("TEMPLATE_BACKEND", "fs")),
			Dir:         getEnv("TEMPLATE_DIR", "./templates"),
			S3Bucket:    getEnv("S3_BUCKET", ""),
			S3Endpoint:  getEnv("S3_ENDPOINT", ""),
			S3Region:    getEnv("S3_REGION", ""),
			S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
			S3SecretKey: getEnv("S3_SECRET_KEY", ""),
			S3Prefix:    getEnv("S3_TEMPLATE_PREFIX", "templates/"),
		},
		RateLimit: RateLimitConfig{
			Store:         strings.ToLower(getEnv("RATE_LIMIT_STORE", "memory")),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
		},
		Dispatch: DispatchConfig{
			ItemDelay:  getEnvAsDuration("DISPATCH_ITEM_DELAY", 500*time.Millisecond),
			BurstEvery: getEnvAsInt("DISPATCH_BURST_EVERY", 10),
			BurstDelay: getEnvAsDuration("DISPATCH_BURST_DELAY", 2*time.Second),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateSessionSecret(sessionSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.Mail.validate(); err != nil {
		return nil, err
	}

	if err := cfg.Templates.validate(); err != nil {
		return nil, err
	}

	switch cfg.RateLimit.Store {
	case "memory", "redis":
	default:
		return nil, fmt.Errorf("RATE_LIMIT_STORE must be one of memory, redis (got %q)", cfg.RateLimit.Store)
	}

	return cfg, nil
}

// validateSessionSecret enforces minimum strength for the cookie signing key
func validateSessionSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("SESSION_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *MailConfig) validate() error {
	switch c.Transport {
	case "smtp":
		if c.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required for the smtp transport")
		}
		switch c.SMTPSecurity {
		case "tls", "ssl", "none":
		default:
			return fmt.Errorf("SMTP_SECURITY must be one of tls, ssl, none (got %q)", c.SMTPSecurity)
		}
		if c.FromAddress == "" {
			c.FromAddress = c.SMTPUser
		}
	case "ses":
		if c.FromAddress == "" {
			return fmt.Errorf("MAIL_FROM_ADDRESS is required for the ses transport")
		}
	case "mailgun":
		if c.MailgunDomain == "" || c.MailgunAPIKey == "" {
			return fmt.Errorf("MAILGUN_DOMAIN and MAILGUN_API_KEY are required for the mailgun transport")
		}
		if c.FromAddress == "" {
			c.FromAddress = "noreply@" + c.MailgunDomain
		}
	default:
		return fmt.Errorf("MAIL_TRANSPORT must be one of smtp, ses, mailgun (got %q)", c.Transport)
	}

	if c.FromAddress == "" {
		c.FromAddress = "noreply@localhost"
	}
	return nil
}

func (c *TemplatesConfig) validate() error {
	switch c.Backend {
	case "fs":
		if c.Dir == "" {
			return fmt.Errorf("TEMPLATE_DIR is required for the fs template backend")
		}
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 template backend")
		}
	default:
		return fmt.Errorf("TEMPLATE_BACKEND must be one of fs, s3 (got %q)", c.Backend)
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

// getEnvAsList splits a comma-separated variable, dropping empty entries
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
