package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"server/internal/domain"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	JWTSecret   string
	GeoIPDBPath string

	DBMaxConns    int
	RunMigrations bool

	// Retention policy durations, in days.
	InactivityWarningDays int
	InactivityGraceDays   int
	DeletionPeriodDays    int
	TransactionDays       int
	InsightDays           int
	BankDisconnectDays    int

	// Mailer (SES). Empty region disables the mailer capability.
	SESRegion string
	MailFrom  string

	// Plaid. Empty client id disables the bank-feed capability.
	PlaidClientID string
	PlaidSecret   string
	PlaidEnv      string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	ExportStoragePath string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int

	QuotaSweepInterval     time.Duration
	RetentionSweepInterval time.Duration

	// HasAuditLog degrades audit writes to warnings and audit reads to empty
	// results in environments where the audit table is not provisioned.
	HasAuditLog bool
}

// Capabilities are optional subsystems resolved once at startup and passed to
// constructors, never probed per request.
type Capabilities struct {
	HasAuditLog bool
	HasBankFeed bool
	HasMailer   bool
}

// Capabilities derives the optional-subsystem flags from configuration.
func (c *Config) Capabilities() Capabilities {
	return Capabilities{
		HasAuditLog: c.HasAuditLog,
		HasBankFeed: c.PlaidClientID != "",
		HasMailer:   c.SESRegion != "" && c.MailFrom != "",
	}
}

// RetentionRules materializes the configured policy durations.
func (c *Config) RetentionRules() domain.RetentionRules {
	return domain.RetentionRules{
		InactivityWarningDays: c.InactivityWarningDays,
		InactivityGraceDays:   c.InactivityGraceDays,
		DeletionPeriodDays:    c.DeletionPeriodDays,
		TransactionDays:       c.TransactionDays,
		InsightDays:           c.InsightDays,
		BankDisconnectDays:    c.BankDisconnectDays,
	}
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		GeoIPDBPath: os.Getenv("GEOIP_DB_PATH"),

		DBMaxConns:    getEnvInt("DB_MAX_CONNS", 10),
		RunMigrations: getEnvBool("RUN_MIGRATIONS", false),

		InactivityWarningDays: getEnvInt("RETENTION_INACTIVITY_WARNING_DAYS", 365),
		InactivityGraceDays:   getEnvInt("RETENTION_INACTIVITY_GRACE_DAYS", 30),
		DeletionPeriodDays:    getEnvInt("RETENTION_DELETION_PERIOD_DAYS", 30),
		TransactionDays:       getEnvInt("RETENTION_TRANSACTION_DAYS", 730),
		InsightDays:           getEnvInt("RETENTION_INSIGHT_DAYS", 365),
		BankDisconnectDays:    getEnvInt("RETENTION_BANK_DISCONNECT_DAYS", 90),

		SESRegion: os.Getenv("SES_REGION"),
		MailFrom:  os.Getenv("MAIL_FROM"),

		PlaidClientID: os.Getenv("PLAID_CLIENT_ID"),
		PlaidSecret:   os.Getenv("PLAID_SECRET"),
		PlaidEnv:      getEnv("PLAID_ENV", "sandbox"),

		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),

		ExportStoragePath: getEnv("EXPORT_STORAGE_PATH", "./exports"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		QuotaSweepInterval:     time.Minute * time.Duration(getEnvInt("QUOTA_SWEEP_MINUTES", 60)),
		RetentionSweepInterval: time.Hour * time.Duration(getEnvInt("RETENTION_SWEEP_HOURS", 24)),

		HasAuditLog: getEnvBool("AUDIT_LOG_ENABLED", true),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
