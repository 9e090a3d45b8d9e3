// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for admin middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// TwilioConfig provides settings for the Twilio SMS/voice transport.
type TwilioConfig interface {
	GetTwilioAccountSID() string
	GetTwilioAuthToken() string
	GetTwilioBaseURL() string
	IsTwilioEnabled() bool
}

// WebhookConfig provides settings for inbound webhook validation.
type WebhookConfig interface {
	GetTwilioAuthToken() string
	GetWebhookBaseURL() string
	GetWebhookSignatureRequired() bool
}

// ExtractionConfig provides settings for the LLM field-extraction adapter.
type ExtractionConfig interface {
	GetGeminiAPIKey() string
	GetExtractionModel() string
	GetExtractionTimeout() time.Duration
	GetExtractionFailureAlertThreshold() int
	IsExtractionEnabled() bool
}

// AlertConfig provides settings for the operator alert dispatcher.
type AlertConfig interface {
	GetAlertsDisabled() bool
	GetAlertSeverities() []string
	GetAlertCooldown() time.Duration
	GetOperatorPhone() string
	GetAlertFromNumber() string
	GetOperatorEmail() string
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromAddress() string
	IsAlertSMSEnabled() bool
	IsAlertEmailEnabled() bool
}

// SchedulerConfig provides settings for the asynq scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetStuckScanInterval() time.Duration
	IsSchedulerEnabled() bool
}

// OnboardingConfig provides settings for the onboarding state machine.
type OnboardingConfig interface {
	GetStuckReAlertWindow() time.Duration
	GetPaymentGateAlertAfter() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env             string
	HTTPAddr        string
	DatabaseURL     string
	JWTAccessSecret string
	CORSAllowAll    bool
	CORSOrigins     []string

	TwilioAccountSID         string
	TwilioAuthToken          string
	TwilioBaseURL            string
	WebhookBaseURL           string
	WebhookSignatureRequired bool

	GeminiAPIKey                    string
	ExtractionModel                 string
	ExtractionTimeout               time.Duration
	ExtractionFailureAlertThreshold int

	AlertsDisabled   bool
	AlertSeverities  []string
	AlertCooldown    time.Duration
	OperatorPhone    string
	AlertFromNumber  string
	OperatorEmail    string
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	EmailFromAddress string

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	StuckScanInterval     time.Duration
	StuckReAlertWindow    time.Duration
	PaymentGateAlertAfter time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// TwilioConfig implementation
func (c *Config) GetTwilioAccountSID() string { return c.TwilioAccountSID }
func (c *Config) GetTwilioAuthToken() string  { return c.TwilioAuthToken }
func (c *Config) GetTwilioBaseURL() string    { return c.TwilioBaseURL }
func (c *Config) IsTwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != ""
}

// WebhookConfig implementation
func (c *Config) GetWebhookBaseURL() string         { return c.WebhookBaseURL }
func (c *Config) GetWebhookSignatureRequired() bool { return c.WebhookSignatureRequired }

// ExtractionConfig implementation
func (c *Config) GetGeminiAPIKey() string               { return c.GeminiAPIKey }
func (c *Config) GetExtractionModel() string            { return c.ExtractionModel }
func (c *Config) GetExtractionTimeout() time.Duration   { return c.ExtractionTimeout }
func (c *Config) GetExtractionFailureAlertThreshold() int {
	return c.ExtractionFailureAlertThreshold
}
func (c *Config) IsExtractionEnabled() bool { return c.GeminiAPIKey != "" }

// AlertConfig implementation
func (c *Config) GetAlertsDisabled() bool          { return c.AlertsDisabled }
func (c *Config) GetAlertSeverities() []string     { return c.AlertSeverities }
func (c *Config) GetAlertCooldown() time.Duration  { return c.AlertCooldown }
func (c *Config) GetOperatorPhone() string         { return c.OperatorPhone }
func (c *Config) GetAlertFromNumber() string       { return c.AlertFromNumber }
func (c *Config) GetOperatorEmail() string         { return c.OperatorEmail }
func (c *Config) GetSMTPHost() string              { return c.SMTPHost }
func (c *Config) GetSMTPPort() int                 { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string          { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string          { return c.SMTPPassword }
func (c *Config) GetEmailFromAddress() string      { return c.EmailFromAddress }
func (c *Config) IsAlertSMSEnabled() bool {
	return c.OperatorPhone != "" && c.AlertFromNumber != ""
}
func (c *Config) IsAlertEmailEnabled() bool {
	return c.OperatorEmail != "" && c.SMTPHost != ""
}

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string                 { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool           { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string           { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int            { return c.AsynqConcurrency }
func (c *Config) GetStuckScanInterval() time.Duration { return c.StuckScanInterval }

// IsSchedulerEnabled gates the periodic scan to production. Other
// environments trigger scans on demand through the admin endpoint.
func (c *Config) IsSchedulerEnabled() bool {
	return c.Env == "production" && c.RedisURL != ""
}

// OnboardingConfig implementation
func (c *Config) GetStuckReAlertWindow() time.Duration    { return c.StuckReAlertWindow }
func (c *Config) GetPaymentGateAlertAfter() time.Duration { return c.PaymentGateAlertAfter }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:             getEnv("APP_ENV", "development"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		JWTAccessSecret: getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:    strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true"),
		CORSOrigins:     splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200")),

		TwilioAccountSID:         getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:          getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioBaseURL:            getEnv("TWILIO_BASE_URL", "https://api.twilio.com"),
		WebhookBaseURL:           getEnv("WEBHOOK_BASE_URL", ""),
		WebhookSignatureRequired: strings.EqualFold(getEnv("WEBHOOK_SIGNATURE_REQUIRED", "true"), "true"),

		GeminiAPIKey:                    getEnv("GEMINI_API_KEY", ""),
		ExtractionModel:                 getEnv("EXTRACTION_MODEL", "gemini-2.0-flash"),
		ExtractionTimeout:               mustDuration(getEnv("EXTRACTION_TIMEOUT", "20s")),
		ExtractionFailureAlertThreshold: mustInt(getEnv("EXTRACTION_FAILURE_ALERT_THRESHOLD", "5")),

		AlertsDisabled:   strings.EqualFold(getEnv("ALERTS_DISABLED", "false"), "true"),
		AlertSeverities:  splitCSV(getEnv("ALERT_SEVERITIES", "HIGH,MEDIUM")),
		AlertCooldown:    mustDuration(getEnv("ALERT_COOLDOWN", "24h")),
		OperatorPhone:    getEnv("OPERATOR_ALERT_PHONE", ""),
		AlertFromNumber:  getEnv("ALERT_FROM_NUMBER", ""),
		OperatorEmail:    getEnv("OPERATOR_ALERT_EMAIL", ""),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),

		StuckScanInterval:     mustDuration(getEnv("STUCK_SCAN_INTERVAL", "5m")),
		StuckReAlertWindow:    mustDuration(getEnv("STUCK_REALERT_WINDOW", "6h")),
		PaymentGateAlertAfter: mustDuration(getEnv("PAYMENT_GATE_ALERT_AFTER", "2h")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.WebhookSignatureRequired && cfg.TwilioAuthToken == "" {
		return nil, fmt.Errorf("TWILIO_AUTH_TOKEN is required when WEBHOOK_SIGNATURE_REQUIRED is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}
