package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	BusinessName     string
	BusinessTimezone string
	CatalogFile      string
	DefaultServiceID string

	ConversationTTL  time.Duration
	AlternativeCount int

	TwilioAccountSID    string
	TwilioAuthToken     string
	TwilioFromNumber    string
	TwilioSkipSignature bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	GoogleCalendarID        string
	GoogleCredentialsJSON   string
	GoogleCredentialsFile   string
	CalendarTimeout         time.Duration
	CalendarFailClosedReads bool

	RemindersEnabled     bool
	ReminderLead         time.Duration
	ReminderPollInterval time.Duration

	SendGridAPIKey          string
	SendGridFromEmail       string
	SendGridFromName        string
	OperatorEmail           string
	OperatorNotifyConfirmed bool

	RateLimitPerMinute int
	RateLimitBurst     int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		BusinessName:     getEnv("BUSINESS_NAME", "Barbería d' Leo"),
		BusinessTimezone: getEnv("BUSINESS_TIMEZONE", "America/Mexico_City"),
		CatalogFile:      getEnv("CATALOG_FILE", ""),
		DefaultServiceID: getEnv("DEFAULT_SERVICE_ID", "corte-cabello"),

		ConversationTTL:  getEnvAsDuration("CONVERSATION_TTL", 30*time.Minute),
		AlternativeCount: getEnvAsInt("ALTERNATIVE_SLOTS", 3),

		TwilioAccountSID:    getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:     getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:    getEnv("TWILIO_FROM_NUMBER", ""),
		TwilioSkipSignature: getEnvAsBool("TWILIO_SKIP_SIGNATURE", false),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		GoogleCalendarID:        getEnv("GOOGLE_CALENDAR_ID", ""),
		GoogleCredentialsJSON:   getEnv("GOOGLE_CREDENTIALS_JSON", ""),
		GoogleCredentialsFile:   getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		CalendarTimeout:         getEnvAsDuration("CALENDAR_TIMEOUT", 8*time.Second),
		CalendarFailClosedReads: getEnvAsBool("CALENDAR_FAIL_CLOSED_READS", false),

		RemindersEnabled:     getEnvAsBool("REMINDERS_ENABLED", true),
		ReminderLead:         getEnvAsDuration("REMINDER_LEAD", 5*time.Hour),
		ReminderPollInterval: getEnvAsDuration("REMINDER_POLL_INTERVAL", time.Minute),

		SendGridAPIKey:          getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail:       getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:        getEnv("SENDGRID_FROM_NAME", "Barbería d' Leo"),
		OperatorEmail:           getEnv("OPERATOR_EMAIL", ""),
		OperatorNotifyConfirmed: getEnvAsBool("OPERATOR_NOTIFY_CONFIRMED", false),

		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 60),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 10),
	}
}

// GoogleCalendarEnabled reports whether a real calendar backend is configured.
func (c *Config) GoogleCalendarEnabled() bool {
	return c.GoogleCalendarID != "" && (c.GoogleCredentialsJSON != "" || c.GoogleCredentialsFile != "")
}

// SendGridEnabled reports whether operator email alerts can be delivered.
func (c *Config) SendGridEnabled() bool {
	return c.SendGridAPIKey != "" && c.SendGridFromEmail != "" && c.OperatorEmail != ""
}

// TwilioEnabled reports whether outbound Twilio messaging is configured.
func (c *Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
