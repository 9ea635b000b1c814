package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	DBSchema       string   `mapstructure:"DB_SCHEMA"`
	MigrationsDir  string   `mapstructure:"MIGRATIONS_DIR"`
	RedisURL       string   `mapstructure:"REDIS_URL"`
	AuthIssuer     string   `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string   `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey string   `mapstructure:"AUTH_SIGNING_KEY"`
	DevStaffID     string   `mapstructure:"DEV_STAFF_ID"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`
	LogLevel       string   `mapstructure:"LOG_LEVEL"`
	LogFile        string   `mapstructure:"LOG_FILE"`
	MetricsEnabled bool     `mapstructure:"METRICS_ENABLED"`

	OTPLength          int `mapstructure:"OTP_LENGTH"`
	OTPTTLSeconds      int `mapstructure:"OTP_TTL_SECONDS"`
	OTPCooldownSeconds int `mapstructure:"OTP_COOLDOWN_SECONDS"`
	OTPMaxAttempts     int `mapstructure:"OTP_MAX_ATTEMPTS"`

	SMSEnabled         bool   `mapstructure:"SMS_ENABLED"`
	SMSIRAPIKey        string `mapstructure:"SMSIR_API_KEY"`
	SMSIRSecretKey     string `mapstructure:"SMSIR_SECRET_KEY"`
	SMSIROTPTemplateID string `mapstructure:"SMSIR_OTP_TEMPLATE_ID"`
	PhoneDefaultRegion string `mapstructure:"PHONE_DEFAULT_REGION"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "DB_SCHEMA",
	"MIGRATIONS_DIR", "REDIS_URL", "AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
	"DEV_STAFF_ID", "CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "LOG_LEVEL",
	"LOG_FILE", "OTP_LENGTH", "OTP_TTL_SECONDS", "OTP_COOLDOWN_SECONDS", "OTP_MAX_ATTEMPTS",
	"SMS_ENABLED", "SMSIR_API_KEY", "SMSIR_SECRET_KEY", "SMSIR_OTP_TEMPLATE_ID",
	"PHONE_DEFAULT_REGION", "METRICS_ENABLED",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("DEV_STAFF_ID", "00000000-0000-0000-0000-000000000001")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("OTP_LENGTH", 6)
	v.SetDefault("OTP_TTL_SECONDS", 300)
	v.SetDefault("OTP_COOLDOWN_SECONDS", 60)
	v.SetDefault("OTP_MAX_ATTEMPTS", 5)
	v.SetDefault("SMS_ENABLED", false)
	v.SetDefault("PHONE_DEFAULT_REGION", "KE")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) OTPTTL() time.Duration { return time.Duration(c.OTPTTLSeconds) * time.Second }
func (c *Config) OTPCooldown() time.Duration {
	return time.Duration(c.OTPCooldownSeconds) * time.Second
}

// Validate checks that the configuration is safe to run. Outside development
// a signing key of at least 32 bytes is required so bearer tokens are
// enforced.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if len(c.AuthSigningKey) < 32 {
			return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes when ENV=%q", c.Env)
		}
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when ENV=%q", c.Env)
		}
	}
	if c.OTPLength < 4 || c.OTPLength > 10 {
		return fmt.Errorf("OTP_LENGTH must be between 4 and 10, got %d", c.OTPLength)
	}
	if c.OTPTTLSeconds <= 0 || c.OTPCooldownSeconds <= 0 {
		return fmt.Errorf("OTP_TTL_SECONDS and OTP_COOLDOWN_SECONDS must be positive")
	}
	if c.OTPMaxAttempts <= 0 {
		return fmt.Errorf("OTP_MAX_ATTEMPTS must be positive")
	}
	if c.SMSEnabled && (c.SMSIRAPIKey == "" || c.SMSIROTPTemplateID == "") {
		return fmt.Errorf("SMSIR_API_KEY and SMSIR_OTP_TEMPLATE_ID are required when SMS_ENABLED is true")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
