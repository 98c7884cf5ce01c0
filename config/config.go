package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AppConfig is the runtime configuration of the consent service.
type AppConfig struct {
	Port        string
	CorsOrigins []string

	// StorageDriver is "mysql" or "memory".
	StorageDriver string

	// Secret keys every HMAC the service issues: validation hashes and file
	// pointers.
	Secret string

	// AdminKeyHash is the bcrypt hash of the admin API key.
	AdminKeyHash string

	PublicURL  string
	UploadDir  string
	GCInterval time.Duration

	SMTP SMTPConfig
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	FromName string
	From     string
}

// Configured reports whether enough SMTP settings are present to dial.
func (s SMTPConfig) Configured() bool {
	return s.Host != "" && s.Port != 0
}

// Load reads .env (optional), an optional config file and the environment.
// Environment variables take precedence.
func Load() (AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info(".env not found; continuing with environment variables")
	}

	v := viper.New()
	v.SetConfigName("form-consent")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("STORAGE_DRIVER", "mysql")
	v.SetDefault("PUBLIC_URL", "http://localhost:8080")
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("GC_INTERVAL", "1h")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_FROM_NAME", "Form Consent")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return AppConfig{}, err
		}
	}

	cfg := AppConfig{
		Port:          v.GetString("PORT"),
		CorsOrigins:   parseList(v.GetString("CORS_ORIGINS")),
		StorageDriver: strings.ToLower(strings.TrimSpace(v.GetString("STORAGE_DRIVER"))),
		Secret:        strings.TrimSpace(v.GetString("FORM_CONSENT_SECRET")),
		AdminKeyHash:  strings.TrimSpace(v.GetString("ADMIN_API_KEY_HASH")),
		PublicURL:     strings.TrimRight(v.GetString("PUBLIC_URL"), "/"),
		UploadDir:     v.GetString("UPLOAD_DIR"),
		GCInterval:    v.GetDuration("GC_INTERVAL"),
		SMTP: SMTPConfig{
			Host:     strings.TrimSpace(v.GetString("SMTP_HOST")),
			Port:     v.GetInt("SMTP_PORT"),
			Username: v.GetString("SMTP_USERNAME"),
			Password: v.GetString("SMTP_PASSWORD"),
			FromName: v.GetString("SMTP_FROM_NAME"),
			From:     v.GetString("SMTP_FROM"),
		},
	}
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.Username
	}
	return cfg, nil
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{"*"}
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
