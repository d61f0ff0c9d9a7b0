package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	AuthModeGateway = "gateway"
	AuthModeJWT     = "jwt"
)

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CDNBaseURL      string
}

// Enabled reports whether enough is set to talk to the bucket.
func (r R2Config) Enabled() bool {
	return r.AccountID != "" && r.AccessKeyID != "" && r.AccessKeySecret != "" && r.Bucket != ""
}

type Config struct {
	Port           string
	DatabaseURL    string
	AuthMode       string
	GatewayToken   string
	JWTSecret      string
	AllowedOrigins []string
	SweepInterval  time.Duration
	UploadDir      string
	R2             R2Config
	SyncServiceURL string
	SyncEndpoint   string
	SyncToken      string
	SyncInterval   time.Duration
	LogLevel       string
	LogFormat      string
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found, reading environment variables directly")
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:           getenv("PORT", "5200"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		AuthMode:       strings.ToLower(getenv("AUTH_MODE", AuthModeGateway)),
		GatewayToken:   os.Getenv("GATEWAY_SERVICE_TOKEN"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		AllowedOrigins: splitList(getenv("ALLOWED_ORIGINS", "http://localhost:3000")),
		UploadDir:      getenv("UPLOAD_DIR", "uploads"),
		R2: R2Config{
			AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
			Bucket:          os.Getenv("R2_BUCKET_NAME"),
			CDNBaseURL:      os.Getenv("CDN_BASE_URL"),
		},
		SyncServiceURL: os.Getenv("SYNC_SERVICE_URL"),
		SyncEndpoint:   getenv("SYNC_ENDPOINT_PATH", "/api/v1/public/profiles"),
		SyncToken:      os.Getenv("SYNC_SERVICE_TOKEN"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogFormat:      strings.ToLower(getenv("LOG_FORMAT", "text")),
	}

	var err error
	if cfg.SweepInterval, err = duration("SWEEP_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.SyncInterval, err = duration("SYNC_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return nil, fmt.Errorf("PORT must be numeric, got %q", cfg.Port)
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL environment variable not set")
	}
	if cfg.SyncServiceURL != "" && cfg.SyncToken == "" {
		return nil, errors.New("SYNC_SERVICE_TOKEN is required when SYNC_SERVICE_URL is set")
	}
	switch cfg.AuthMode {
	case AuthModeGateway:
		if cfg.GatewayToken == "" {
			return nil, errors.New("GATEWAY_SERVICE_TOKEN is not set, service cannot authenticate the gateway")
		}
	case AuthModeJWT:
		if cfg.JWTSecret == "" {
			return nil, errors.New("JWT_SECRET is required when AUTH_MODE=jwt")
		}
	default:
		return nil, fmt.Errorf("unknown AUTH_MODE %q", cfg.AuthMode)
	}
	return cfg, nil
}

// Logger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) Logger() *logrus.Logger {
	log := logrus.New()
	if c.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		log.WithField("level", c.LogLevel).Warn("unknown LOG_LEVEL, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, raw)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
