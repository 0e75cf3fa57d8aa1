// Package config reads the bot's settings from the environment, seeded from
// a .env file when one is present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/PoluyanbIch/SheetQuizBot/internal/export"
	"github.com/PoluyanbIch/SheetQuizBot/internal/service"
)

const (
	BackendGoogle = "google"
	BackendXLSX   = "xlsx"
)

type Config struct {
	TelegramToken string
	TelegramDebug bool

	AllowedEmails []string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	GoogleScopes       []string

	QuestionBackend  string
	SheetsAPIKey     string
	SheetsEndpoint   string
	WorkbookDir      string
	DefaultSheetName string

	LocalStore string
	// HTTPAddr serves /metrics and the OAuth redirect callback.
	HTTPAddr string

	ExportS3 *export.S3Config
}

// Load reads .env (if any) without overriding variables already set, then
// parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	cfg := &Config{
		TelegramToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
		AllowedEmails:      splitList(os.Getenv("QUIZ_ALLOWED_EMAILS")),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
		GoogleScopes:       splitList(os.Getenv("GOOGLE_SCOPES")),
		QuestionBackend:    strings.ToLower(envOr("QUIZ_QUESTION_BACKEND", BackendGoogle)),
		SheetsAPIKey:       os.Getenv("SHEETS_API_KEY"),
		SheetsEndpoint:     os.Getenv("SHEETS_ENDPOINT"),
		WorkbookDir:        envOr("QUIZ_WORKBOOK_DIR", "workbooks"),
		DefaultSheetName:   envOr("QUIZ_DEFAULT_SHEET_NAME", service.DefaultSheetName),
		LocalStore:         envOr("QUIZ_LOCAL_STORE", "sqlite:data/quiz.db"),
		HTTPAddr:           envOr("QUIZ_HTTP_ADDR", os.Getenv("QUIZ_METRICS_ADDR")),
	}

	if cfg.TelegramToken == "" {
		return nil, errors.New("TELEGRAM_BOT_TOKEN environment variable is required")
	}
	if len(cfg.AllowedEmails) == 0 {
		return nil, errors.New("QUIZ_ALLOWED_EMAILS environment variable is required")
	}
	switch cfg.QuestionBackend {
	case BackendGoogle, BackendXLSX:
	default:
		return nil, fmt.Errorf("QUIZ_QUESTION_BACKEND: unknown backend %q (want %s or %s)",
			cfg.QuestionBackend, BackendGoogle, BackendXLSX)
	}

	if cfg.GoogleClientID != "" && cfg.GoogleRedirectURL == "" {
		return nil, errors.New("GOOGLE_REDIRECT_URL is required when GOOGLE_CLIENT_ID is set")
	}
	if cfg.GoogleRedirectURL != "" {
		u, err := url.Parse(cfg.GoogleRedirectURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("GOOGLE_REDIRECT_URL: %q is not an absolute url", cfg.GoogleRedirectURL)
		}
		if cfg.HTTPAddr == "" {
			return nil, errors.New("QUIZ_HTTP_ADDR is required to receive GOOGLE_REDIRECT_URL callbacks")
		}
	}

	var err error
	if cfg.TelegramDebug, err = envBool("TELEGRAM_DEBUG"); err != nil {
		return nil, err
	}

	if bucket := os.Getenv("QUIZ_EXPORT_S3_BUCKET"); bucket != "" {
		pathStyle, err := envBool("QUIZ_EXPORT_S3_PATH_STYLE")
		if err != nil {
			return nil, err
		}
		cfg.ExportS3 = &export.S3Config{
			Bucket:    bucket,
			Region:    os.Getenv("QUIZ_EXPORT_S3_REGION"),
			Endpoint:  os.Getenv("QUIZ_EXPORT_S3_ENDPOINT"),
			PathStyle: pathStyle,

			AccessKeyID:     os.Getenv("QUIZ_EXPORT_S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("QUIZ_EXPORT_S3_SECRET_ACCESS_KEY"),
		}
		if (cfg.ExportS3.AccessKeyID == "") != (cfg.ExportS3.SecretAccessKey == "") {
			return nil, errors.New("QUIZ_EXPORT_S3_ACCESS_KEY_ID and QUIZ_EXPORT_S3_SECRET_ACCESS_KEY must be set together")
		}
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
