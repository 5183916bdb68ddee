package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPort                = "3000"
	defaultSessionCookieName   = "auth"
	defaultFrontendOrigin      = "http://localhost:3000"
	defaultUploadDir           = "uploads"
	defaultUploadBackend       = "local"
	defaultGCSUploadPrefix     = "chat-uploads"
	defaultUpstreamTimeoutSecs = 60
	defaultMaxMultipartBytes   = 6 * 1024 * 1024
	defaultOpenAIBaseURL       = "https://api.openai.com/v1"
	defaultAnthropicBaseURL    = "https://api.anthropic.com/v1"
	defaultGeminiBaseURL       = "https://generativelanguage.googleapis.com/"
	defaultGroqBaseURL         = "https://api.groq.com/openai/v1"
	defaultClientBaseURL       = "http://localhost:3000"
	defaultClientTimeoutSecs   = 90
	developmentEnvironment     = "development"
	uploadBackendGCS           = "gcs"
	uploadBackendLocal         = "local"
	minUpstreamTimeoutSecs     = 1
	maxUpstreamTimeoutSecs     = 600
	minMultipartBytes          = 5*1024*1024 + 1
)

type Config struct {
	Port              string
	Environment       string
	AllowedOrigins    []string
	CookieSecure      bool
	SessionCookieName string
	GoogleClientID    string
	OpenAIBaseURL     string
	AnthropicBaseURL  string
	GeminiBaseURL     string
	GroqBaseURL       string
	GroqAPIKey        string
	ModelsFile        string
	UploadBackend     string
	LocalUploadDir    string
	GCSUploadBucket   string
	GCSUploadPrefix   string
	UpstreamTimeout   time.Duration
	MaxMultipartBytes int64
}

func (c Config) ListenAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) UsesGCSUploads() bool {
	return c.UploadBackend == uploadBackendGCS
}

func Load() (Config, error) {
	cfg := Config{
		Port:              envOrDefault("PORT", defaultPort),
		Environment:       envOrDefault("APP_ENV", developmentEnvironment),
		SessionCookieName: envOrDefault("SESSION_COOKIE_NAME", defaultSessionCookieName),
		GoogleClientID:    strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID")),
		OpenAIBaseURL:     envOrDefault("OPENAI_BASE_URL", defaultOpenAIBaseURL),
		AnthropicBaseURL:  envOrDefault("ANTHROPIC_BASE_URL", defaultAnthropicBaseURL),
		GeminiBaseURL:     envOrDefault("GEMINI_BASE_URL", defaultGeminiBaseURL),
		GroqBaseURL:       envOrDefault("GROQ_BASE_URL", defaultGroqBaseURL),
		GroqAPIKey:        strings.TrimSpace(os.Getenv("GROQ_API_KEY")),
		ModelsFile:        strings.TrimSpace(os.Getenv("MODELS_FILE")),
		UploadBackend:     strings.ToLower(envOrDefault("UPLOAD_BACKEND", defaultUploadBackend)),
		LocalUploadDir:    envOrDefault("UPLOAD_DIR", defaultUploadDir),
		GCSUploadBucket:   strings.TrimSpace(os.Getenv("GCS_UPLOAD_BUCKET")),
		GCSUploadPrefix:   envOrDefault("GCS_UPLOAD_PREFIX", defaultGCSUploadPrefix),
		MaxMultipartBytes: int64(intOrDefault("MAX_MULTIPART_BYTES", defaultMaxMultipartBytes)),
	}

	cfg.CookieSecure = boolOrDefault("COOKIE_SECURE", cfg.Environment != developmentEnvironment)

	timeoutSecs := intOrDefault("UPSTREAM_TIMEOUT_SECONDS", defaultUpstreamTimeoutSecs)
	if timeoutSecs < minUpstreamTimeoutSecs || timeoutSecs > maxUpstreamTimeoutSecs {
		return Config{}, fmt.Errorf("UPSTREAM_TIMEOUT_SECONDS must be between %d and %d", minUpstreamTimeoutSecs, maxUpstreamTimeoutSecs)
	}
	cfg.UpstreamTimeout = time.Duration(timeoutSecs) * time.Second

	if cfg.MaxMultipartBytes < minMultipartBytes {
		return Config{}, errors.New("MAX_MULTIPART_BYTES must leave room for a 5 MiB attachment")
	}

	origins := parseList(envOrDefault("CORS_ALLOWED_ORIGINS", defaultFrontendOrigin))
	if len(origins) == 0 {
		return Config{}, errors.New("CORS_ALLOWED_ORIGINS must include at least one origin")
	}
	cfg.AllowedOrigins = origins

	switch cfg.UploadBackend {
	case uploadBackendLocal:
	case uploadBackendGCS:
		if cfg.GCSUploadBucket == "" {
			return Config{}, errors.New("GCS_UPLOAD_BUCKET is required when UPLOAD_BACKEND=gcs")
		}
	default:
		return Config{}, fmt.Errorf("unsupported UPLOAD_BACKEND %q", cfg.UploadBackend)
	}

	return cfg, nil
}

// ClientConfig configures the terminal chat client.
type ClientConfig struct {
	BaseURL      string
	SessionToken string
	Timeout      time.Duration
}

func LoadClient() (ClientConfig, error) {
	cfg := ClientConfig{
		BaseURL:      strings.TrimRight(envOrDefault("CHAT_BASE_URL", defaultClientBaseURL), "/"),
		SessionToken: strings.TrimSpace(os.Getenv("CHAT_SESSION_TOKEN")),
	}

	timeoutSecs := intOrDefault("CHAT_TIMEOUT_SECONDS", defaultClientTimeoutSecs)
	if timeoutSecs <= 0 {
		return ClientConfig{}, errors.New("CHAT_TIMEOUT_SECONDS must be > 0")
	}
	cfg.Timeout = time.Duration(timeoutSecs) * time.Second

	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return ClientConfig{}, fmt.Errorf("CHAT_BASE_URL must be an http(s) url, got %q", cfg.BaseURL)
	}
	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func boolOrDefault(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func intOrDefault(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseList(raw string) []string {
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
