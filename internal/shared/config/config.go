package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the MaaS API proxy
type Config struct {
	// Server
	Port      string
	Env       string
	StaticDir string

	// LiteLLM gateway
	LiteLLMAPIBase   string
	LiteLLMPublicURL string
	LiteLLMMasterKey string

	// JupyterHub
	JupyterHubAPIURL    string
	JupyterHubPublicURL string
	JupyterHubAPIToken  string

	// Rate Limiting (disabled unless both are set)
	RedisURL           string
	RateLimitPerMinute int

	// TrustProxyHeaders takes the client IP from X-Forwarded-For/X-Real-IP.
	// Only enable behind a proxy that overwrites them.
	TrustProxyHeaders bool

	// Timeouts
	UpstreamTimeout       time.Duration
	NotebookStatusTimeout time.Duration
}

// JupyterHubConfigured reports whether notebook endpoints can reach JupyterHub.
func (c *Config) JupyterHubConfigured() bool {
	return c.JupyterHubAPIToken != ""
}

// RateLimitEnabled reports whether the Redis-backed limiter should be installed.
func (c *Config) RateLimitEnabled() bool {
	return c.RedisURL != "" && c.RateLimitPerMinute > 0
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                  getEnv("PORT", "3001"),
		Env:                   getEnv("ENV", "development"),
		StaticDir:             getEnv("STATIC_DIR", ""),
		LiteLLMAPIBase:        strings.TrimRight(getEnv("LITELLM_API_BASE", "http://localhost:4000"), "/"),
		LiteLLMMasterKey:      getEnv("LITELLM_MASTER_KEY", ""),
		JupyterHubAPIURL:      strings.TrimRight(getEnv("JUPYTERHUB_API_URL", "http://localhost:8081/hub/api"), "/"),
		JupyterHubAPIToken:    getEnv("JUPYTERHUB_API_TOKEN", ""),
		RedisURL:              getEnv("REDIS_URL", ""),
		RateLimitPerMinute:    getEnvInt("RATE_LIMIT_PER_MINUTE", 0),
		TrustProxyHeaders:     getEnvBool("TRUST_PROXY_HEADERS", false),
		UpstreamTimeout:       getEnvDuration("UPSTREAM_TIMEOUT", 30*time.Second),
		NotebookStatusTimeout: getEnvDuration("NOTEBOOK_STATUS_TIMEOUT", 5*time.Second),
	}
	cfg.LiteLLMPublicURL = strings.TrimRight(getEnv("LITELLM_PUBLIC_URL", cfg.LiteLLMAPIBase), "/")
	cfg.JupyterHubPublicURL = strings.TrimRight(getEnv("JUPYTERHUB_PUBLIC_URL", strings.TrimSuffix(cfg.JupyterHubAPIURL, "/hub/api")), "/")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Port)
	}
	if err := validateBaseURL("LITELLM_API_BASE", c.LiteLLMAPIBase); err != nil {
		return err
	}
	if err := validateBaseURL("JUPYTERHUB_API_URL", c.JupyterHubAPIURL); err != nil {
		return err
	}
	return nil
}

func validateBaseURL(name, value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", name, value)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
