package analytics

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// Path is the NDVI endpoint on the analytics backend.
const Path = "/api/ndvi/"

// DefaultBaseURL is the backend address used for local development.
const DefaultBaseURL = "http://127.0.0.1:8000"

// Config locates the analytics backend.
type Config struct {
	BaseURL string
	// Timeout bounds a single request; zero means no client-side timeout.
	Timeout time.Duration
}

// ConfigFromEnv reads NDVI_API_URL and NDVI_API_TIMEOUT.
func ConfigFromEnv() Config {
	cfg := Config{BaseURL: os.Getenv("NDVI_API_URL")}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if raw := os.Getenv("NDVI_API_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d >= 0 {
			cfg.Timeout = d
		}
	}
	return cfg
}

// Endpoint resolves the full NDVI URL.
func (c Config) Endpoint() (string, error) {
	base := strings.TrimSpace(c.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse analytics base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("analytics base url %q must be http or https", base)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + Path
	return u.String(), nil
}
