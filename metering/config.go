package metering

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvAPIKey    = "REVENIUM_METERING_API_KEY"
	EnvBaseURL   = "REVENIUM_METERING_BASE_URL"
	EnvTimeout   = "REVENIUM_METERING_TIMEOUT"
	EnvQueueSize = "REVENIUM_METERING_QUEUE_SIZE"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultQueueSize = 256
)

// ErrMissingAPIKey indicates that no metering API key was configured.
var ErrMissingAPIKey = errors.New("metering: " + EnvAPIKey + " is not set")

// Config holds the metering backend settings.
type Config struct {
	// APIKey authenticates against the metering backend. Required.
	APIKey string
	// BaseURL is normalized through EnsureMeterInURL; empty means the
	// hosted default.
	BaseURL string
	// Timeout bounds a single submission attempt.
	Timeout time.Duration
	// QueueSize bounds the number of pending submissions before new
	// records are dropped.
	QueueSize int
}

func (c Config) withDefaults() Config {
	c.BaseURL = EnsureMeterInURL(c.BaseURL)
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	return c
}

// ConfigFromEnv builds a Config from the environment. It returns
// ErrMissingAPIKey when the API key is absent.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		APIKey:  os.Getenv(EnvAPIKey),
		BaseURL: os.Getenv(EnvBaseURL),
	}
	if cfg.APIKey == "" {
		return Config{}, ErrMissingAPIKey
	}
	if raw := os.Getenv(EnvTimeout); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			cfg.Timeout = time.Duration(secs) * time.Second
		}
	}
	if raw := os.Getenv(EnvQueueSize); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cfg.QueueSize = n
		}
	}
	return cfg.withDefaults(), nil
}
