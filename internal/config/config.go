// Package config loads console and mock API settings from the environment,
// with an optional .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	ConsolePort string
	MockAPIPort string
	LogLevel    string

	APIBaseURL string
	APITimeout time.Duration

	BreakerEnabled     bool
	BreakerMaxFailures int
	BreakerTimeout     time.Duration
	BreakerMaxRequests int

	KafkaBrokers string
	KafkaTopic   string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("CONSOLE_PORT", "8080")
	v.SetDefault("MOCK_API_PORT", "8081")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("API_BASE_URL", "http://localhost:8081")
	v.SetDefault("API_TIMEOUT", "0s")
	v.SetDefault("CONSOLE_BREAKER_ENABLED", false)
	v.SetDefault("CONSOLE_BREAKER_MAX_FAILURES", 5)
	v.SetDefault("CONSOLE_BREAKER_TIMEOUT", "30s")
	v.SetDefault("CONSOLE_BREAKER_MAX_REQUESTS", 1)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "console.form.actions")
}

// Load reads .env if present, then the process environment. Variables
// already set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	cfg := &Config{
		ConsolePort:        v.GetString("CONSOLE_PORT"),
		MockAPIPort:        v.GetString("MOCK_API_PORT"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		APIBaseURL:         v.GetString("API_BASE_URL"),
		APITimeout:         v.GetDuration("API_TIMEOUT"),
		BreakerEnabled:     v.GetBool("CONSOLE_BREAKER_ENABLED"),
		BreakerMaxFailures: v.GetInt("CONSOLE_BREAKER_MAX_FAILURES"),
		BreakerTimeout:     v.GetDuration("CONSOLE_BREAKER_TIMEOUT"),
		BreakerMaxRequests: v.GetInt("CONSOLE_BREAKER_MAX_REQUESTS"),
		KafkaBrokers:       v.GetString("KAFKA_BROKERS"),
		KafkaTopic:         v.GetString("KAFKA_TOPIC"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute http(s) URL, got %q", c.APIBaseURL)
	}
	if c.APITimeout < 0 {
		return fmt.Errorf("API_TIMEOUT must not be negative, got %s", c.APITimeout)
	}
	if c.ConsolePort == "" || c.MockAPIPort == "" {
		return errors.New("CONSOLE_PORT and MOCK_API_PORT must not be empty")
	}
	if c.KafkaBrokers != "" && strings.TrimSpace(c.KafkaTopic) == "" {
		return errors.New("KAFKA_TOPIC must be set when KAFKA_BROKERS is")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}

// Level returns the configured log level, falling back to info.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// NewLogger builds the JSON logger shared by both binaries.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(c.Level())
	return logger
}
