package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Sternrassler/ratebeer-client/pkg/client"
	"github.com/Sternrassler/ratebeer-client/pkg/logging"
	"github.com/Sternrassler/ratebeer-client/pkg/session"
)

// config is the proxy configuration read from the environment.
type config struct {
	RedisURL          string
	RedisPassword     string
	Port              string
	BaseURL           string
	APIKey            string
	UserAgent         string
	SessionKey        *[32]byte
	RequestsPerSecond int
	PageConcurrency   int
	Logging           logging.Config
}

func loadConfig(getenv func(string) string) (config, error) {
	env := func(key, defaultValue string) string {
		if value := getenv(key); value != "" {
			return value
		}
		return defaultValue
	}

	cfg := config{
		RedisURL:      env("REDIS_URL", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD"),
		Port:          env("PORT", "8080"),
		BaseURL:       env("RATEBEER_BASE_URL", client.DefaultBaseURL),
		APIKey:        getenv("RATEBEER_API_KEY"),
		UserAgent:     env("USER_AGENT", "ratebeer-proxy/0.1.0"),
		Logging:       logging.ConfigFromEnv(getenv),
	}
	cfg.Logging.Service = "ratebeer-proxy"

	if cfg.APIKey == "" {
		return config{}, fmt.Errorf("RATEBEER_API_KEY is required")
	}

	var err error
	if cfg.RequestsPerSecond, err = strconv.Atoi(env("REQUESTS_PER_SECOND", "5")); err != nil {
		return config{}, fmt.Errorf("parse REQUESTS_PER_SECOND: %w", err)
	}
	if cfg.PageConcurrency, err = strconv.Atoi(env("PAGE_CONCURRENCY", "4")); err != nil {
		return config{}, fmt.Errorf("parse PAGE_CONCURRENCY: %w", err)
	}
	if cfg.PageConcurrency < 1 {
		return config{}, fmt.Errorf("PAGE_CONCURRENCY must be at least 1 (got %d)", cfg.PageConcurrency)
	}

	if raw := getenv("SESSION_KEY"); raw != "" {
		key, err := session.ParseKey(raw)
		if err != nil {
			return config{}, fmt.Errorf("parse SESSION_KEY: %w", err)
		}
		cfg.SessionKey = &key
	}

	return cfg, nil
}

// clientConfig derives the transport configuration.
func (c config) clientConfig() client.Config {
	cfg := client.DefaultConfig(nil, c.APIKey)
	cfg.BaseURL = c.BaseURL
	cfg.UserAgent = c.UserAgent
	cfg.RateLimit.Requests = c.RequestsPerSecond
	cfg.RateLimit.Window = time.Second
	return cfg
}
