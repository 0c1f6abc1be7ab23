package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "rulescribe.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "RULESCRIBE_PORT")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "RULESCRIBE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "RULESCRIBE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "RULESCRIBE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "RULESCRIBE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "RULESCRIBE_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Telegram.Token, "TELEGRAM_TOKEN")
	setString(&cfg.Telegram.BaseURL, "TELEGRAM_BASE_URL")
	setDuration(&cfg.Telegram.Timeout, "RULESCRIBE_TELEGRAM_TIMEOUT")
	setString(&cfg.Engine.URL, "ENGINE_URL")
	setString(&cfg.Engine.APIKey, "ENGINE_API_KEY")
	setDuration(&cfg.Engine.Timeout, "RULESCRIBE_ENGINE_TIMEOUT")
	setInt(&cfg.Rate.MaxRequests, "RULESCRIBE_RATE_MAX_REQUESTS")
	setDuration(&cfg.Rate.Window, "RULESCRIBE_RATE_WINDOW")
	setInt(&cfg.Search.MaxConcurrent, "RULESCRIBE_SEARCH_MAX_CONCURRENT")
	setDuration(&cfg.Search.AcquireTimeout, "RULESCRIBE_SEARCH_ACQUIRE_TIMEOUT")
	setDuration(&cfg.Search.CallTimeout, "RULESCRIBE_SEARCH_CALL_TIMEOUT")
	setInt(&cfg.Search.MaxSearchBytes, "RULESCRIBE_SEARCH_MAX_BYTES")
	setInt(&cfg.Search.MaxExtractBytes, "RULESCRIBE_EXTRACT_MAX_BYTES")
	setInt64(&cfg.Search.CacheSizeMB, "RULESCRIBE_SEARCH_CACHE_SIZE_MB")
	setDuration(&cfg.Search.CacheTTL, "RULESCRIBE_SEARCH_CACHE_TTL")
	setString(&cfg.Docs.Dir, "RULESCRIBE_DOCS_DIR")
	setDuration(&cfg.Progress.Debounce, "RULESCRIBE_PROGRESS_DEBOUNCE")
	setFloat64(&cfg.Answer.LowConfidenceThreshold, "RULESCRIBE_LOW_CONFIDENCE")
	setDuration(&cfg.Pipeline.ActorIdleTimeout, "RULESCRIBE_ACTOR_IDLE_TIMEOUT")
	setInt(&cfg.Pipeline.ActorQueueSize, "RULESCRIBE_ACTOR_QUEUE_SIZE")
	setString(&cfg.Logging.Level, "RULESCRIBE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "RULESCRIBE_LOG_SERVICE")
	setInt(&cfg.Breaker.MaxFailures, "RULESCRIBE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "RULESCRIBE_BREAKER_TIMEOUT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Rate.MaxRequests < 1 {
		return errors.New("rate.max_requests must be >= 1")
	}
	if cfg.Rate.Window <= 0 {
		return errors.New("rate.window must be > 0")
	}
	if cfg.Search.MaxConcurrent < 1 {
		return errors.New("search.max_concurrent must be >= 1")
	}
	if cfg.Answer.LowConfidenceThreshold < 0 || cfg.Answer.LowConfidenceThreshold > 1 {
		return errors.New("answer.low_confidence_threshold must be in [0,1]")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Pipeline.ActorQueueSize < 1 {
		return errors.New("pipeline.actor_queue_size must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
