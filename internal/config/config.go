package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/marine-data-engine/internal/filter"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Ingestion server that owns provider fetching and raw storage.
	IngestAPIURL  string
	IngestTimeout time.Duration

	// Species distribution model service.
	SDMAPIURL  string
	SDMTimeout time.Duration

	// Refresh behavior.
	ProvidersFile string
	FetchRetries  int
	MissingPolicy filter.MissingPolicy

	// Optional snapshot sinks.
	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string
	RedisURL       string
	RedisChannel   string

	// NetCDF climate grids read on every refresh.
	ClimateFiles      []string
	ClimateVariables  []string
	ClimateMaxRecords int
}

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is loaded first when present;
// variables already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load() // ignore missing file

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	ingestTimeout, err := parsePositiveDuration("INGEST_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	sdmTimeout, err := parsePositiveDuration("SDM_TIMEOUT", "120s")
	if err != nil {
		return nil, err
	}

	retries, err := parseNonNegativeInt("REFRESH_FETCH_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	maxClimate, err := parseNonNegativeInt("CLIMATE_MAX_RECORDS", 5000)
	if err != nil {
		return nil, err
	}

	policyStr := os.Getenv("RANGE_MISSING_POLICY")
	policy, ok := filter.ParseMissingPolicy(policyStr)
	if !ok {
		return nil, fmt.Errorf("invalid RANGE_MISSING_POLICY: %q", policyStr)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		IngestAPIURL:  strings.TrimRight(sharedcfg.EnvOrDefault("INGEST_API_URL", "http://localhost:8000"), "/"),
		IngestTimeout: ingestTimeout,
		SDMAPIURL:     strings.TrimRight(sharedcfg.EnvOrDefault("SDM_API_URL", "http://localhost:8000"), "/"),
		SDMTimeout:    sdmTimeout,

		ProvidersFile: os.Getenv("PROVIDERS_FILE"),
		FetchRetries:  retries,
		MissingPolicy: policy,

		KafkaEnabled:   os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "marine-records"),
		RedisURL:       os.Getenv("REDIS_URL"),
		RedisChannel:   sharedcfg.EnvOrDefault("REDIS_CHANNEL", "marine:snapshots"),

		ClimateFiles:      splitList(os.Getenv("CLIMATE_FILES")),
		ClimateVariables:  splitList(sharedcfg.EnvOrDefault("CLIMATE_VARIABLES", "sst")),
		ClimateMaxRecords: maxClimate,
	}

	if err := validateURL("INGEST_API_URL", cfg.IngestAPIURL); err != nil {
		return nil, err
	}
	if err := validateURL("SDM_API_URL", cfg.SDMAPIURL); err != nil {
		return nil, err
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required when KAFKA_ENABLED is true")
		}
	}
	if len(cfg.ClimateFiles) > 0 && len(cfg.ClimateVariables) == 0 {
		return nil, errors.New("CLIMATE_VARIABLES is required when CLIMATE_FILES is set")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseNonNegativeInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}

// splitList parses a comma-separated list, dropping blank entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
