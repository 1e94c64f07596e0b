package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	RunMode     string // "worker" or "batch"
	SinkBackend string // "memory" or "kafka"

	SourcesEnabled []string // empty means every registry.DefaultSources entry

	WindowHours int

	ClusterIntervalSeconds int

	ClusterEpsKm           float64
	ClusterDtSeconds       float64
	ClusterDMag            float64
	MatchThreshold         float64
	ScoringWeightTime      float64
	ScoringWeightDistance  float64
	ScoringWeightMagnitude float64

	RetryMaxAttempts int
	RetryBaseMs      int
	RetryCapMs       int
	TimeoutMs        int

	// The four flags below report whether the corresponding retry/timeout
	// value above was explicitly set via its environment variable, as
	// opposed to filled in from its fallback. The transport policy wiring
	// in cmd/eqfusion uses them to decide whether this global setting
	// should override a registry source's own tuned values.
	RetryMaxAttemptsSet bool
	RetryBaseMsSet      bool
	RetryCapMsSet       bool
	TimeoutMsSet        bool

	KafkaBrokers []string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownStr := envOrDefault("SHUTDOWN_TIMEOUT", "10s")
	shutdownTimeout, err := time.ParseDuration(shutdownStr)
	if err != nil || shutdownTimeout <= 0 {
		return nil, errors.New("invalid SHUTDOWN_TIMEOUT")
	}

	windowHours, err := envOrDefaultInt("WINDOW_HOURS", 24)
	if err != nil {
		return nil, err
	}

	clusterIntervalSeconds, err := envOrDefaultInt("CLUSTER_INTERVAL_S", 300)
	if err != nil {
		return nil, err
	}

	epsKm, err := envOrDefaultFloat("CLUSTER_EPS_KM", 100)
	if err != nil {
		return nil, err
	}
	dtSeconds, err := envOrDefaultFloat("CLUSTER_DT_S", 30)
	if err != nil {
		return nil, err
	}
	dMag, err := envOrDefaultFloat("CLUSTER_DMAG", 0.5)
	if err != nil {
		return nil, err
	}
	matchThreshold, err := envOrDefaultFloat("MATCH_THRESHOLD", 0.6)
	if err != nil {
		return nil, err
	}

	weightTime, err := envOrDefaultFloat("SCORING_WEIGHT_TIME", 0.4)
	if err != nil {
		return nil, err
	}
	weightDistance, err := envOrDefaultFloat("SCORING_WEIGHT_DISTANCE", 0.4)
	if err != nil {
		return nil, err
	}
	weightMagnitude, err := envOrDefaultFloat("SCORING_WEIGHT_MAGNITUDE", 0.2)
	if err != nil {
		return nil, err
	}
	if sum := weightTime + weightDistance + weightMagnitude; sum < 0.99 || sum > 1.01 {
		return nil, errors.New("SCORING_WEIGHT_TIME + SCORING_WEIGHT_DISTANCE + SCORING_WEIGHT_MAGNITUDE must sum to 1")
	}

	retryMaxAttempts, retryMaxAttemptsSet, err := envOverrideInt("RETRY_MAX_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}
	retryBaseMs, retryBaseMsSet, err := envOverrideInt("RETRY_BASE_MS", 1000)
	if err != nil {
		return nil, err
	}
	retryCapMs, retryCapMsSet, err := envOverrideInt("RETRY_CAP_MS", 30000)
	if err != nil {
		return nil, err
	}
	timeoutMs, timeoutMsSet, err := envOverrideInt("TIMEOUT_MS", 10000)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		RunMode:     envOrDefault("RUN_MODE", "worker"),
		SinkBackend: envOrDefault("SINK_BACKEND", "memory"),

		SourcesEnabled: parseCSV(os.Getenv("SOURCES_ENABLED")),

		WindowHours: windowHours,

		ClusterIntervalSeconds: clusterIntervalSeconds,

		ClusterEpsKm:           epsKm,
		ClusterDtSeconds:       dtSeconds,
		ClusterDMag:            dMag,
		MatchThreshold:         matchThreshold,
		ScoringWeightTime:      weightTime,
		ScoringWeightDistance:  weightDistance,
		ScoringWeightMagnitude: weightMagnitude,

		RetryMaxAttempts: retryMaxAttempts,
		RetryBaseMs:      retryBaseMs,
		RetryCapMs:       retryCapMs,
		TimeoutMs:        timeoutMs,

		RetryMaxAttemptsSet: retryMaxAttemptsSet,
		RetryBaseMsSet:      retryBaseMsSet,
		RetryCapMsSet:       retryCapMsSet,
		TimeoutMsSet:        timeoutMsSet,

		KafkaBrokers: parseCSV(envOrDefault("KAFKA_BROKERS", "localhost:9092")),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.RunMode != "worker" && cfg.RunMode != "batch" {
		return nil, errors.New("RUN_MODE must be \"worker\" or \"batch\"")
	}
	if cfg.SinkBackend != "memory" && cfg.SinkBackend != "kafka" {
		return nil, errors.New("SINK_BACKEND must be \"memory\" or \"kafka\"")
	}
	if cfg.SinkBackend == "kafka" && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when SINK_BACKEND=kafka")
	}
	if cfg.WindowHours <= 0 {
		return nil, errors.New("WINDOW_HOURS must be positive")
	}
	if cfg.ClusterIntervalSeconds <= 0 {
		return nil, errors.New("CLUSTER_INTERVAL_S must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	return n, nil
}

// envOverrideInt is envOrDefaultInt plus a second return value reporting
// whether key was actually set in the environment, so callers can
// distinguish an explicit override from a silently applied fallback.
func envOverrideInt(key string, fallback int) (int, bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, errors.New("invalid " + key)
	}
	return n, true, nil
}

// PollIntervalOverride reads the poll.interval.<source> config option
// (POLL_INTERVAL_<SOURCE>, e.g. POLL_INTERVAL_USGS=90s) for one registry
// source tag. ok is false when the variable is unset, leaving the
// registry's own MinPollInterval in force.
func PollIntervalOverride(tag string) (time.Duration, bool, error) {
	key := "POLL_INTERVAL_" + strings.ToUpper(tag)
	v := os.Getenv(key)
	if v == "" {
		return 0, false, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, true, nil
}

func envOrDefaultFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	return f, nil
}

func parseCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
