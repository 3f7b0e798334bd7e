package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// MaxWaiterTimeout is the start-to-close timeout of the wait activity. The
// waiter timeout must stay below it.
const MaxWaiterTimeout = 30 * time.Minute

type Config struct {
	CoreDatabaseURL string
	TemporalAddress string
	HTTPListenAddr  string
	MetricsAddr     string
	LogLevel        string
	ServiceName     string
	Environment     string

	TemporalTLSCert       string
	TemporalTLSKey        string
	TemporalTLSCACert     string
	TemporalTLSServerName string

	// EventManagerURL is the base URL of the element REST endpoint that
	// receives process updates and event row resets.
	EventManagerURL     string
	EventManagerElement string

	WaiterTimeout             time.Duration
	WaiterInterval            time.Duration
	DeactivationFailurePolicy string
	SweepStalledAfter         time.Duration
	SweepSchedule             string

	// TracingExporter selects where handler spans go: none, stdout or otlp.
	TracingExporter string
	OTLPEndpoint    string
}

func Load() (*Config, error) {
	cfg := &Config{
		CoreDatabaseURL:           getEnv("CORE_DATABASE_URL", ""),
		TemporalAddress:           getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		HTTPListenAddr:            getEnv("HTTP_LISTEN_ADDR", ":8090"),
		MetricsAddr:               getEnv("METRICS_ADDR", ""),
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		ServiceName:               getEnv("SERVICE_NAME", ""),
		Environment:               getEnv("ENVIRONMENT", ""),
		TemporalTLSCert:           getEnv("TEMPORAL_TLS_CERT", ""),
		TemporalTLSKey:            getEnv("TEMPORAL_TLS_KEY", ""),
		TemporalTLSCACert:         getEnv("TEMPORAL_TLS_CA_CERT", ""),
		TemporalTLSServerName:     getEnv("TEMPORAL_TLS_SERVER_NAME", ""),
		EventManagerURL:           getEnv("EVENT_MANAGER_URL", ""),
		EventManagerElement:       getEnv("EVENT_MANAGER_ELEMENT", "SLE Event Manager - LEM"),
		DeactivationFailurePolicy: getEnv("DEACTIVATION_FAILURE_POLICY", "active_with_errors"),
		SweepSchedule:             getEnv("SWEEP_SCHEDULE", "*/15 * * * *"),
		TracingExporter:           getEnv("TRACING_EXPORTER", "none"),
		OTLPEndpoint:              getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	var errs []error
	var err error
	if cfg.WaiterTimeout, err = getEnvDuration("WAITER_TIMEOUT", 10*time.Minute); err != nil {
		errs = append(errs, err)
	}
	if cfg.WaiterInterval, err = getEnvDuration("WAITER_INTERVAL", 3*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.SweepStalledAfter, err = getEnvDuration("SWEEP_STALLED_AFTER", 30*time.Minute); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return cfg, nil
}

// Validate checks that the settings required by role are present and
// consistent.
func (c *Config) Validate(role string) error {
	var missing []string
	require := func(key, val string) {
		if val == "" {
			missing = append(missing, key)
		}
	}

	switch role {
	case "core-api":
		require("CORE_DATABASE_URL", c.CoreDatabaseURL)
		require("TEMPORAL_ADDRESS", c.TemporalAddress)
		require("HTTP_LISTEN_ADDR", c.HTTPListenAddr)
	case "worker":
		require("CORE_DATABASE_URL", c.CoreDatabaseURL)
		require("TEMPORAL_ADDRESS", c.TemporalAddress)
		require("EVENT_MANAGER_URL", c.EventManagerURL)
	default:
		return fmt.Errorf("unknown role %q", role)
	}

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("missing required settings: %s", strings.Join(missing, ", ")))
	}
	if (c.TemporalTLSCert == "") != (c.TemporalTLSKey == "") {
		errs = append(errs, errors.New("TEMPORAL_TLS_CERT and TEMPORAL_TLS_KEY must both be set"))
	}
	switch c.TracingExporter {
	case "", "none", "stdout":
	case "otlp":
		if c.OTLPEndpoint == "" {
			errs = append(errs, errors.New("OTEL_EXPORTER_OTLP_ENDPOINT is required for the otlp exporter"))
		}
	default:
		errs = append(errs, fmt.Errorf("TRACING_EXPORTER %q must be none, stdout or otlp", c.TracingExporter))
	}
	if role == "worker" {
		if c.WaiterInterval <= 0 {
			errs = append(errs, errors.New("WAITER_INTERVAL must be positive"))
		}
		if c.WaiterTimeout <= 0 || c.WaiterTimeout >= MaxWaiterTimeout {
			errs = append(errs, fmt.Errorf("WAITER_TIMEOUT must be between 0 and %s", MaxWaiterTimeout))
		}
		if c.SweepStalledAfter <= 0 {
			errs = append(errs, errors.New("SWEEP_STALLED_AFTER must be positive"))
		}
		if _, err := cron.ParseStandard(c.SweepSchedule); err != nil {
			errs = append(errs, fmt.Errorf("SWEEP_SCHEDULE: %w", err))
		}
		switch c.DeactivationFailurePolicy {
		case "active_with_errors", "error":
		default:
			errs = append(errs, fmt.Errorf("DEACTIVATION_FAILURE_POLICY %q must be active_with_errors or error", c.DeactivationFailurePolicy))
		}
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
