package telemetry

import (
	"fmt"
	"time"
)

// Config contains the telemetry configuration of an installer run.
type Config struct {
	// ServiceName identifies the installer in traces.
	ServiceName string `yaml:"service_name"`

	// ServiceVersion is the installer build version.
	ServiceVersion string `yaml:"service_version"`

	// Environment labels traces (development, production).
	Environment string `yaml:"environment"`

	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error, fatal).
	Level string `yaml:"level"`

	// Format is console or json.
	Format string `yaml:"format"`

	// Output is stdout, stderr or a file path.
	Output string `yaml:"output"`

	EnableCaller bool   `yaml:"enable_caller"`
	TimeFormat   string `yaml:"time_format"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Exporter is otlp, stdout or none.
	Exporter string `yaml:"exporter"`

	// Endpoint is the OTLP collector address.
	Endpoint     string            `yaml:"endpoint"`
	SamplingRate float64           `yaml:"sampling_rate"`
	Timeout      time.Duration     `yaml:"timeout"`
	Headers      map[string]string `yaml:"headers"`
	Insecure     bool              `yaml:"insecure"`
}

// MetricsConfig configures run metrics. Installers are short lived, so
// metrics are written once to a node-exporter textfile instead of served.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// TextfilePath receives the registry contents at the end of a run.
	TextfilePath string `yaml:"textfile_path"`

	Namespace string    `yaml:"namespace"`
	Buckets   []float64 `yaml:"buckets"`
}

// DefaultConfig returns the configuration used when no settings file is given.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "froyo-installer",
		ServiceVersion: "dev",
		Environment:    "development",
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			Output:     "stderr",
			TimeFormat: "rfc3339",
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "none",
			SamplingRate: 1.0,
			Timeout:      10 * time.Second,
			Headers:      make(map[string]string),
			Insecure:     true,
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Namespace: "froyo_installer",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 300},
		},
	}
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}

	if _, ok := logLevels[c.Logging.Level]; !ok {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'console' or 'json')", c.Logging.Format)
	}

	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "otlp":
			if c.Tracing.Endpoint == "" {
				return fmt.Errorf("otlp exporter requires an endpoint")
			}
		case "stdout", "none":
		default:
			return fmt.Errorf("invalid trace exporter: %s", c.Tracing.Exporter)
		}
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0 and 1, got: %f", c.Tracing.SamplingRate)
	}

	if c.Metrics.Enabled && c.Metrics.TextfilePath == "" {
		return fmt.Errorf("metrics textfile path is required when metrics are enabled")
	}

	return nil
}
