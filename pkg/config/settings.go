package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/installer/pkg/telemetry"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FROYO_"

// Settings configure the installer binary. They are separate from the
// workflows it runs.
type Settings struct {
	Telemetry telemetry.Config `yaml:"telemetry"`

	// JournalDirectory holds uninstall journals when a workflow's install
	// policy does not name one.
	JournalDirectory string `yaml:"journal_directory" validate:"required"`

	// StatePath is the SQLite run history database.
	StatePath string `yaml:"state_path" validate:"required"`

	// CacheDirectory receives downloaded installers.
	CacheDirectory string `yaml:"cache_directory" validate:"required"`

	// DownloadTimeout bounds a single installer download. Zero means no limit.
	DownloadTimeout time.Duration `yaml:"download_timeout" validate:"gte=0"`

	// HistoryRetention is how long finished runs are kept. Zero keeps them forever.
	HistoryRetention time.Duration `yaml:"history_retention" validate:"gte=0"`

	Policies PolicySettings `yaml:"policies"`
}

// PolicySettings configure workflow admission policies.
type PolicySettings struct {
	// Paths are .rego or .json files, or directories of them, loaded on top
	// of the built-in policies. Missing paths are ignored.
	Paths []string `yaml:"paths"`

	// Disabled names policies, built-in or loaded, that are not evaluated.
	Disabled []string `yaml:"disabled"`

	// Data is exposed to policies under data.
	Data map[string]any `yaml:"data"`
}

// DefaultSettings returns settings rooted in the user's configuration and
// cache directories.
func DefaultSettings() *Settings {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	root := filepath.Join(configDir, "froyo")

	return &Settings{
		Telemetry:        *telemetry.DefaultConfig(),
		JournalDirectory: filepath.Join(root, "journals"),
		StatePath:        filepath.Join(root, "history.db"),
		CacheDirectory:   filepath.Join(cacheDir, "froyo", "downloads"),
		DownloadTimeout:  30 * time.Minute,
		Policies: PolicySettings{
			Paths: []string{filepath.Join(root, "policies")},
		},
	}
}

// LoadSettings reads settings from path over the defaults and applies
// environment overrides. An empty path uses the defaults alone.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read settings: %w", err)
		}
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
		}
	}

	if err := s.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// ApplyEnv overrides settings from FROYO_* variables found by lookup.
func (s *Settings) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	strs := map[string]*string{
		"LOG_LEVEL":        &s.Telemetry.Logging.Level,
		"LOG_FORMAT":       &s.Telemetry.Logging.Format,
		"LOG_OUTPUT":       &s.Telemetry.Logging.Output,
		"JOURNAL_DIR":      &s.JournalDirectory,
		"STATE_PATH":       &s.StatePath,
		"CACHE_DIR":        &s.CacheDirectory,
		"TRACING_EXPORTER": &s.Telemetry.Tracing.Exporter,
		"TRACING_ENDPOINT": &s.Telemetry.Tracing.Endpoint,
		"METRICS_TEXTFILE": &s.Telemetry.Metrics.TextfilePath,
		"ENVIRONMENT":      &s.Telemetry.Environment,
	}
	for name, field := range strs {
		if v, ok := get(name); ok {
			*field = v
		}
	}

	bools := map[string]*bool{
		"TRACING_ENABLED": &s.Telemetry.Tracing.Enabled,
		"METRICS_ENABLED": &s.Telemetry.Metrics.Enabled,
	}
	for name, field := range bools {
		if v, ok := get(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
			}
			*field = b
		}
	}

	if v, ok := get("DOWNLOAD_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %sDOWNLOAD_TIMEOUT: %w", EnvPrefix, err)
		}
		s.DownloadTimeout = d
	}

	if v, ok := get("POLICY_PATH"); ok {
		s.Policies.Paths = filepath.SplitList(v)
	}
	return nil
}

// Validate checks the settings and their telemetry section.
func (s *Settings) Validate() error {
	var errs []error
	if err := validate.Struct(s); err != nil {
		errs = append(errs, err)
	}
	if err := s.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}
