package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Env            string
	ServiceName    string
	ServiceVersion string

	OtelExporterOTLPHeaders string

	Telemetry TelemetryConfig
}

// TelemetryConfig holds the user's telemetry consent settings. An empty
// destination means none has been configured yet.
type TelemetryConfig struct {
	TelemetryEnabled          bool   `yaml:"telemetry_enabled"`
	TelemetryDestination      string `yaml:"telemetry_destination"`
	ErrorReportingEnabled     bool   `yaml:"error_reporting_enabled"`
	ErrorReportingDestination string `yaml:"error_reporting_destination"`
	ErrorReportingLevel       string `yaml:"error_reporting_level"`
	SentryDSN                 string `yaml:"sentry_dsn"`
}

func Load() (*Config, error) {
	return LoadFrom("config.yaml")
}

// LoadFrom reads the environment, then the YAML file at path (if present),
// then applies defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{
		Env:                     os.Getenv("ENV"),
		ServiceName:             os.Getenv("SERVICE_NAME"),
		ServiceVersion:          os.Getenv("SERVICE_VERSION"),
		OtelExporterOTLPHeaders: os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"),
		Telemetry: TelemetryConfig{
			TelemetryDestination:      os.Getenv("TELEMETRY_DESTINATION"),
			ErrorReportingDestination: os.Getenv("ERROR_REPORTING_DESTINATION"),
			ErrorReportingLevel:       os.Getenv("ERROR_REPORTING_LEVEL"),
			SentryDSN:                 os.Getenv("SENTRY_DSN"),
		},
	}

	var err error
	if cfg.Telemetry.TelemetryEnabled, err = envBool("TELEMETRY_ENABLED"); err != nil {
		return nil, err
	}
	if cfg.Telemetry.ErrorReportingEnabled, err = envBool("ERROR_REPORTING_ENABLED"); err != nil {
		return nil, err
	}

	if err := cfg.LoadFromYAML(path); err != nil {
		return nil, fmt.Errorf("failed to load YAML config: %w", err)
	}

	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "beacon-host"
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = "1.0.0"
	}
	cfg.SetTelemetryDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

func (c *Config) LoadFromYAML(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File not found is not an error
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Pointers so that an explicit false in the file can override the environment.
	var yamlConfig struct {
		Telemetry struct {
			TelemetryEnabled          *bool  `yaml:"telemetry_enabled"`
			TelemetryDestination      string `yaml:"telemetry_destination"`
			ErrorReportingEnabled     *bool  `yaml:"error_reporting_enabled"`
			ErrorReportingDestination string `yaml:"error_reporting_destination"`
			ErrorReportingLevel       string `yaml:"error_reporting_level"`
			SentryDSN                 string `yaml:"sentry_dsn"`
		} `yaml:"telemetry"`
	}

	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	t := yamlConfig.Telemetry
	if t.TelemetryEnabled != nil {
		c.Telemetry.TelemetryEnabled = *t.TelemetryEnabled
	}
	if t.TelemetryDestination != "" {
		c.Telemetry.TelemetryDestination = t.TelemetryDestination
	}
	if t.ErrorReportingEnabled != nil {
		c.Telemetry.ErrorReportingEnabled = *t.ErrorReportingEnabled
	}
	if t.ErrorReportingDestination != "" {
		c.Telemetry.ErrorReportingDestination = t.ErrorReportingDestination
	}
	if t.ErrorReportingLevel != "" {
		c.Telemetry.ErrorReportingLevel = t.ErrorReportingLevel
	}
	if t.SentryDSN != "" {
		c.Telemetry.SentryDSN = t.SentryDSN
	}

	return nil
}

func (c *Config) SetTelemetryDefaults() {
	c.Telemetry.TelemetryDestination = strings.TrimSpace(c.Telemetry.TelemetryDestination)
	c.Telemetry.ErrorReportingDestination = strings.TrimSpace(c.Telemetry.ErrorReportingDestination)
	if c.Telemetry.ErrorReportingLevel == "" {
		c.Telemetry.ErrorReportingLevel = "warn"
	}
}

// ErrorReportingMinLevel returns the lowest level shipped by the error-reporting
// appender. Falls back to warn if the configured value is not a slog level.
func (c *Config) ErrorReportingMinLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Telemetry.ErrorReportingLevel)); err != nil {
		return slog.LevelWarn
	}
	return l
}

// Headers parses OtelExporterOTLPHeaders ("key=value,key2=value2") into a map.
// Malformed pairs are skipped.
func (c *Config) Headers() map[string]string {
	if c.OtelExporterOTLPHeaders == "" {
		return nil
	}
	headers := make(map[string]string)
	for _, pair := range strings.Split(c.OtelExporterOTLPHeaders, ",") {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		headers[k] = strings.TrimSpace(v)
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}

func (c *Config) validate() error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Telemetry.ErrorReportingLevel)); err != nil {
		return fmt.Errorf("ERROR_REPORTING_LEVEL %q is not a valid level", c.Telemetry.ErrorReportingLevel)
	}
	return nil
}

func envBool(key string) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, raw)
	}
	return b, nil
}
