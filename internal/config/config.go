// Package config loads the service's environment-driven configuration:
// viper for env binding and defaulting, go-playground/validator/v10 for
// the validate struct tags. There is no config file; environment
// variables override built-in defaults, nothing else.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// S3 holds the object-store connection settings.
type S3 struct {
	BucketName string `mapstructure:"bucket_name" validate:"required"`
	AccessKey  string `mapstructure:"access_key" validate:"required"`
	SecretKey  string `mapstructure:"secret_key" validate:"required"`
	URL        string `mapstructure:"url" validate:"required"`
	Region     string `mapstructure:"bucket_region" validate:"required"`
}

// Upload holds the ambient knobs governing the multipart upload engine.
type Upload struct {
	MaxParallelParts int `mapstructure:"max_parallel_parts" validate:"required,gt=0"`

	// MaxPartSize is the per-part byte ceiling, parsed in Load from its
	// human string form ("64Mi", "8MB", or a bare byte count).
	MaxPartSize int64 `mapstructure:"-"`
}

// Scan holds the ambient knobs governing the generational object scanner.
type Scan struct {
	Interval       time.Duration `mapstructure:"interval" validate:"required,gt=0"`
	Concurrency    int           `mapstructure:"concurrency" validate:"required,gt=0"`
	MaxGenerations int           `mapstructure:"max_generations" validate:"required,gt=1"`
}

// Logging holds the structured-logger setup.
type Logging struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

// Telemetry holds the OpenTelemetry tracing setup. Off by default.
type Telemetry struct {
	Enabled    bool    `mapstructure:"enabled"`
	Endpoint   string  `mapstructure:"endpoint"`
	Insecure   bool    `mapstructure:"insecure"`
	SampleRate float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

// Profiling holds the Pyroscope continuous-profiling setup. Off by
// default.
type Profiling struct {
	Enabled      bool     `mapstructure:"enabled"`
	Endpoint     string   `mapstructure:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types"`
}

// Config is the fully resolved, validated application configuration.
type Config struct {
	Port        int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	PostgresURI string `mapstructure:"postgres_uri" validate:"required"`
	RedisURL    string `mapstructure:"redis_url" validate:"required"`

	S3        S3
	Upload    Upload
	Scan      Scan
	Logging   Logging
	Telemetry Telemetry
	Profiling Profiling
}

// envBindings lists every environment variable this service reads,
// mapped to the viper key it fills. The variables are bare and
// unprefixed, so each key is bound explicitly instead of relying on a
// prefix + replacer.
var envBindings = map[string]string{
	"port":                      "PORT",
	"postgres_uri":              "POSTGRES_URI",
	"redis_url":                 "REDIS_URL",
	"s3.bucket_name":            "S3_BUCKET_NAME",
	"s3.access_key":             "S3_ACCESS_KEY",
	"s3.secret_key":             "S3_SECRET_KEY",
	"s3.url":                    "S3_URL",
	"s3.bucket_region":          "S3_BUCKET_REGION",
	"upload.max_parallel_parts": "UPLOAD_MAX_PARALLEL_PARTS",
	"upload.max_part_size":      "UPLOAD_MAX_PART_SIZE",
	"scan.interval":             "SCAN_INTERVAL",
	"scan.concurrency":          "SCAN_CONCURRENCY",
	"scan.max_generations":      "SCAN_MAX_GENERATIONS",
	"logging.level":             "LOG_LEVEL",
	"logging.format":            "LOG_FORMAT",
	"telemetry.enabled":         "TELEMETRY_ENABLED",
	"telemetry.endpoint":        "TELEMETRY_ENDPOINT",
	"telemetry.insecure":        "TELEMETRY_INSECURE",
	"telemetry.sample_rate":     "TELEMETRY_SAMPLE_RATE",
	"profiling.enabled":         "PROFILING_ENABLED",
	"profiling.endpoint":        "PROFILING_ENDPOINT",
	"profiling.profile_types":   "PROFILING_PROFILE_TYPES",
}

// applyDefaults seeds viper with every non-required default before env
// vars are bound, so that an unset variable falls through to it.
func applyDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("upload.max_parallel_parts", 3)
	v.SetDefault("upload.max_part_size", "64Mi")
	v.SetDefault("scan.interval", 5*time.Second)
	v.SetDefault("scan.concurrency", 75)
	v.SetDefault("scan.max_generations", 6)
	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "text")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.sample_rate", 1.0)
	v.SetDefault("profiling.enabled", false)
	v.SetDefault("profiling.profile_types", []string{"cpu", "alloc_objects", "inuse_objects"})
}

// Load reads configuration from the process environment, applies
// defaults, and validates the result.
func Load() (*Config, error) {
	v := viper.New()
	applyDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	maxPartSize, err := parsePartSize(v.GetString("upload.max_part_size"))
	if err != nil {
		return nil, fmt.Errorf("config: upload.max_part_size: %w", err)
	}
	cfg.Upload.MaxPartSize = maxPartSize

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &cfg, nil
}

// Validate runs struct-tag validation over a Config. Exported
// separately from Load so tests can validate a hand-built Config
// without going through the environment.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}
