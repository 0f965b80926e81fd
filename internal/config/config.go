// Package config provides application configuration loaded from defaults,
// then an optional YAML file, then environment variable overrides.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server" json:"server"`
	Database    DatabaseConfig    `yaml:"database" json:"database"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
	Ingestion   IngestionConfig   `yaml:"ingestion" json:"ingestion"`
	Transcriber TranscriberConfig `yaml:"transcriber" json:"transcriber"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host         string        `yaml:"host" json:"host" env:"SERMONSCRIBE_HOST" default:"0.0.0.0"`
	Port         int           `yaml:"port" json:"port" env:"SERMONSCRIBE_PORT" default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout" env:"SERMONSCRIBE_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout" env:"SERMONSCRIBE_WRITE_TIMEOUT" default:"30s"`
	EnableCORS   bool          `yaml:"enable_cors" json:"enable_cors" env:"SERMONSCRIBE_ENABLE_CORS" default:"true"`
}

// DatabaseConfig holds persistence configuration
type DatabaseConfig struct {
	Type         string `yaml:"type" json:"type" env:"DATABASE_TYPE" default:"sqlite"`
	Host         string `yaml:"host" json:"host" env:"POSTGRES_HOST" default:"localhost"`
	Port         int    `yaml:"port" json:"port" env:"POSTGRES_PORT" default:"5432"`
	Username     string `yaml:"username" json:"username" env:"POSTGRES_USER" default:"sermonscribe"`
	Password     string `yaml:"password" json:"password" env:"POSTGRES_PASSWORD"`
	Database     string `yaml:"database" json:"database" env:"POSTGRES_DB" default:"sermonscribe"`
	DatabasePath string `yaml:"database_path" json:"database_path" env:"SQLITE_PATH" default:"./data/sermonscribe.db"`
	LogQueries   bool   `yaml:"log_queries" json:"log_queries" env:"DB_LOG_QUERIES" default:"false"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" env:"LOG_LEVEL" default:"info"`
	Format string `yaml:"format" json:"format" env:"LOG_FORMAT" default:"text"`
}

// IngestionConfig bounds the audio ingestion cache and chunk admission.
// The sliding window resets on activity; the max session duration is an
// absolute cap from stream start. Whichever elapses first evicts the entry.
type IngestionConfig struct {
	MaxChunkSizeBytes  int64         `yaml:"max_chunk_size_bytes" json:"max_chunk_size_bytes" env:"INGEST_MAX_CHUNK_BYTES" default:"10485760"`
	MaxSessionDuration time.Duration `yaml:"max_session_duration" json:"max_session_duration" env:"INGEST_MAX_SESSION_DURATION" default:"4h"`
	InactivityWindow   time.Duration `yaml:"inactivity_window" json:"inactivity_window" env:"INGEST_INACTIVITY_WINDOW" default:"30m"`
	SweepInterval      time.Duration `yaml:"sweep_interval" json:"sweep_interval" env:"INGEST_SWEEP_INTERVAL" default:"1m"`
	RefreshInterval    time.Duration `yaml:"refresh_interval" json:"refresh_interval" env:"INGEST_REFRESH_INTERVAL" default:"5m"`
	SupportedFormats   []string      `yaml:"supported_formats" json:"supported_formats"`
	SupportedRates     []int         `yaml:"supported_sample_rates" json:"supported_sample_rates"`
}

// TranscriberConfig configures the downstream speech-to-text provider
type TranscriberConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled" env:"TRANSCRIBER_ENABLED" default:"false"`
	Endpoint string        `yaml:"endpoint" json:"endpoint" env:"TRANSCRIBER_ENDPOINT"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout" env:"TRANSCRIBER_TIMEOUT" default:"30s"`
}

var (
	current *Config
	mu      sync.RWMutex
)

// DefaultSupportedFormats are the audio container formats accepted for
// live ingestion.
var DefaultSupportedFormats = []string{"wav", "mp3", "m4a", "flac"}

// DefaultSupportedRates are the accepted sample rates in Hz.
var DefaultSupportedRates = []int{8000, 16000, 22050, 44100, 48000}

// Default returns a configuration populated from struct tag defaults
func Default() *Config {
	cfg := &Config{}
	applyDefaults(reflect.ValueOf(cfg).Elem())
	cfg.Ingestion.SupportedFormats = append([]string(nil), DefaultSupportedFormats...)
	cfg.Ingestion.SupportedRates = append([]int(nil), DefaultSupportedRates...)
	return cfg
}

// Load reads configuration from the given path (optional) and applies
// environment overrides. The result becomes the process-wide config.
func Load(path string) error {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(reflect.ValueOf(cfg).Elem())

	if len(cfg.Ingestion.SupportedFormats) == 0 {
		cfg.Ingestion.SupportedFormats = append([]string(nil), DefaultSupportedFormats...)
	}
	if len(cfg.Ingestion.SupportedRates) == 0 {
		cfg.Ingestion.SupportedRates = append([]int(nil), DefaultSupportedRates...)
	}

	mu.Lock()
	current = cfg
	mu.Unlock()
	return nil
}

// Get returns the current configuration, loading defaults if Load was
// never called.
func Get() *Config {
	mu.RLock()
	cfg := current
	mu.RUnlock()
	if cfg != nil {
		return cfg
	}

	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		current = Default()
		current.Ingestion.SupportedFormats = append([]string(nil), DefaultSupportedFormats...)
		current.Ingestion.SupportedRates = append([]int(nil), DefaultSupportedRates...)
	}
	return current
}

// applyDefaults walks the struct and sets zero-valued fields from
// `default` tags.
func applyDefaults(v reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			applyDefaults(field)
			continue
		}
		tag := t.Field(i).Tag.Get("default")
		if tag == "" {
			continue
		}
		setField(field, tag)
	}
}

// applyEnvOverrides walks the struct and overrides fields from `env` tags
func applyEnvOverrides(v reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			applyEnvOverrides(field)
			continue
		}
		tag := t.Field(i).Tag.Get("env")
		if tag == "" {
			continue
		}
		if value, ok := os.LookupEnv(tag); ok && value != "" {
			setField(field, value)
		}
	}
}

func setField(field reflect.Value, value string) {
	if !field.CanSet() {
		return
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		if b, err := strconv.ParseBool(value); err == nil {
			field.SetBool(b)
		}
	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			if d, err := time.ParseDuration(value); err == nil {
				field.SetInt(int64(d))
			}
			return
		}
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			field.SetInt(n)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}
}
