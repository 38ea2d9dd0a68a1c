package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "LIVECOUNT_"

// LoadOptions represents options for loading configuration
type LoadOptions struct {
	Path string
}

// Load loads configuration from various sources
func Load(opts ...LoadOptions) (*Config, error) {
	cfg := Default()

	var options LoadOptions
	if len(opts) > 0 {
		options = opts[0]
	}

	if options.Path != "" {
		if err := loadFromFile(cfg, options.Path); err != nil {
			return nil, err
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile loads configuration from a file
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}

	return nil
}

// loadFromEnv overrides cfg from LIVECOUNT_* variables. Malformed numbers and
// durations are reported rather than ignored.
func loadFromEnv(cfg *Config) error {
	strs := map[string]*string{
		"URL":            &cfg.Client.URL,
		"SERVER_HOST":    &cfg.Server.Host,
		"STORE_DRIVER":   &cfg.Store.Driver,
		"REDIS_ADDR":     &cfg.Store.Redis.Addr,
		"REDIS_PASSWORD": &cfg.Store.Redis.Password,
		"REDIS_KEY":      &cfg.Store.Redis.Key,
		"LOG_LEVEL":      &cfg.Logging.Level,
		"LOG_FORMAT":     &cfg.Logging.Format,
	}
	for name, field := range strs {
		if v, ok := lookup(name); ok {
			*field = v
		}
	}

	ints := map[string]*int{
		"SERVER_PORT":      &cfg.Server.Port,
		"REDIS_DB":         &cfg.Store.Redis.DB,
		"SEND_BUFFER_SIZE": &cfg.Client.SendBufferSize,
	}
	for name, field := range ints {
		if v, ok := lookup(name); ok {
			i, err := strconv.Atoi(v)
			if err != nil {
				return NewConfigError(EnvPrefix+name, "must be an integer")
			}
			*field = i
		}
	}

	durations := map[string]*time.Duration{
		"READ_TIMEOUT":       &cfg.Client.ReadTimeout,
		"WRITE_TIMEOUT":      &cfg.Client.WriteTimeout,
		"PING_INTERVAL":      &cfg.Client.PingInterval,
		"RECONNECT_INITIAL":  &cfg.Reconnect.InitialInterval,
		"RECONNECT_MAX":      &cfg.Reconnect.MaxInterval,
		"RECONNECT_DEADLINE": &cfg.Reconnect.MaxElapsedTime,
	}
	for name, field := range durations {
		if v, ok := lookup(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return NewConfigError(EnvPrefix+name, "must be a duration such as 10s")
			}
			*field = d
		}
	}

	return nil
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

// NewConfigError creates a new configuration error
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in field '%s': %s", e.Field, e.Message)
}
