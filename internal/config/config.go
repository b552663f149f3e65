package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mantonx/streamctl/internal/modules/streammodule/profile"
	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server" json:"server"`

	// Stream job configuration
	Stream StreamConfig `yaml:"stream" json:"stream"`

	// Database configuration
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host            string        `yaml:"host" json:"host" env:"STREAMCTL_HOST" default:"0.0.0.0"`
	Port            int           `yaml:"port" json:"port" env:"STREAMCTL_PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout" env:"STREAMCTL_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout" env:"STREAMCTL_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" env:"STREAMCTL_SHUTDOWN_TIMEOUT" default:"10s"`
	EnableCORS      bool          `yaml:"enable_cors" json:"enable_cors" env:"STREAMCTL_ENABLE_CORS" default:"true"`
	StaticDir       string        `yaml:"static_dir" json:"static_dir" env:"STREAMCTL_STATIC_DIR" default:"./static"`
	StaticURL       string        `yaml:"static_url" json:"static_url" env:"STREAMCTL_STATIC_URL" default:"/static/"`
	SampleVideo     string        `yaml:"sample_video" json:"sample_video" env:"STREAMCTL_SAMPLE_VIDEO" default:"video/450.mp4"`
}

// StreamConfig holds the defaults used when start/stop requests omit fields
type StreamConfig struct {
	SourceURL      string        `yaml:"source_url" json:"source_url" env:"STREAMCTL_SOURCE_URL"`
	OutputDir      string        `yaml:"output_dir" json:"output_dir" env:"STREAMCTL_OUTPUT_DIR"`
	FFmpegPath     string        `yaml:"ffmpeg_path" json:"ffmpeg_path" env:"STREAMCTL_FFMPEG_PATH" default:"ffmpeg"`
	DefaultTiers   []string      `yaml:"default_tiers" json:"default_tiers" env:"STREAMCTL_DEFAULT_TIERS"`
	StartProtocol  string        `yaml:"start_protocol" json:"start_protocol" env:"STREAMCTL_START_PROTOCOL" default:"dash"`
	StopProtocol   string        `yaml:"stop_protocol" json:"stop_protocol" env:"STREAMCTL_STOP_PROTOCOL" default:"hls"`
	KillGrace      time.Duration `yaml:"kill_grace" json:"kill_grace" env:"STREAMCTL_KILL_GRACE" default:"5s"`
	WatchManifests bool          `yaml:"watch_manifests" json:"watch_manifests" env:"STREAMCTL_WATCH_MANIFESTS" default:"true"`
	WatchTimeout   time.Duration `yaml:"watch_timeout" json:"watch_timeout" env:"STREAMCTL_WATCH_TIMEOUT" default:"2m"`
}

// DatabaseConfig holds the dispatch log database configuration
type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" env:"STREAMCTL_DB_ENABLED" default:"true"`
	Type    string `yaml:"type" json:"type" env:"DATABASE_TYPE" default:"sqlite"`
	Path    string `yaml:"path" json:"path" env:"SQLITE_PATH"`
	URL     string `yaml:"url" json:"url" env:"DATABASE_URL"`
	DataDir string `yaml:"data_dir" json:"data_dir" env:"STREAMCTL_DATA_DIR" default:"./data"`
	LogSQL  bool   `yaml:"log_sql" json:"log_sql" env:"DB_LOG_QUERIES" default:"false"`

	// Dispatch records older than Retention are deleted every CleanupInterval. Zero keeps them forever.
	Retention       time.Duration `yaml:"retention" json:"retention" env:"STREAMCTL_DB_RETENTION" default:"720h"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval" env:"STREAMCTL_DB_CLEANUP_INTERVAL" default:"1h"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" env:"STREAMCTL_LOG_LEVEL" default:"info"`
	Format string `yaml:"format" json:"format" env:"STREAMCTL_LOG_FORMAT" default:"text"`
}

// ConfigManager loads and hands out the application configuration
type ConfigManager struct {
	config     *Config
	configPath string
	mu         sync.RWMutex
}

var (
	globalConfigManager *ConfigManager
	configOnce          sync.Once
)

// GetConfigManager returns the global configuration manager instance
func GetConfigManager() *ConfigManager {
	configOnce.Do(func() {
		globalConfigManager = NewConfigManager()
	})
	return globalConfigManager
}

// NewConfigManager creates a new configuration manager
func NewConfigManager() *ConfigManager {
	cfg := DefaultConfig()
	applyDerivedConfig(cfg)
	return &ConfigManager{config: cfg}
}

// DefaultConfig returns the default application configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			EnableCORS:      true,
			StaticDir:       "./static",
			StaticURL:       "/static/",
			SampleVideo:     "video/450.mp4",
		},
		Stream: StreamConfig{
			FFmpegPath:     "ffmpeg",
			DefaultTiers:   []string{"480p"},
			StartProtocol:  "dash",
			StopProtocol:   "hls",
			KillGrace:      5 * time.Second,
			WatchManifests: true,
			WatchTimeout:   2 * time.Minute,
		},
		Database: DatabaseConfig{
			Enabled:         true,
			Type:            "sqlite",
			DataDir:         "./data",
			Retention:       30 * 24 * time.Hour,
			CleanupInterval: time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from file and environment variables.
// Precedence: defaults, then file, then environment.
func (cm *ConfigManager) LoadConfig(configPath string) error {
	newConfig := DefaultConfig()

	if configPath != "" && fileExists(configPath) {
		if err := loadFromFile(configPath, newConfig); err != nil {
			return fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := loadStructFromEnv(reflect.ValueOf(newConfig).Elem()); err != nil {
		return fmt.Errorf("failed to load config from environment: %w", err)
	}

	applyDerivedConfig(newConfig)

	if err := newConfig.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	cm.mu.Lock()
	cm.config = newConfig
	cm.configPath = configPath
	cm.mu.Unlock()

	return nil
}

// GetConfig returns a copy of the current configuration
func (cm *ConfigManager) GetConfig() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	configCopy := *cm.config
	configCopy.Stream.DefaultTiers = append([]string(nil), cm.config.Stream.DefaultTiers...)
	return &configCopy
}

// ConfigPath returns the path the configuration was loaded from
func (cm *ConfigManager) ConfigPath() string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.configPath
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return &ValidationError{Field: "server.port", Message: fmt.Sprintf("invalid port %d", c.Server.Port)}
	}

	if c.Server.StaticDir == "" {
		return &ValidationError{Field: "server.static_dir", Message: "must not be empty"}
	}

	if !strings.HasPrefix(c.Server.StaticURL, "/") {
		return &ValidationError{Field: "server.static_url", Message: "must start with /"}
	}

	for _, p := range []struct{ field, value string }{
		{"stream.start_protocol", c.Stream.StartProtocol},
		{"stream.stop_protocol", c.Stream.StopProtocol},
	} {
		if p.value != "dash" && p.value != "hls" {
			return &ValidationError{Field: p.field, Message: "must be dash or hls"}
		}
	}

	if c.Stream.FFmpegPath == "" {
		return &ValidationError{Field: "stream.ffmpeg_path", Message: "must not be empty"}
	}

	if _, err := profile.Resolve(c.Stream.DefaultTiers); err != nil {
		return &ValidationError{
			Field:   "stream.default_tiers",
			Message: fmt.Sprintf("%v (known tiers: %s)", c.Stream.DefaultTiers, strings.Join(profile.Names(), ", ")),
		}
	}

	if c.Database.Type != "sqlite" && c.Database.Type != "postgres" {
		return &ValidationError{Field: "database.type", Message: "must be sqlite or postgres"}
	}

	if c.Database.Enabled && c.Database.Type == "postgres" && c.Database.URL == "" {
		return &ValidationError{Field: "database.url", Message: "required for postgres"}
	}

	if c.Database.Retention < 0 {
		return &ValidationError{Field: "database.retention", Message: "must not be negative"}
	}

	if c.Database.Retention > 0 && c.Database.CleanupInterval <= 0 {
		return &ValidationError{Field: "database.cleanup_interval", Message: "must be positive when retention is set"}
	}

	return nil
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "validation error in field '" + e.Field + "': " + e.Message
}

// SampleVideoURL returns the public URL of the sample asset shown on the index page
func (c *Config) SampleVideoURL() string {
	return strings.TrimSuffix(c.Server.StaticURL, "/") + "/" + strings.TrimPrefix(c.Server.SampleVideo, "/")
}

// Helper methods

func loadFromFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, config)
	case ".json":
		return json.Unmarshal(data, config)
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}
}

// loadStructFromEnv overrides fields whose env tag names a set variable.
// Defaults come from DefaultConfig, so the default tag is documentation only.
func loadStructFromEnv(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue, ok := os.LookupEnv(envTag)
		if !ok || envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set field %s from %s: %w", fieldType.Name, envTag, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			duration, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(duration))
		} else {
			intVal, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(intVal)
		}
	case reflect.Bool:
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolVal)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %v", field.Type())
		}
		values := strings.Split(value, ",")
		for i, v := range values {
			values[i] = strings.TrimSpace(v)
		}
		field.Set(reflect.ValueOf(values))
	default:
		return fmt.Errorf("unsupported field type: %v", field.Kind())
	}

	return nil
}

func applyDerivedConfig(config *Config) {
	if config.Stream.OutputDir == "" {
		config.Stream.OutputDir = filepath.Join(config.Server.StaticDir, "stream")
	}

	if config.Database.Path == "" && config.Database.Type == "sqlite" {
		config.Database.Path = filepath.Join(config.Database.DataDir, "streamctl.db")
	}

	if len(config.Stream.DefaultTiers) == 0 {
		config.Stream.DefaultTiers = []string{"480p"}
	}

	config.Stream.StartProtocol = strings.ToLower(config.Stream.StartProtocol)
	config.Stream.StopProtocol = strings.ToLower(config.Stream.StopProtocol)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Global convenience functions

// Get returns the current global configuration
func Get() *Config {
	return GetConfigManager().GetConfig()
}

// Load loads configuration from the specified path
func Load(configPath string) error {
	return GetConfigManager().LoadConfig(configPath)
}
