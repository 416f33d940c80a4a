// Package config provides hierarchical configuration management.
// Priority: defaults < system < user < project < env < flags
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/logflow/textsniff/pkg/cache"
	lferrors "github.com/logflow/textsniff/pkg/errors"
	"github.com/logflow/textsniff/pkg/source"
	"github.com/logflow/textsniff/pkg/telemetry"
)

// FileName is the project configuration file looked up in the working directory.
const FileName = ".textsniff.yaml"

// Config holds all textsniff configuration.
type Config struct {
	Version int `yaml:"version"`

	Detect    DetectConfig    `yaml:"detect"`
	Legacy    LegacyConfig    `yaml:"legacy"`
	Reader    ReaderConfig    `yaml:"reader"`
	Cache     CacheConfig     `yaml:"cache"`
	S3        S3Config        `yaml:"s3"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
	Batch     BatchConfig     `yaml:"batch"`
}

// DetectConfig controls encoding resolution.
type DetectConfig struct {
	SampleSize    int    `yaml:"sample_size"`
	PrefixSize    int    `yaml:"prefix_size"` // 0 = sample_size
	Detector      string `yaml:"detector"`    // chardet | none
	WideHeuristic bool   `yaml:"wide_heuristic"`
}

// LegacyConfig selects the decoder used for Ansi verdicts.
type LegacyConfig struct {
	Charset string `yaml:"charset"` // IANA name, or "locale"
}

// ReaderConfig controls line reading.
type ReaderConfig struct {
	BufferSize int  `yaml:"buffer_size"`
	Fallback   bool `yaml:"fallback"`
}

// CacheConfig controls the verdict cache.
type CacheConfig struct {
	Backend string      `yaml:"backend"` // none | memory | redis
	Size    int         `yaml:"size"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig for the redis cache backend.
type RedisConfig struct {
	Address  string        `yaml:"address"`
	Password string        `yaml:"password,omitempty"`
	Database int           `yaml:"database"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
	Timeout  time.Duration `yaml:"timeout"`
}

// S3Config for s3:// sources. Credentials come from the AWS default chain.
type S3Config struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// TelemetryConfig for optional trace export.
type TelemetryConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Endpoint      string  `yaml:"endpoint"`
	ServiceName   string  `yaml:"service_name"`
	SamplingRatio float64 `yaml:"sampling_ratio"`
	Insecure      bool    `yaml:"insecure"`
}

// LogConfig for the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// BatchConfig for multi-source runs.
type BatchConfig struct {
	Workers int `yaml:"workers"` // 0 = GOMAXPROCS
}

// Default returns the default configuration.
func Default() *Config {
	redis := cache.DefaultRedisConfig("localhost:6379")
	otlp := telemetry.DefaultOTLPConfig("textsniff")

	return &Config{
		Version: 1,
		Detect: DetectConfig{
			SampleSize: 1024,
			Detector:   "chardet",
		},
		Legacy: LegacyConfig{
			Charset: "windows-1252",
		},
		Reader: ReaderConfig{
			BufferSize: 64 * 1024,
			Fallback:   true,
		},
		Cache: CacheConfig{
			Backend: cache.BackendNone,
			Size:    cache.DefaultMemorySize,
			Redis: RedisConfig{
				Address: redis.Address,
				Prefix:  redis.Prefix,
				TTL:     redis.TTL,
				Timeout: redis.Timeout,
			},
		},
		Telemetry: TelemetryConfig{
			Enabled:       false,
			Endpoint:      otlp.Endpoint,
			ServiceName:   otlp.ServiceName,
			SamplingRatio: otlp.SamplingRatio,
			Insecure:      otlp.Insecure,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	var errs lferrors.MultiError
	if c.Detect.SampleSize <= 0 {
		errs.Add(configError("detect.sample_size must be positive, got %d", c.Detect.SampleSize))
	}
	if c.Detect.PrefixSize < 0 {
		errs.Add(configError("detect.prefix_size must not be negative, got %d", c.Detect.PrefixSize))
	}
	switch c.Detect.Detector {
	case "chardet", "none":
	default:
		errs.Add(configError("detect.detector must be chardet or none, got %q", c.Detect.Detector))
	}
	switch c.Cache.Backend {
	case cache.BackendNone, cache.BackendMemory, cache.BackendRedis:
	default:
		errs.Add(configError("cache.backend must be none, memory or redis, got %q", c.Cache.Backend))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs.Add(configError("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		errs.Add(configError("telemetry.sampling_ratio must be within [0, 1], got %v", c.Telemetry.SamplingRatio))
	}
	if c.Batch.Workers < 0 {
		errs.Add(configError("batch.workers must not be negative, got %d", c.Batch.Workers))
	}
	return errs.Combined()
}

func configError(format string, args ...interface{}) error {
	return lferrors.New(lferrors.CodeConfig, fmt.Sprintf(format, args...))
}

// CacheConfig converts the cache section for cache.New.
func (c *Config) CacheConfig() cache.Config {
	r := cache.DefaultRedisConfig(c.Cache.Redis.Address)
	r.Password = c.Cache.Redis.Password
	r.Database = c.Cache.Redis.Database
	if c.Cache.Redis.Prefix != "" {
		r.Prefix = c.Cache.Redis.Prefix
	}
	r.TTL = c.Cache.Redis.TTL
	if c.Cache.Redis.Timeout > 0 {
		r.Timeout = c.Cache.Redis.Timeout
	}
	return cache.Config{Backend: c.Cache.Backend, Size: c.Cache.Size, Redis: r}
}

// S3Config converts the s3 section for source.Options.
func (c *Config) S3Config() source.S3Config {
	return source.S3Config{
		Region:       c.S3.Region,
		Endpoint:     c.S3.Endpoint,
		UsePathStyle: c.S3.PathStyle,
	}
}

// OTLPConfig converts the telemetry section for telemetry.InitOTLP.
func (c *Config) OTLPConfig(version string) telemetry.OTLPConfig {
	o := telemetry.DefaultOTLPConfig(c.Telemetry.ServiceName)
	o.Enabled = c.Telemetry.Enabled
	o.Endpoint = c.Telemetry.Endpoint
	o.Insecure = c.Telemetry.Insecure
	o.SamplingRatio = c.Telemetry.SamplingRatio
	if version != "" {
		o.ServiceVersion = version
	}
	return o
}

// Manager handles configuration loading and merging.
type Manager struct {
	mu     sync.RWMutex
	config *Config
	paths  []string // Paths that were loaded

	search []string
	getenv func(string) string
}

// NewManager creates a new configuration manager.
func NewManager() *Manager {
	return &Manager{
		config: Default(),
		getenv: os.Getenv,
	}
}

// WithSearchPaths replaces the default search path list.
func (m *Manager) WithSearchPaths(paths ...string) *Manager {
	m.search = append([]string{}, paths...)
	return m
}

// Load loads configuration from all sources in priority order.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config = Default()
	m.paths = nil

	for _, path := range m.configPaths() {
		if err := m.loadFile(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		m.paths = append(m.paths, path)
	}

	if err := m.loadEnv(); err != nil {
		return err
	}
	return m.config.Validate()
}

// LoadFile merges one explicit file over the current configuration and
// reapplies the environment, which still takes priority. A missing file is
// an error here.
func (m *Manager) LoadFile(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadFile(path); err != nil {
		if os.IsNotExist(err) {
			return lferrors.Wrap(err, lferrors.CodeConfig, "config file not found").WithContext("path", path)
		}
		return err
	}
	m.paths = append(m.paths, path)
	if err := m.loadEnv(); err != nil {
		return err
	}
	return m.config.Validate()
}

// configPaths returns config file paths in priority order.
func (m *Manager) configPaths() []string {
	if m.search != nil {
		return m.search
	}

	var paths []string
	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/textsniff/config.yaml")
	}
	if p, err := UserPath(); err == nil {
		paths = append(paths, p)
	}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, FileName))
	}
	return paths
}

// UserPath returns the per-user configuration file path.
func UserPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".textsniff", "config.yaml"), nil
}

// loadFile decodes a file over the current configuration. Keys absent from
// the file keep their current values, so each layer only overrides what it
// names.
func (m *Manager) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	merged := *m.config
	if err := yaml.Unmarshal(data, &merged); err != nil {
		return lferrors.Wrap(err, lferrors.CodeConfig, "parse config").WithContext("path", path)
	}
	m.config = &merged
	return nil
}

// loadEnv applies TEXTSNIFF_* environment variables.
func (m *Manager) loadEnv() error {
	c := m.config
	env := func(name string) string { return strings.TrimSpace(m.getenv("TEXTSNIFF_" + name)) }

	ints := []struct {
		name string
		dst  *int
	}{
		{"SAMPLE_SIZE", &c.Detect.SampleSize},
		{"PREFIX_SIZE", &c.Detect.PrefixSize},
		{"BUFFER_SIZE", &c.Reader.BufferSize},
		{"WORKERS", &c.Batch.Workers},
	}
	for _, f := range ints {
		if v := env(f.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return configError("TEXTSNIFF_%s: %v", f.name, err)
			}
			*f.dst = n
		}
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"WIDE", &c.Detect.WideHeuristic},
		{"FALLBACK", &c.Reader.Fallback},
		{"S3_PATH_STYLE", &c.S3.PathStyle},
	}
	for _, f := range bools {
		if v := env(f.name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return configError("TEXTSNIFF_%s: %v", f.name, err)
			}
			*f.dst = b
		}
	}

	strs := []struct {
		name string
		dst  *string
	}{
		{"DETECTOR", &c.Detect.Detector},
		{"LEGACY", &c.Legacy.Charset},
		{"CACHE", &c.Cache.Backend},
		{"REDIS_ADDR", &c.Cache.Redis.Address},
		{"REDIS_PASSWORD", &c.Cache.Redis.Password},
		{"S3_REGION", &c.S3.Region},
		{"S3_ENDPOINT", &c.S3.Endpoint},
		{"LOG_LEVEL", &c.Log.Level},
		{"LOG_FORMAT", &c.Log.Format},
	}
	for _, f := range strs {
		if v := env(f.name); v != "" {
			*f.dst = v
		}
	}

	// An explicit collector endpoint turns export on.
	if v := env("OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true
	}
	return nil
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetPaths returns the paths that were loaded.
func (m *Manager) GetPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.paths...)
}

// Marshal renders the current configuration as YAML.
func (m *Manager) Marshal() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return yaml.Marshal(m.config)
}

// Save writes the current config to the user config file.
func (m *Manager) Save() (string, error) {
	path, err := UserPath()
	if err != nil {
		return "", err
	}
	return path, m.SaveTo(path)
}

// SaveTo writes the current config to path, creating parent directories.
func (m *Manager) SaveTo(path string) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
