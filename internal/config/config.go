package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the matchsearch API configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	Storage     StorageConfig     `yaml:"storage"`
	Logging     LoggingConfig     `yaml:"logging"`
	Tenants     []TenantConfig    `yaml:"tenants"`
	Search      SearchConfig      `yaml:"search"`
	SideEffects SideEffectsConfig `yaml:"side_effects"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// TenantConfig describes one brand/country served by the engine.
type TenantConfig struct {
	ID              string `yaml:"id"`
	EnglishLocaleID int    `yaml:"english_locale_id"`
}

// SearchConfig holds search, scoring and tracking thresholds.
type SearchConfig struct {
	DefaultPageSize    int           `yaml:"default_page_size"`
	MaxPageSize        int           `yaml:"max_page_size"`
	MaxExplainPageSize int           `yaml:"max_explain_page_size"`
	DefaultDistanceKm  float64       `yaml:"default_distance_km"`
	PostalCodeMarginKm float64       `yaml:"postal_code_margin_km"`
	CountCacheTTL      time.Duration `yaml:"count_cache_ttl"`
	PremiumStaleness   time.Duration `yaml:"premium_staleness"`
	TrackingWindow     time.Duration `yaml:"tracking_window"`
	TrackingTopN       int           `yaml:"tracking_top_n"`
	MinPlaceUsers      int           `yaml:"min_place_users"`
	CircleSegments     int           `yaml:"circle_segments"`
	ClusterCells       int           `yaml:"cluster_cells"` // grid cells per bounding-box side
}

// SideEffectsConfig holds the post-response worker pool settings.
type SideEffectsConfig struct {
	PoolSize      int           `yaml:"pool_size"`
	RetryAttempts uint          `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	Timeout       time.Duration `yaml:"timeout"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes raw YAML, applies defaults and validates the result.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// Tenant looks up a configured tenant by id.
func (c *Config) Tenant(id string) (TenantConfig, bool) {
	for _, t := range c.Tenants {
		if t.ID == id {
			return t, true
		}
	}
	return TenantConfig{}, false
}

// TenantIDs returns the configured tenant ids in declaration order.
func (c *Config) TenantIDs() []string {
	ids := make([]string, len(c.Tenants))
	for i, t := range c.Tenants {
		ids[i] = t.ID
	}
	return ids
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "matchsearch:"
	}
	for i := range c.Tenants {
		if c.Tenants[i].EnglishLocaleID <= 0 {
			c.Tenants[i].EnglishLocaleID = 1
		}
	}
	c.Search.applyDefaults()
	c.SideEffects.applyDefaults()
}

func (s *SearchConfig) applyDefaults() {
	if s.DefaultPageSize <= 0 {
		s.DefaultPageSize = 20
	}
	if s.MaxPageSize <= 0 {
		s.MaxPageSize = 100
	}
	if s.MaxExplainPageSize <= 0 {
		s.MaxExplainPageSize = 10
	}
	if s.DefaultDistanceKm <= 0 {
		s.DefaultDistanceKm = 20
	}
	if s.PostalCodeMarginKm <= 0 {
		s.PostalCodeMarginKm = 2
	}
	if s.CountCacheTTL <= 0 {
		s.CountCacheTTL = 3 * time.Hour
	}
	if s.PremiumStaleness <= 0 {
		s.PremiumStaleness = 24 * time.Hour
	}
	if s.TrackingWindow <= 0 {
		s.TrackingWindow = 30 * 24 * time.Hour
	}
	if s.TrackingTopN <= 0 {
		s.TrackingTopN = 20
	}
	if s.MinPlaceUsers <= 0 {
		s.MinPlaceUsers = 5
	}
	if s.CircleSegments <= 0 {
		s.CircleSegments = 32
	}
	if s.ClusterCells <= 0 {
		s.ClusterCells = 8
	}
}

func (s *SideEffectsConfig) applyDefaults() {
	if s.PoolSize <= 0 {
		s.PoolSize = 64
	}
	if s.RetryAttempts == 0 {
		s.RetryAttempts = 3
	}
	if s.RetryDelay <= 0 {
		s.RetryDelay = 50 * time.Millisecond
	}
	if s.Timeout <= 0 {
		s.Timeout = 5 * time.Second
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if len(c.Tenants) == 0 {
		return fmt.Errorf("at least one tenant is required")
	}
	seen := make(map[string]struct{}, len(c.Tenants))
	for i, t := range c.Tenants {
		if t.ID == "" {
			return fmt.Errorf("tenants[%d].id is required", i)
		}
		if strings.ContainsAny(t.ID, ": ") {
			return fmt.Errorf("tenants[%d].id %q must not contain ':' or spaces", i, t.ID)
		}
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("duplicate tenant id %q", t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	if c.Search.DefaultPageSize > c.Search.MaxPageSize {
		return fmt.Errorf(
			"search.default_page_size (%d) must not exceed search.max_page_size (%d)",
			c.Search.DefaultPageSize, c.Search.MaxPageSize,
		)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
