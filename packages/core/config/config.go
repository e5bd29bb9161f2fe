package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the nicehttp configuration
type Config struct {
	Timeout         time.Duration     `yaml:"timeout,omitempty" validate:"gte=0s"`
	FollowRedirects *bool             `yaml:"followRedirects,omitempty"`
	MaxRedirects    int               `yaml:"maxRedirects,omitempty" validate:"gte=0,lte=100"`
	ValidateSSL     *bool             `yaml:"validateSSL,omitempty"`
	Proxy           string            `yaml:"proxy,omitempty" validate:"omitempty,url"`
	UserAgent       string            `yaml:"userAgent,omitempty"`
	Referer         string            `yaml:"referer,omitempty"`
	Headers         map[string]string `yaml:"headers,omitempty"` // Default headers for all requests
	Cookies         map[string]string `yaml:"cookies,omitempty"` // Default cookies for all requests
	MaxTextSize     int64             `yaml:"maxTextSize,omitempty" validate:"gte=0"`
	CacheTime       time.Duration     `yaml:"cacheTime,omitempty" validate:"gte=0s"`
	CacheDB         string            `yaml:"cacheDB,omitempty"` // SQLite path, in-memory cache when empty
	Throttle        *Throttle         `yaml:"throttle,omitempty"`
	DoH             *DoH              `yaml:"doh,omitempty"`
	RequestID       *bool             `yaml:"requestID,omitempty"`
	NoColor         *bool             `yaml:"noColor,omitempty"`
	Verbose         *bool             `yaml:"verbose,omitempty"`
}

// Throttle limits the request rate of the client.
type Throttle struct {
	RPS   float64 `yaml:"rps" validate:"gt=0"`
	Burst int     `yaml:"burst,omitempty" validate:"gte=0"`
}

// DoH routes host lookups through a DNS-over-HTTPS resolver.
type DoH struct {
	URL       string   `yaml:"url" validate:"required,url"`
	Bootstrap []string `yaml:"bootstrap,omitempty" validate:"dive,ip"`
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetRequestID returns the request id setting, defaulting to false
func (c *Config) GetRequestID() bool {
	return getBool(c.RequestID, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// ConfigFilenames contains the possible config file names, in lookup order
var ConfigFilenames = []string{
	"nicehttp.yaml",
	".nicehttp.yaml",
	".nicehttp.yml",
	".nicehttp.json",
}

// LoadConfig loads configuration from the specified path or searches the
// current directory
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}
	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory and
// returns the defaults when none exists
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	return DefaultConfig(), nil
}

// loadConfigFromFile reads YAML or JSON; JSON is a subset of YAML.
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return config, nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c

	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.UserAgent != "" {
		result.UserAgent = other.UserAgent
	}
	if other.Referer != "" {
		result.Referer = other.Referer
	}
	if other.MaxTextSize > 0 {
		result.MaxTextSize = other.MaxTextSize
	}
	if other.CacheTime > 0 {
		result.CacheTime = other.CacheTime
	}
	if other.CacheDB != "" {
		result.CacheDB = other.CacheDB
	}
	if other.Throttle != nil {
		result.Throttle = other.Throttle
	}
	if other.DoH != nil {
		result.DoH = other.DoH
	}

	// Boolean flags - only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.RequestID != nil {
		result.RequestID = other.RequestID
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}

	result.Headers = mergeMap(c.Headers, other.Headers)
	result.Cookies = mergeMap(c.Cookies, other.Cookies)

	return &result
}

func mergeMap(base, over map[string]string) map[string]string {
	if len(over) == 0 {
		return maps.Clone(base)
	}
	merged := make(map[string]string, len(base)+len(over))
	maps.Copy(merged, base)
	maps.Copy(merged, over)
	return merged
}

// SaveConfig writes the configuration as YAML
func (c *Config) SaveConfig(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
