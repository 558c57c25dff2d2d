// Package config handles overlayd configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level overlayd configuration.
type Config struct {
	Browser   BrowserConfig   `yaml:"browser"`
	Pages     []PageConfig    `yaml:"pages"`
	Profiles  []ProfileConfig `yaml:"profiles"`
	FX        FXConfig        `yaml:"fx"`
	Debounce  DebounceConfig  `yaml:"debounce"`
	Probe     ProbeConfig     `yaml:"probe"`
	Store     StoreConfig     `yaml:"store"`
	Clipboard string          `yaml:"clipboard"` // system | page
	API       APIConfig       `yaml:"api"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Mode             string        `yaml:"mode"`   // headless | headful | remote
	Remote           string        `yaml:"remote"` // ws:// URL or host:port
	MemoryLimit      int64         `yaml:"memory_limit"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	XvfbDisplay      string        `yaml:"xvfb_display"`
	// ScanInterval is how often open tabs are checked for console pages.
	ScanInterval time.Duration `yaml:"scan_interval"`
}

// PageConfig is a page overlayd opens itself.
type PageConfig struct {
	URL string `yaml:"url"`
}

// ProfileConfig adjusts a built-in console profile.
type ProfileConfig struct {
	ID      string `yaml:"id"`
	Enabled *bool  `yaml:"enabled"`
	// Patterns replace the built-in URL patterns when set.
	Patterns     []string `yaml:"patterns"`
	HashContains *string  `yaml:"hash_contains"`
	RootSelector string   `yaml:"root_selector"`
	CSS          *bool    `yaml:"css"`
}

// IsEnabled defaults to true.
func (p ProfileConfig) IsEnabled() bool { return p.Enabled == nil || *p.Enabled }

// FXConfig configures the cached rate.
type FXConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Path     string        `yaml:"path"`
	TTL      time.Duration `yaml:"ttl"`
	Default  float64       `yaml:"default"`
	Mode     string        `yaml:"mode"` // both | original | converted
}

// DebounceConfig controls change batching.
type DebounceConfig struct {
	Window     time.Duration `yaml:"window"`
	MaxPending int           `yaml:"max_pending"`
}

// ProbeConfig bounds the root discovery backoff.
type ProbeConfig struct {
	Min time.Duration `yaml:"min"`
	Max time.Duration `yaml:"max"`
}

// StoreConfig locates the SQLite store. Empty path keeps state in memory.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// APIConfig configures the admin HTTP API. Empty Addr disables it.
type APIConfig struct {
	Addr string `yaml:"addr"`
	User string `yaml:"user"`
	// PasswordHash is a bcrypt hash. Auth is off when User is empty.
	PasswordHash string `yaml:"password_hash"`
	MCP          *bool  `yaml:"mcp"`
}

// MCPEnabled defaults to true.
func (a APIConfig) MCPEnabled() bool { return a.MCP == nil || *a.MCP }

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default is the configuration used without a file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Browser.Mode == "" {
		if c.Browser.Remote != "" {
			c.Browser.Mode = "remote"
		} else {
			c.Browser.Mode = "headless"
		}
	}
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Browser.ScanInterval <= 0 {
		c.Browser.ScanInterval = 2 * time.Second
	}
	if c.FX.Endpoint == "" {
		c.FX.Endpoint = "https://api.frankfurter.app/latest?from=EUR&to=USD"
	}
	if c.FX.Path == "" {
		c.FX.Path = "rates.USD"
	}
	if c.FX.TTL <= 0 {
		c.FX.TTL = 24 * time.Hour
	}
	if c.FX.Default <= 0 {
		c.FX.Default = 1.10
	}
	if c.FX.Mode == "" {
		c.FX.Mode = "both"
	}
	if c.Debounce.Window <= 0 {
		c.Debounce.Window = 50 * time.Millisecond
	}
	if c.Debounce.MaxPending <= 0 {
		c.Debounce.MaxPending = 1000
	}
	if c.Probe.Min <= 0 {
		c.Probe.Min = 100 * time.Millisecond
	}
	if c.Probe.Max <= 0 {
		c.Probe.Max = 5 * time.Second
	}
	if c.Clipboard == "" {
		c.Clipboard = "page"
	}
}

// Validate checks values that have no sensible default.
func (c *Config) Validate() error {
	switch c.Browser.Mode {
	case "headless", "headful":
	case "remote":
		if c.Browser.Remote == "" {
			return fmt.Errorf("config: browser.remote is required in remote mode")
		}
	default:
		return fmt.Errorf("config: unknown browser.mode %q", c.Browser.Mode)
	}
	switch c.FX.Mode {
	case "both", "original", "converted":
	default:
		return fmt.Errorf("config: unknown fx.mode %q", c.FX.Mode)
	}
	switch c.Clipboard {
	case "system", "page":
	default:
		return fmt.Errorf("config: unknown clipboard %q", c.Clipboard)
	}
	if c.Probe.Min > c.Probe.Max {
		return fmt.Errorf("config: probe.min %v exceeds probe.max %v", c.Probe.Min, c.Probe.Max)
	}
	seen := make(map[string]bool)
	for i, p := range c.Profiles {
		if p.ID == "" {
			return fmt.Errorf("config: profiles[%d]: missing id", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("config: duplicate profile %q", p.ID)
		}
		seen[p.ID] = true
	}
	for i, p := range c.Pages {
		if p.URL == "" {
			return fmt.Errorf("config: pages[%d]: missing url", i)
		}
	}
	if c.API.User != "" && c.API.PasswordHash == "" {
		return fmt.Errorf("config: api.user set without api.password_hash")
	}
	return nil
}
