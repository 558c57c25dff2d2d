package overlay

import (
	"github.com/hazyhaar/overlay/overlay/internal/config"
)

// Config is the top-level overlayd configuration. Re-exported from internal.
type Config = config.Config

// PageConfig is a page overlayd opens itself.
type PageConfig = config.PageConfig

// ProfileConfig adjusts a built-in console profile.
type ProfileConfig = config.ProfileConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig is the configuration used without a file.
func DefaultConfig() *Config {
	return config.Default()
}
