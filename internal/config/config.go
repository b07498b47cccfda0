// Package config wraps viper behind a small nil-safe accessor type and owns
// the fleetaudit configuration surface: YAML file, FLEETAUDIT_* environment
// overrides, and defaults.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config provides read access to configuration values. A nil underlying
// viper yields zero values rather than panics.
type Config struct {
	v *viper.Viper
}

// New wraps an existing viper instance.
func New(v *viper.Viper) *Config {
	return &Config{v: v}
}

// Load reads configuration from the given YAML file (optional), applies
// defaults, and binds FLEETAUDIT_* environment variables (dots become
// underscores, e.g. FLEETAUDIT_API_KEY for api.key).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("FLEETAUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	} else {
		v.SetConfigName("fleetaudit")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
			// No file is fine; env and defaults carry the run.
		}
	}

	return New(v), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "https://api.meraki.com/api/v1")
	v.SetDefault("api.rps", 8.0)
	v.SetDefault("scan.lookback_days", 30)
	v.SetDefault("scan.workers", runtime.NumCPU()*4)
	v.SetDefault("scan.block_workers", 8)
	v.SetDefault("block.enabled", false)
	v.SetDefault("denylist.macs", "bad_macs.txt")
	v.SetDefault("denylist.companies", "bad_companies.txt")
	v.SetDefault("output.dir", ".")
	v.SetDefault("retention.days", 90)
}

// Validate checks the values a run cannot start without.
func (c *Config) Validate() error {
	if c.GetString("api.key") == "" {
		return errors.New("api.key is required (FLEETAUDIT_API_KEY)")
	}
	if c.GetString("org.id") == "" {
		return errors.New("org.id is required (FLEETAUDIT_ORG_ID)")
	}
	return nil
}

// GetString returns a string value, or "" when unset.
func (c *Config) GetString(key string) string {
	if c.v == nil {
		return ""
	}
	return c.v.GetString(key)
}

// GetInt returns an int value, or 0 when unset.
func (c *Config) GetInt(key string) int {
	if c.v == nil {
		return 0
	}
	return c.v.GetInt(key)
}

// GetFloat64 returns a float value, or 0 when unset.
func (c *Config) GetFloat64(key string) float64 {
	if c.v == nil {
		return 0
	}
	return c.v.GetFloat64(key)
}

// GetBool returns a bool value, or false when unset.
func (c *Config) GetBool(key string) bool {
	if c.v == nil {
		return false
	}
	return c.v.GetBool(key)
}

// GetDuration returns a duration value, or 0 when unset.
func (c *Config) GetDuration(key string) time.Duration {
	if c.v == nil {
		return 0
	}
	return c.v.GetDuration(key)
}

// IsSet reports whether the key has a value from any source.
func (c *Config) IsSet(key string) bool {
	if c.v == nil {
		return false
	}
	return c.v.IsSet(key)
}

// Sub returns the subtree under key. Always non-nil.
func (c *Config) Sub(key string) *Config {
	if c.v == nil {
		return New(nil)
	}
	return New(c.v.Sub(key))
}

// Unmarshal decodes the configuration into target via mapstructure tags.
func (c *Config) Unmarshal(target any) error {
	if c.v == nil {
		return nil
	}
	return c.v.Unmarshal(target)
}
