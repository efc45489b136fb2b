/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package boundedcache

import (
	"fmt"

	"github.com/acronis/go-authcache/config"
)

const cfgDefaultKeyPrefix = "cache"

const cfgKeyMaxEntries = "maxEntries"

// DefaultMaxEntries is the default maximum number of cache entries.
const DefaultMaxEntries = 10000

// Config represents a set of configuration parameters for the cache.
type Config struct {
	MaxEntries int `mapstructure:"maxEntries" yaml:"maxEntries" json:"maxEntries"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config.
// An empty keyPrefix means the default "cache" prefix.
func NewConfig(keyPrefix string) *Config {
	return &Config{keyPrefix: keyPrefix}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for the cache in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyMaxEntries, DefaultMaxEntries)
}

// Set sets cache configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) (err error) {
	if c.MaxEntries, err = dp.GetInt(cfgKeyMaxEntries); err != nil {
		return err
	}
	if c.MaxEntries <= 0 {
		return dp.WrapKeyErr(cfgKeyMaxEntries, fmt.Errorf("should be > 0"))
	}
	return nil
}
