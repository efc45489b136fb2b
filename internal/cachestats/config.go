/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package cachestats

import (
	"fmt"
	"time"

	"github.com/acronis/go-authcache/config"
)

const cfgDefaultKeyPrefix = "stats"

const cfgKeyInterval = "interval"

// DefaultInterval is the default interval between two cache stats reports.
const DefaultInterval = time.Minute

// Config represents a set of configuration parameters for periodic cache stats reporting.
// A zero Interval disables reporting.
type Config struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval" json:"interval"`
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config.
func NewConfig() *Config {
	return &Config{}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return cfgDefaultKeyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyInterval, DefaultInterval.String())
}

// Set sets configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) (err error) {
	if c.Interval, err = dp.GetDuration(cfgKeyInterval); err != nil {
		return err
	}
	if c.Interval < 0 {
		return dp.WrapKeyErr(cfgKeyInterval, fmt.Errorf("cannot be negative"))
	}
	return nil
}
