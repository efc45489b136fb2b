/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package credential

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/acronis/go-authcache/config"
)

const cfgDefaultKeyPrefix = "credential"

const (
	cfgKeyBcryptCost               = "bcryptCost"
	cfgKeyStorePath                = "storePath"
	cfgKeyLoadRetryInitialInterval = "loadRetry.initialInterval"
	cfgKeyLoadRetryMaxAttempts     = "loadRetry.maxAttempts"
	cfgKeyPasswordMinLength        = "passwordPolicy.minLength"
	cfgKeyPasswordForbidden        = "passwordPolicy.forbiddenSubstrings"
	cfgKeyPasswordForbidSubject    = "passwordPolicy.forbidSubject"
)

// DefaultPasswordMinLength is the default minimum length of passwords set via the API.
const DefaultPasswordMinLength = 8

// DefaultStorePath is the default path of the YAML file with stored credential hashes.
const DefaultStorePath = "./credentials.yml"

// LoadRetryConfig represents configuration of retries for loading credential hashes from the store.
type LoadRetryConfig struct {
	InitialInterval time.Duration `mapstructure:"initialInterval" yaml:"initialInterval" json:"initialInterval"`
	MaxAttempts     int           `mapstructure:"maxAttempts" yaml:"maxAttempts" json:"maxAttempts"`
}

// PasswordPolicyConfig represents configuration of the policy for new passwords.
type PasswordPolicyConfig struct {
	MinLength           int      `mapstructure:"minLength" yaml:"minLength" json:"minLength"`
	ForbiddenSubstrings []string `mapstructure:"forbiddenSubstrings" yaml:"forbiddenSubstrings" json:"forbiddenSubstrings"`
	ForbidSubject       bool     `mapstructure:"forbidSubject" yaml:"forbidSubject" json:"forbidSubject"`
}

// Config represents a set of configuration parameters for the credential registry.
type Config struct {
	BcryptCost     int                  `mapstructure:"bcryptCost" yaml:"bcryptCost" json:"bcryptCost"`
	StorePath      string               `mapstructure:"storePath" yaml:"storePath" json:"storePath"`
	LoadRetry      LoadRetryConfig      `mapstructure:"loadRetry" yaml:"loadRetry" json:"loadRetry"`
	PasswordPolicy PasswordPolicyConfig `mapstructure:"passwordPolicy" yaml:"passwordPolicy" json:"passwordPolicy"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// ConfigOption is a type for functional options for the Config.
type ConfigOption func(*configOptions)

type configOptions struct {
	keyPrefix string
}

// WithKeyPrefix returns a ConfigOption that sets a key prefix for parsing configuration parameters.
func WithKeyPrefix(keyPrefix string) ConfigOption {
	return func(o *configOptions) {
		o.keyPrefix = keyPrefix
	}
}

// NewConfig creates a new instance of the Config.
func NewConfig(options ...ConfigOption) *Config {
	var opts = configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{keyPrefix: opts.keyPrefix}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for the registry in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyBcryptCost, bcrypt.DefaultCost)
	dp.SetDefault(cfgKeyStorePath, DefaultStorePath)
	dp.SetDefault(cfgKeyLoadRetryInitialInterval, DefaultLoadRetryInitialInterval.String())
	dp.SetDefault(cfgKeyLoadRetryMaxAttempts, DefaultLoadRetryMaxAttempts)
	dp.SetDefault(cfgKeyPasswordMinLength, DefaultPasswordMinLength)
	dp.SetDefault(cfgKeyPasswordForbidSubject, true)
}

// Set sets registry configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) (err error) {
	if c.BcryptCost, err = dp.GetInt(cfgKeyBcryptCost); err != nil {
		return err
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return dp.WrapKeyErr(cfgKeyBcryptCost, fmt.Errorf("should be in range [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost))
	}

	if c.StorePath, err = dp.GetString(cfgKeyStorePath); err != nil {
		return err
	}
	if c.StorePath == "" {
		return dp.WrapKeyErr(cfgKeyStorePath, fmt.Errorf("cannot be empty"))
	}

	if c.LoadRetry.InitialInterval, err = dp.GetDuration(cfgKeyLoadRetryInitialInterval); err != nil {
		return err
	}
	if c.LoadRetry.InitialInterval <= 0 {
		return dp.WrapKeyErr(cfgKeyLoadRetryInitialInterval, fmt.Errorf("should be > 0"))
	}
	if c.LoadRetry.MaxAttempts, err = dp.GetInt(cfgKeyLoadRetryMaxAttempts); err != nil {
		return err
	}
	if c.LoadRetry.MaxAttempts < 0 {
		return dp.WrapKeyErr(cfgKeyLoadRetryMaxAttempts, fmt.Errorf("should be >= 0"))
	}
	return c.setPasswordPolicy(dp)
}

func (c *Config) setPasswordPolicy(dp config.DataProvider) (err error) {
	if c.PasswordPolicy.MinLength, err = dp.GetInt(cfgKeyPasswordMinLength); err != nil {
		return err
	}
	if c.PasswordPolicy.MinLength < 0 {
		return dp.WrapKeyErr(cfgKeyPasswordMinLength, fmt.Errorf("should be >= 0"))
	}
	if c.PasswordPolicy.ForbiddenSubstrings, err = dp.GetStringSlice(cfgKeyPasswordForbidden); err != nil {
		return err
	}
	if c.PasswordPolicy.ForbidSubject, err = dp.GetBool(cfgKeyPasswordForbidSubject); err != nil {
		return err
	}
	return nil
}

// RegistryOpts converts the configuration into options for NewRegistry.
func (c *Config) RegistryOpts() RegistryOpts {
	maxAttempts := c.LoadRetry.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = -1
	}
	return RegistryOpts{
		BcryptCost:               c.BcryptCost,
		LoadRetryInitialInterval: c.LoadRetry.InitialInterval,
		LoadRetryMaxAttempts:     maxAttempts,
		PasswordChecker: NewPasswordChecker(PasswordPolicy{
			MinLength:           c.PasswordPolicy.MinLength,
			ForbiddenSubstrings: c.PasswordPolicy.ForbiddenSubstrings,
			ForbidSubject:       c.PasswordPolicy.ForbidSubject,
		}),
	}
}
