/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package authapi

import (
	"fmt"
	"time"

	"github.com/spf13/cast"

	"github.com/acronis/go-authcache/config"
	"github.com/acronis/go-authcache/internal/ratelimit"
)

const cfgDefaultKeyPrefix = "server"

const (
	cfgKeyAddress                 = "address"
	cfgKeyReadTimeout             = "readTimeout"
	cfgKeyWriteTimeout            = "writeTimeout"
	cfgKeyShutdownTimeout         = "shutdownTimeout"
	cfgKeyMaxRequestBodySize      = "maxRequestBodySize"
	cfgKeyVerifyRateLimit         = "verifyRateLimit"
	cfgKeyVerifyBurst             = "verifyBurst"
	cfgKeySubjectRateLimitAlg     = "subjectRateLimit.alg"
	cfgKeySubjectRateLimitRate    = "subjectRateLimit.rate"
	cfgKeySubjectRateLimitBurst   = "subjectRateLimit.burst"
	cfgKeySubjectRateLimitMaxKeys = "subjectRateLimit.maxKeys"
	cfgKeySubjectRateLimitDryRun  = "subjectRateLimit.dryRun"
	cfgKeySubjectRateLimitInclude = "subjectRateLimit.includedSubjects"
	cfgKeySubjectRateLimitExclude = "subjectRateLimit.excludedSubjects"
)

// Default configuration values.
const (
	DefaultAddress                 = ":8080"
	DefaultReadTimeout             = 5 * time.Second
	DefaultWriteTimeout            = 10 * time.Second
	DefaultShutdownTimeout         = 5 * time.Second
	DefaultMaxRequestBodySize      = "4K"
	DefaultVerifyRateLimit         = 100.0
	DefaultVerifyBurst             = 20
	DefaultSubjectRateLimitRate    = "10/m"
	DefaultSubjectRateLimitBurst   = 5
	DefaultSubjectRateLimitMaxKeys = 10000
)

// SubjectRateLimitConfig represents configuration of the per-subject limit of verification attempts.
type SubjectRateLimitConfig struct {
	// Alg is a rate-limiting algorithm ("leaky_bucket" or "sliding_window").
	Alg string `mapstructure:"alg" yaml:"alg" json:"alg"`

	// Rate is the maximum rate of attempts for one subject. Zero value disables the limit.
	Rate ratelimit.Rate `mapstructure:"-" yaml:"-" json:"-"`

	Burst   int  `mapstructure:"burst" yaml:"burst" json:"burst"`
	MaxKeys int  `mapstructure:"maxKeys" yaml:"maxKeys" json:"maxKeys"`
	DryRun  bool `mapstructure:"dryRun" yaml:"dryRun" json:"dryRun"`

	// IncludedSubjects and ExcludedSubjects are glob patterns (e.g. "svc-*") selecting
	// the subjects the limit applies to. At most one of them may be set.
	IncludedSubjects []string `mapstructure:"includedSubjects" yaml:"includedSubjects" json:"includedSubjects"`
	ExcludedSubjects []string `mapstructure:"excludedSubjects" yaml:"excludedSubjects" json:"excludedSubjects"`
}

// Config represents a set of configuration parameters for the HTTP API server.
type Config struct {
	Address            string                 `mapstructure:"address" yaml:"address" json:"address"`
	ReadTimeout        time.Duration          `mapstructure:"readTimeout" yaml:"readTimeout" json:"readTimeout"`
	WriteTimeout       time.Duration          `mapstructure:"writeTimeout" yaml:"writeTimeout" json:"writeTimeout"`
	ShutdownTimeout    time.Duration          `mapstructure:"shutdownTimeout" yaml:"shutdownTimeout" json:"shutdownTimeout"`
	MaxRequestBodySize config.BytesCount      `mapstructure:"maxRequestBodySize" yaml:"maxRequestBodySize" json:"maxRequestBodySize"`
	VerifyRateLimit    float64                `mapstructure:"verifyRateLimit" yaml:"verifyRateLimit" json:"verifyRateLimit"`
	VerifyBurst        int                    `mapstructure:"verifyBurst" yaml:"verifyBurst" json:"verifyBurst"`
	SubjectRateLimit   SubjectRateLimitConfig `mapstructure:"subjectRateLimit" yaml:"subjectRateLimit" json:"subjectRateLimit"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config.
func NewConfig() *Config {
	return &Config{keyPrefix: cfgDefaultKeyPrefix}
}

// NewConfigWithKeyPrefix creates a new instance of the Config with the given key prefix.
func NewConfigWithKeyPrefix(keyPrefix string) *Config {
	return &Config{keyPrefix: keyPrefix}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for the server in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyAddress, DefaultAddress)
	dp.SetDefault(cfgKeyReadTimeout, DefaultReadTimeout.String())
	dp.SetDefault(cfgKeyWriteTimeout, DefaultWriteTimeout.String())
	dp.SetDefault(cfgKeyShutdownTimeout, DefaultShutdownTimeout.String())
	dp.SetDefault(cfgKeyMaxRequestBodySize, DefaultMaxRequestBodySize)
	dp.SetDefault(cfgKeyVerifyRateLimit, DefaultVerifyRateLimit)
	dp.SetDefault(cfgKeyVerifyBurst, DefaultVerifyBurst)
	dp.SetDefault(cfgKeySubjectRateLimitAlg, ratelimit.AlgLeakyBucket)
	dp.SetDefault(cfgKeySubjectRateLimitRate, DefaultSubjectRateLimitRate)
	dp.SetDefault(cfgKeySubjectRateLimitBurst, DefaultSubjectRateLimitBurst)
	dp.SetDefault(cfgKeySubjectRateLimitMaxKeys, DefaultSubjectRateLimitMaxKeys)
	dp.SetDefault(cfgKeySubjectRateLimitDryRun, false)
}

// Set sets server configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) (err error) {
	if c.Address, err = dp.GetString(cfgKeyAddress); err != nil {
		return err
	}
	if err = c.setTimeouts(dp); err != nil {
		return err
	}
	if c.MaxRequestBodySize, err = dp.GetBytesCount(cfgKeyMaxRequestBodySize); err != nil {
		return err
	}
	if err = c.setVerifyRateLimit(dp); err != nil {
		return err
	}
	return c.setSubjectRateLimit(dp)
}

func (c *Config) setTimeouts(dp config.DataProvider) (err error) {
	for key, dst := range map[string]*time.Duration{
		cfgKeyReadTimeout:     &c.ReadTimeout,
		cfgKeyWriteTimeout:    &c.WriteTimeout,
		cfgKeyShutdownTimeout: &c.ShutdownTimeout,
	} {
		if *dst, err = dp.GetDuration(key); err != nil {
			return err
		}
		if *dst < 0 {
			return dp.WrapKeyErr(key, fmt.Errorf("should be >= 0"))
		}
	}
	return nil
}

func (c *Config) setVerifyRateLimit(dp config.DataProvider) (err error) {
	if c.VerifyRateLimit, err = cast.ToFloat64E(dp.Get(cfgKeyVerifyRateLimit)); err != nil {
		return dp.WrapKeyErr(cfgKeyVerifyRateLimit, err)
	}
	if c.VerifyRateLimit < 0 {
		return dp.WrapKeyErr(cfgKeyVerifyRateLimit, fmt.Errorf("should be >= 0"))
	}
	if c.VerifyBurst, err = dp.GetInt(cfgKeyVerifyBurst); err != nil {
		return err
	}
	if c.VerifyRateLimit > 0 && c.VerifyBurst <= 0 {
		return dp.WrapKeyErr(cfgKeyVerifyBurst, fmt.Errorf("should be > 0"))
	}
	return nil
}

func (c *Config) setSubjectRateLimit(dp config.DataProvider) (err error) {
	algs := []string{ratelimit.AlgLeakyBucket, ratelimit.AlgSlidingWindow}
	if c.SubjectRateLimit.Alg, err = dp.GetStringFromSet(cfgKeySubjectRateLimitAlg, algs, false); err != nil {
		return err
	}

	var rate string
	if rate, err = dp.GetString(cfgKeySubjectRateLimitRate); err != nil {
		return err
	}
	c.SubjectRateLimit.Rate = ratelimit.Rate{}
	if rate != "" {
		if c.SubjectRateLimit.Rate, err = ratelimit.ParseRate(rate); err != nil {
			return dp.WrapKeyErr(cfgKeySubjectRateLimitRate, err)
		}
	}

	if c.SubjectRateLimit.Burst, err = dp.GetInt(cfgKeySubjectRateLimitBurst); err != nil {
		return err
	}
	if c.SubjectRateLimit.Burst < 0 {
		return dp.WrapKeyErr(cfgKeySubjectRateLimitBurst, fmt.Errorf("should be >= 0"))
	}
	if c.SubjectRateLimit.MaxKeys, err = dp.GetInt(cfgKeySubjectRateLimitMaxKeys); err != nil {
		return err
	}
	if c.SubjectRateLimit.MaxKeys <= 0 {
		return dp.WrapKeyErr(cfgKeySubjectRateLimitMaxKeys, fmt.Errorf("should be > 0"))
	}
	if c.SubjectRateLimit.DryRun, err = dp.GetBool(cfgKeySubjectRateLimitDryRun); err != nil {
		return err
	}
	if c.SubjectRateLimit.IncludedSubjects, err = dp.GetStringSlice(cfgKeySubjectRateLimitInclude); err != nil {
		return err
	}
	if c.SubjectRateLimit.ExcludedSubjects, err = dp.GetStringSlice(cfgKeySubjectRateLimitExclude); err != nil {
		return err
	}
	if len(c.SubjectRateLimit.IncludedSubjects) != 0 && len(c.SubjectRateLimit.ExcludedSubjects) != 0 {
		return dp.WrapKeyErr(cfgKeySubjectRateLimitExclude,
			fmt.Errorf("included and excluded subjects cannot be specified at the same time"))
	}
	return nil
}
