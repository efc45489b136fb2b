/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"fmt"
	"io"
	"time"

	"github.com/mitchellh/mapstructure"
)

// DataType is the format of a configuration source.
type DataType string

// Formats accepted by SetFromFile and SetFromReader.
// The service configuration file is YAML; JSON is accepted for tests and generated configs.
const (
	DataTypeYAML DataType = "yaml"
	DataTypeJSON DataType = "json"
)

// DataProvider is the source of configuration values for Config implementations.
// Values come from a file or reader and may be overridden by environment variables.
// Typed getters return an error (see WrapKeyErr) when the value cannot be converted.
type DataProvider interface {
	// UseEnvVars makes every key readable from the PREFIX_SECTION_KEY environment variable.
	UseEnvVars(prefix string)

	Set(key string, value interface{})
	SetDefault(key string, value interface{})

	SetFromFile(path string, dataType DataType) error
	SetFromReader(reader io.Reader, dataType DataType) error

	IsSet(key string) bool

	Get(key string) interface{}
	GetBool(key string) (bool, error)
	GetInt(key string) (int, error)
	GetString(key string) (string, error)
	// GetStringSlice returns nil for a missing key.
	GetStringSlice(key string) ([]string, error)
	// GetStringFromSet fails unless the value is one of set.
	GetStringFromSet(key string, set []string, ignoreCase bool) (string, error)
	GetDuration(key string) (time.Duration, error)
	// GetBytesCount accepts sizes like "64M" or "1G".
	GetBytesCount(key string) (BytesCount, error)

	// UnmarshalKey decodes a nested section (for example, the list of log masking rules).
	UnmarshalKey(key string, rawVal interface{}, opts ...DecoderConfigOption) error

	WrapKeyErr(key string, err error) error
}

// DecoderConfigOption adjusts the mapstructure decoder used by UnmarshalKey.
type DecoderConfigOption func(*mapstructure.DecoderConfig)

// WrapKeyErr prefixes err with the full key of the invalid value, e.g. "credential.bcryptCost: ...".
func WrapKeyErr(key string, err error) error {
	return fmt.Errorf("%s: %w", key, err)
}

// WrapKeyErrIfNeeded is WrapKeyErr that keeps nil errors nil.
func WrapKeyErrIfNeeded(key string, err error) error {
	if err == nil {
		return nil
	}
	return WrapKeyErr(key, err)
}
