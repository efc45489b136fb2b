/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testServerConfig struct {
	Address string
	Timeout time.Duration
}

func (c *testServerConfig) KeyPrefix() string {
	return "server"
}

func (c *testServerConfig) SetProviderDefaults(dp DataProvider) {
	dp.SetDefault("address", ":8080")
	dp.SetDefault("timeout", "5s")
}

func (c *testServerConfig) Set(dp DataProvider) (err error) {
	if c.Address, err = dp.GetString("address"); err != nil {
		return err
	}
	if c.Timeout, err = dp.GetDuration("timeout"); err != nil {
		return err
	}
	return nil
}

type testCacheConfig struct {
	MaxEntries int
}

func (c *testCacheConfig) KeyPrefix() string {
	return "cache"
}

func (c *testCacheConfig) SetProviderDefaults(dp DataProvider) {
	dp.SetDefault("maxEntries", 100)
}

func (c *testCacheConfig) Set(dp DataProvider) (err error) {
	c.MaxEntries, err = dp.GetInt("maxEntries")
	return err
}

type testAppConfig struct {
	Server  *testServerConfig
	Cache   *testCacheConfig
	Missing *testCacheConfig
}

func (c *testAppConfig) SetProviderDefaults(dp DataProvider) {
	CallSetProviderDefaultsForFields(c, dp)
}

func (c *testAppConfig) Set(dp DataProvider) error {
	return CallSetForFields(c, dp)
}

func TestLoader_LoadFromReader(t *testing.T) {
	t.Run("defaults are used for absent keys", func(t *testing.T) {
		srvCfg := &testServerConfig{}
		err := NewLoader(NewViperAdapter()).LoadFromReader(bytes.NewBufferString(`{}`), DataTypeJSON, srvCfg)
		require.NoError(t, err)
		require.Equal(t, ":8080", srvCfg.Address)
		require.Equal(t, 5*time.Second, srvCfg.Timeout)
	})

	t.Run("values from YAML override defaults", func(t *testing.T) {
		srvCfg := &testServerConfig{}
		cacheCfg := &testCacheConfig{}
		data := "server:\n  address: \":9090\"\n  timeout: 1m\ncache:\n  maxEntries: 7\n"
		err := NewLoader(NewViperAdapter()).LoadFromReader(bytes.NewBufferString(data), DataTypeYAML, srvCfg, cacheCfg)
		require.NoError(t, err)
		require.Equal(t, ":9090", srvCfg.Address)
		require.Equal(t, time.Minute, srvCfg.Timeout)
		require.Equal(t, 7, cacheCfg.MaxEntries)
	})

	t.Run("invalid value is reported with its key", func(t *testing.T) {
		cacheCfg := &testCacheConfig{}
		err := NewLoader(NewViperAdapter()).LoadFromReader(
			bytes.NewBufferString(`{"cache":{"maxEntries":"many"}}`), DataTypeJSON, cacheCfg)
		require.ErrorContains(t, err, "cache.maxEntries")
	})

	t.Run("nested sections", func(t *testing.T) {
		appCfg := &testAppConfig{Server: &testServerConfig{}, Cache: &testCacheConfig{}}
		err := NewLoader(NewViperAdapter()).LoadFromReader(
			bytes.NewBufferString(`{"cache":{"maxEntries":3}}`), DataTypeJSON, appCfg)
		require.NoError(t, err)
		require.Equal(t, ":8080", appCfg.Server.Address)
		require.Equal(t, 3, appCfg.Cache.MaxEntries)
		require.Nil(t, appCfg.Missing)
	})
}

func TestLoader_LoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  maxEntries: 42\n"), 0o600))

	cacheCfg := &testCacheConfig{}
	require.NoError(t, NewLoader(NewViperAdapter()).LoadFromFile(path, DataTypeYAML, cacheCfg))
	require.Equal(t, 42, cacheCfg.MaxEntries)
}

func TestLoader_EnvVars(t *testing.T) {
	t.Setenv("AUTHCACHETEST_CACHE_MAXENTRIES", "11")

	cacheCfg := &testCacheConfig{}
	require.NoError(t, NewDefaultLoader("authcachetest").LoadDefaults(cacheCfg))
	require.Equal(t, 11, cacheCfg.MaxEntries)
}
