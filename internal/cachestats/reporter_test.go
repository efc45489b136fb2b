/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package cachestats

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-authcache/boundedcache"
	"github.com/acronis/go-authcache/config"
	"github.com/acronis/go-authcache/log/logtest"
)

type statsFunc func() boundedcache.Stats

func (f statsFunc) CacheStats() boundedcache.Stats { return f() }

func TestReporter(t *testing.T) {
	snapshots := []boundedcache.Stats{
		{Entries: 2, Capacity: 10, Hits: 3, Misses: 1},
		{Entries: 10, Capacity: 10, Hits: 3, Misses: 9, Evictions: 4},
	}
	var i int
	logRecorder := logtest.NewRecorder()
	reporter := NewReporter(statsFunc(func() boundedcache.Stats {
		s := snapshots[i]
		i++
		return s
	}), logRecorder)

	require.NoError(t, reporter.Run(context.Background()))
	require.NoError(t, reporter.Run(context.Background()))

	entries := logRecorder.Entries()
	require.Len(t, entries, 2)

	requireUint := func(e logtest.RecordedEntry, key string, want uint64) {
		t.Helper()
		field, found := e.FindField(key)
		require.True(t, found, key)
		require.Equal(t, int64(want), field.Int, key)
	}

	requireUint(entries[0], "hits", 3)
	requireUint(entries[0], "misses", 1)
	requireUint(entries[0], "evictions", 0)

	requireUint(entries[1], "entries", 10)
	requireUint(entries[1], "hits", 0)
	requireUint(entries[1], "misses", 8)
	requireUint(entries[1], "evictions", 4)
}

func TestNewUnit(t *testing.T) {
	source := statsFunc(func() boundedcache.Stats { return boundedcache.Stats{Capacity: 1} })

	require.Nil(t, NewUnit(&Config{}, source, nil))

	logRecorder := logtest.NewRecorder()
	unit := NewUnit(&Config{Interval: 10 * time.Millisecond}, source, logRecorder)
	require.NotNil(t, unit)

	go unit.Start(make(chan error, 1))
	require.Eventually(t, func() bool {
		_, found := logRecorder.FindEntry("cache stats")
		return found
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, unit.Stop(true))
}

func TestConfig(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		cfg := NewConfig()
		require.NoError(t, config.NewDefaultLoader("").LoadDefaults(cfg))
		require.Equal(t, DefaultInterval, cfg.Interval)
	})

	t.Run("disabled", func(t *testing.T) {
		cfg := NewConfig()
		err := config.NewDefaultLoader("").LoadFromReader(
			bytes.NewBufferString("stats:\n  interval: 0s\n"), config.DataTypeYAML, cfg)
		require.NoError(t, err)
		require.Zero(t, cfg.Interval)
	})

	t.Run("negative interval", func(t *testing.T) {
		cfg := NewConfig()
		err := config.NewDefaultLoader("").LoadFromReader(
			bytes.NewBufferString("stats:\n  interval: -1s\n"), config.DataTypeYAML, cfg)
		require.ErrorContains(t, err, "stats.interval")
	})
}
