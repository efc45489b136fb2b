/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package cachestats periodically logs usage statistics of the verifier cache.
package cachestats

import (
	"context"

	"github.com/acronis/go-authcache/boundedcache"
	"github.com/acronis/go-authcache/log"
	"github.com/acronis/go-authcache/service"
)

// StatsSource provides a snapshot of cache statistics.
type StatsSource interface {
	CacheStats() boundedcache.Stats
}

// Reporter is a service.Worker that logs one cache stats line per run.
type Reporter struct {
	source StatsSource
	logger log.FieldLogger
	last   boundedcache.Stats
}

var _ service.Worker = (*Reporter)(nil)

// NewReporter creates a new Reporter.
func NewReporter(source StatsSource, logger log.FieldLogger) *Reporter {
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	return &Reporter{source: source, logger: logger}
}

// Run logs the current stats along with the hits, misses and evictions since the previous run.
// The Reporter is not safe for concurrent runs; a PeriodicWorker never runs it concurrently.
func (r *Reporter) Run(_ context.Context) error {
	cur := r.source.CacheStats()
	hits, misses := cur.Hits-r.last.Hits, cur.Misses-r.last.Misses
	var hitRatio float64
	if lookups := hits + misses; lookups > 0 {
		hitRatio = float64(hits) / float64(lookups)
	}
	r.logger.Info("cache stats",
		log.Int("entries", cur.Entries),
		log.Int("capacity", cur.Capacity),
		log.Uint64("hits", hits),
		log.Uint64("misses", misses),
		log.Uint64("evictions", cur.Evictions-r.last.Evictions),
		log.Float64("hit_ratio", hitRatio),
	)
	r.last = cur
	return nil
}

// NewUnit returns a unit which runs the Reporter every cfg.Interval,
// or nil if reporting is disabled.
func NewUnit(cfg *Config, source StatsSource, logger log.FieldLogger) service.Unit {
	if cfg.Interval == 0 {
		return nil
	}
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	pw := service.NewPeriodicWorker(NewReporter(source, logger), cfg.Interval, logger)
	pw.InitialDelay = cfg.Interval
	return service.NewWorkerUnit(pw, 0)
}
