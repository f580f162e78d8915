// Package history implements the bounded per-server time series of player
// counts. Each series is an ordered-by-timestamp sequence of samples kept
// within a fixed retention window and persisted through the key-value store.
package history

import (
	"errors"
	"strings"
	"time"

	"github.com/gartsh/serverboard/internal/models"
	"github.com/gartsh/serverboard/internal/storage"
	"github.com/rs/zerolog/log"
)

// Window is the fixed retention window bounding how much history is kept
// per server.
const Window = time.Hour

// seriesPrefix namespaces time-series rows inside the bucket so they never
// collide with publisher or configuration keys.
const seriesPrefix = "timeseries/"

// legacyKey is the aggregate blob written by old deployments: one map of
// every series, keyed by numeric server identifier or "host:port".
const legacyKey = "lastDay"

// Store persists one bounded sample sequence per server key.
type Store struct {
	bucket *storage.Bucket
	window time.Duration
}

// New returns a store over the given bucket using the default retention window.
func New(bucket *storage.Bucket) *Store {
	return &Store{bucket: bucket, window: Window}
}

// NewWithWindow returns a store with a custom retention window, used by tests.
func NewWithWindow(bucket *storage.Bucket, window time.Duration) *Store {
	return &Store{bucket: bucket, window: window}
}

// Trim drops leading samples older than cutoff. Samples are time-ordered, so
// the scan stops at the first sample still inside the window.
func Trim(samples []models.Sample, cutoff time.Time) []models.Sample {
	cut := cutoff.UnixMilli()
	i := 0
	for i < len(samples) && samples[i].Timestamp < cut {
		i++
	}
	return samples[i:]
}

// Next computes the series that results from appending one sample at now:
// front-eviction of everything outside [now-window, now], then the new
// sample at the tail. The input slice is not mutated, so concurrent
// per-server tasks can each call Next on a private read and hand the result
// to a single merge phase.
func Next(samples []models.Sample, players int, now time.Time, window time.Duration) []models.Sample {
	kept := Trim(samples, now.Add(-window))

	out := make([]models.Sample, 0, len(kept)+1)
	out = append(out, kept...)
	out = append(out, models.NewSample(now, players))

	return out
}

// Read returns the current series for key without mutating it. A key with no
// history yields an empty series, not an error.
func (s *Store) Read(key string) ([]models.Sample, error) {
	var samples []models.Sample
	err := s.bucket.GetJSON(seriesPrefix+key, &samples)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return samples, nil
}

// Append loads the series for key, evicts samples that left the retention
// window, appends {now, players} and persists the result.
func (s *Store) Append(key string, players int, now time.Time) error {
	samples, err := s.Read(key)
	if err != nil {
		return err
	}

	return s.Commit(key, Next(samples, players, now, s.window))
}

// Commit persists a fully computed series for key. An empty series removes
// the row entirely so vanished servers do not leave rows behind forever.
func (s *Store) Commit(key string, samples []models.Sample) error {
	if len(samples) == 0 {
		return s.bucket.Delete(seriesPrefix + key)
	}

	return s.bucket.PutJSON(seriesPrefix+key, samples)
}

// Evict performs an eviction-only pass for key: history ages out even for
// servers that stopped appearing in the listing.
func (s *Store) Evict(key string, now time.Time) error {
	samples, err := s.Read(key)
	if err != nil {
		return err
	}
	if samples == nil {
		return nil
	}

	return s.Commit(key, Trim(samples, now.Add(-s.window)))
}

// Keys returns every server key currently holding history.
func (s *Store) Keys() ([]string, error) {
	raw, err := s.bucket.Keys(seriesPrefix)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		keys = append(keys, strings.TrimPrefix(k, seriesPrefix))
	}

	return keys, nil
}

// MigrateLegacy converts the old aggregate "lastDay" blob into per-server
// rows. Entries keyed by numeric identifier cannot be mapped to a "host:port"
// key and are dropped. Running against a store with no legacy blob is a no-op.
func (s *Store) MigrateLegacy() error {
	var legacy map[string][]models.Sample
	err := s.bucket.GetJSON(legacyKey, &legacy)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	migrated, dropped := 0, 0
	for key, samples := range legacy {
		if !strings.Contains(key, ":") {
			dropped++
			continue
		}
		if err := s.Commit(key, samples); err != nil {
			return err
		}
		migrated++
	}

	if err := s.bucket.Delete(legacyKey); err != nil {
		return err
	}

	log.Info().
		Int("migrated", migrated).
		Int("dropped", dropped).
		Msg("Migrated legacy time-series blob")

	return nil
}
