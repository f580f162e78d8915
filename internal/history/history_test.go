package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/gartsh/serverboard/internal/models"
	"github.com/gartsh/serverboard/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	repo, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	return New(repo.Bucket("serverlist"))
}

func TestTrim(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	samples := []models.Sample{
		models.NewSample(base, 1),
		models.NewSample(base.Add(10*time.Minute), 2),
		models.NewSample(base.Add(20*time.Minute), 3),
	}

	tests := []struct {
		name   string
		cutoff time.Time
		want   int
	}{
		{"nothing expired", base.Add(-time.Minute), 3},
		{"cutoff equals first sample", base, 3},
		{"first sample expired", base.Add(time.Minute), 2},
		{"all expired", base.Add(30 * time.Minute), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, Trim(samples, tt.cutoff), tt.want)
		})
	}
}

func TestNextRetainsWindow(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	// Appending N samples strictly less than the window apart keeps all N.
	var series []models.Sample
	for i := 0; i < 30; i++ {
		series = Next(series, i, base.Add(time.Duration(i)*time.Minute), Window)
	}
	assert.Len(t, series, 30)

	// Every retained sample sits inside the window of the last append.
	now := base.Add(29 * time.Minute)
	for _, s := range series {
		assert.False(t, s.Time().Before(now.Add(-Window)))
	}
}

func TestNextEvictsExpired(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	series := []models.Sample{
		models.NewSample(base.Add(-2*time.Hour), 7),
		models.NewSample(base.Add(-30*time.Minute), 8),
	}

	next := Next(series, 9, base, Window)
	require.Len(t, next, 2)
	assert.Equal(t, 8, next[0].PlayerCount)
	assert.Equal(t, 9, next[1].PlayerCount)
}

func TestNextDoesNotMutateInput(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	series := []models.Sample{models.NewSample(base, 5)}

	_ = Next(series, 6, base.Add(time.Minute), Window)
	_ = Next(series, 7, base.Add(2*time.Minute), Window)

	require.Len(t, series, 1)
	assert.Equal(t, 5, series[0].PlayerCount)
}

func TestNextDuplicateTimestamp(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	series := Next(nil, 5, base, Window)
	again := Next(series, 5, base, Window)

	// Running the same append twice with an unchanged clock grows the
	// series by exactly one and never drops the original sample.
	assert.Len(t, again, 2)
	assert.Equal(t, series[0], again[0])
}

func TestAppendAndRead(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	samples, err := store.Read("a:1")
	require.NoError(t, err)
	assert.Empty(t, samples)

	require.NoError(t, store.Append("a:1", 5, now))

	samples, err = store.Read("a:1")
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, models.NewSample(now, 5), samples[0])
}

func TestEvictOnlyPass(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append("a:1", 5, now.Add(-2*time.Hour)))
	require.NoError(t, store.Append("a:1", 6, now.Add(-30*time.Minute)))

	// Server vanished from the listing; history still ages out.
	require.NoError(t, store.Evict("a:1", now))

	samples, err := store.Read("a:1")
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, 6, samples[0].PlayerCount)

	// Once everything expires the row disappears entirely.
	require.NoError(t, store.Evict("a:1", now.Add(2*time.Hour)))

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestEvictMissingKeyIsNoop(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.Evict("ghost:1", time.Now()))
}

func TestKeys(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	require.NoError(t, store.Append("b:2", 1, now))
	require.NoError(t, store.Append("a:1", 1, now))

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"a:1", "b:2"}, keys)
}

func TestMigrateLegacy(t *testing.T) {
	repo, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	bucket := repo.Bucket("serverlist")
	now := time.Now()

	legacy := map[string][]models.Sample{
		"198.51.100.7:26000": {models.NewSample(now, 3)},
		"42":                 {models.NewSample(now, 9)}, // numeric identifier, dropped
	}
	require.NoError(t, bucket.PutJSON("lastDay", legacy))

	store := New(bucket)
	require.NoError(t, store.MigrateLegacy())

	samples, err := store.Read("198.51.100.7:26000")
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, 3, samples[0].PlayerCount)

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"198.51.100.7:26000"}, keys)

	// Legacy blob removed, second run is a no-op.
	_, err = bucket.Get("lastDay")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NoError(t, store.MigrateLegacy())
}
