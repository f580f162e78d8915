package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/gartsh/serverboard/internal/history"
	"github.com/gartsh/serverboard/internal/models"
	"github.com/gartsh/serverboard/internal/publish"
	"github.com/gartsh/serverboard/internal/render"
	"github.com/gartsh/serverboard/internal/storage"
	"github.com/gartsh/serverboard/internal/tracked"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	records []models.ServerRecord
	err     error
	calls   int
}

func (f *fakeFetcher) Fetch(_ context.Context) ([]models.ServerRecord, error) {
	f.calls++
	return f.records, f.err
}

type fakeTarget struct {
	nextID    string
	creates   int
	edits     int
	published [][]*render.Artifact
}

func (f *fakeTarget) CreateMessage(_ context.Context, _ string, artifacts []*render.Artifact) (string, error) {
	f.creates++
	f.published = append(f.published, artifacts)
	return f.nextID, nil
}

func (f *fakeTarget) FetchMessage(_ context.Context, _, _ string) error { return nil }

func (f *fakeTarget) EditMessage(_ context.Context, _, _ string, artifacts []*render.Artifact) error {
	f.edits++
	f.published = append(f.published, artifacts)
	return nil
}

func (f *fakeTarget) BulkDelete(_ context.Context, _ string, _ int) error { return nil }

type fixture struct {
	pipe    *Pipeline
	fetcher *fakeFetcher
	target  *fakeTarget
	hist    *history.Store
	now     time.Time
}

func newFixture(t *testing.T, deps func(*Deps)) *fixture {
	t.Helper()

	repo, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	bucket := repo.Bucket("serverlist")
	hist := history.New(bucket)

	fetcher := &fakeFetcher{}
	target := &fakeTarget{nextID: "msg-1"}

	pub := publish.New(target, bucket)
	require.NoError(t, pub.SetChannel("chan-1"))

	faces := render.LoadFaces(t.TempDir())
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	d := Deps{
		Fetcher:   fetcher,
		History:   hist,
		Grid:      render.NewGrid(faces, "Server List"),
		Entity:    render.NewEntity(faces),
		Publisher: pub,
		Now:       func() time.Time { return now },
	}
	if deps != nil {
		deps(&d)
	}

	return &fixture{pipe: New(d), fetcher: fetcher, target: target, hist: hist, now: now}
}

func TestRunRecordsHistoryAndPublishes(t *testing.T) {
	fx := newFixture(t, nil)
	fx.fetcher.records = []models.ServerRecord{
		{Address: "10.0.0.1", Port: 27000, Name: "alpha", Players: 5, MaxPlayers: 10},
	}

	require.NoError(t, fx.pipe.Run(context.Background()))

	samples, err := fx.hist.Read("10.0.0.1:27000")
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, models.NewSample(fx.now, 5), samples[0])

	// First cycle creates the dashboard message with a single grid artifact.
	assert.Equal(t, 1, fx.target.creates)
	require.Len(t, fx.target.published, 1)
	require.Len(t, fx.target.published[0], 1)
	assert.Equal(t, "serverlist.png", fx.target.published[0][0].Name)
}

func TestRunSecondCycleEdits(t *testing.T) {
	fx := newFixture(t, nil)
	fx.fetcher.records = []models.ServerRecord{
		{Address: "10.0.0.1", Port: 27000, Name: "alpha", Players: 5, MaxPlayers: 10},
	}

	require.NoError(t, fx.pipe.Run(context.Background()))
	require.NoError(t, fx.pipe.Run(context.Background()))

	assert.Equal(t, 1, fx.target.creates)
	assert.Equal(t, 1, fx.target.edits)
}

func TestRunFetchFailureLeavesStoreUntouched(t *testing.T) {
	fx := newFixture(t, nil)
	fx.fetcher.records = []models.ServerRecord{
		{Address: "10.0.0.1", Port: 27000, Name: "alpha", Players: 5, MaxPlayers: 10},
	}
	require.NoError(t, fx.pipe.Run(context.Background()))

	fx.fetcher.records = nil
	fx.fetcher.err = errors.New("upstream down")

	// The failed cycle still publishes an empty-state dashboard.
	require.NoError(t, fx.pipe.Run(context.Background()))
	assert.Equal(t, 1, fx.target.edits)

	// No append, no eviction
	samples, err := fx.hist.Read("10.0.0.1:27000")
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, 5, samples[0].PlayerCount)
}

func TestRunSweepsVanishedServers(t *testing.T) {
	fx := newFixture(t, nil)

	// Seed a series well outside the retention window.
	require.NoError(t, fx.hist.Append("10.0.0.9:27000", 3, fx.now.Add(-2*time.Hour)))

	fx.fetcher.records = []models.ServerRecord{
		{Address: "10.0.0.1", Port: 27000, Name: "alpha", Players: 5, MaxPlayers: 10},
	}
	require.NoError(t, fx.pipe.Run(context.Background()))

	keys, err := fx.hist.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1:27000"}, keys)
}

func TestRunEntityMode(t *testing.T) {
	fx := newFixture(t, func(d *Deps) {
		d.Mode = ModeEntity
		d.Registry = tracked.NewRegistry([]tracked.Entity{
			{Key: "10.0.0.1:27000", Name: "Alpha"},
			{Key: "10.0.0.2:27000", Name: "Beta"},
		})
	})
	fx.fetcher.records = []models.ServerRecord{
		{Address: "10.0.0.1", Port: 27000, Name: "alpha", Players: 5, MaxPlayers: 10},
		{Address: "10.0.0.2", Port: 27000, Name: "beta", Players: 2, MaxPlayers: 10},
		{Address: "10.0.0.3", Port: 27000, Name: "gamma", Players: 9, MaxPlayers: 10},
	}

	require.NoError(t, fx.pipe.Run(context.Background()))

	// One artifact per tracked entity, untracked servers excluded.
	require.Len(t, fx.target.published, 1)
	artifacts := fx.target.published[0]
	require.Len(t, artifacts, 2)
	assert.Equal(t, "server-10.0.0.1-27000.png", artifacts[0].Name)
	assert.Equal(t, "server-10.0.0.2-27000.png", artifacts[1].Name)
}

func TestRunEntityModeEmptyFallsBackToGrid(t *testing.T) {
	fx := newFixture(t, func(d *Deps) {
		d.Mode = ModeEntity
		d.Registry = tracked.NewRegistry([]tracked.Entity{{Key: "10.0.0.1:27000"}})
	})
	fx.fetcher.err = errors.New("upstream down")

	require.NoError(t, fx.pipe.Run(context.Background()))

	// No renderable entity, so the grid banner keeps the message populated.
	require.Len(t, fx.target.published, 1)
	require.Len(t, fx.target.published[0], 1)
	assert.Equal(t, "serverlist.png", fx.target.published[0][0].Name)
}

func TestRunProbesAbsentTrackedServer(t *testing.T) {
	probed := 0
	fx := newFixture(t, func(d *Deps) {
		d.Registry = tracked.NewRegistry([]tracked.Entity{
			{Key: "10.0.0.2:27000", Probe: true},
		})
		d.Prober = func(key string) (*models.ServerRecord, error) {
			probed++
			assert.Equal(t, "10.0.0.2:27000", key)
			return &models.ServerRecord{Address: "10.0.0.2", Port: 27000, Name: "hidden", Players: 4, MaxPlayers: 16}, nil
		}
	})
	fx.fetcher.records = []models.ServerRecord{
		{Address: "10.0.0.1", Port: 27000, Name: "alpha", Players: 5, MaxPlayers: 10},
	}

	require.NoError(t, fx.pipe.Run(context.Background()))
	assert.Equal(t, 1, probed)

	// The probed server participates in history like any listed one.
	samples, err := fx.hist.Read("10.0.0.2:27000")
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, 4, samples[0].PlayerCount)
}

func TestRunProbeSkippedOnFetchFailure(t *testing.T) {
	probed := 0
	fx := newFixture(t, func(d *Deps) {
		d.Registry = tracked.NewRegistry([]tracked.Entity{{Key: "10.0.0.2:27000", Probe: true}})
		d.Prober = func(string) (*models.ServerRecord, error) {
			probed++
			return nil, errors.New("unreachable")
		}
	})
	fx.fetcher.err = errors.New("upstream down")

	require.NoError(t, fx.pipe.Run(context.Background()))
	assert.Zero(t, probed)
}

func TestRunPresence(t *testing.T) {
	var gotPlayers, gotServers int
	fx := newFixture(t, func(d *Deps) {
		d.Presence = func(totalPlayers, totalServers int) {
			gotPlayers, gotServers = totalPlayers, totalServers
		}
	})
	fx.fetcher.records = []models.ServerRecord{
		{Address: "10.0.0.1", Port: 27000, Players: 5, MaxPlayers: 10},
		{Address: "10.0.0.2", Port: 27000, Players: 2, MaxPlayers: 10},
	}

	require.NoError(t, fx.pipe.Run(context.Background()))
	assert.Equal(t, 7, gotPlayers)
	assert.Equal(t, 2, gotServers)

	// Presence is not updated from a failed fetch.
	fx.fetcher.err = errors.New("upstream down")
	gotPlayers, gotServers = -1, -1
	require.NoError(t, fx.pipe.Run(context.Background()))
	assert.Equal(t, -1, gotPlayers)
	assert.Equal(t, -1, gotServers)
}

func TestRunPublisherUnconfigured(t *testing.T) {
	fx := newFixture(t, nil)
	require.NoError(t, fx.pipe.Run(context.Background())) // channel set in fixture

	// Reset the channel to simulate an unconfigured deployment.
	repo, err := storage.New(filepath.Join(t.TempDir(), "fresh.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	bucket := repo.Bucket("serverlist")
	faces := render.LoadFaces(t.TempDir())
	pipe := New(Deps{
		Fetcher:   &fakeFetcher{},
		History:   history.New(bucket),
		Grid:      render.NewGrid(faces, "Server List"),
		Entity:    render.NewEntity(faces),
		Publisher: publish.New(&fakeTarget{}, bucket),
		Now:       time.Now,
	})

	err = pipe.Run(context.Background())
	assert.ErrorIs(t, err, publish.ErrTargetMissing)
}
