// Package pipeline composes one refresh cycle: fetch the listing, update
// per-server history, render the dashboard, and publish it.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gartsh/serverboard/internal/geoip"
	"github.com/gartsh/serverboard/internal/history"
	"github.com/gartsh/serverboard/internal/models"
	"github.com/gartsh/serverboard/internal/publish"
	"github.com/gartsh/serverboard/internal/render"
	"github.com/gartsh/serverboard/internal/tracked"
	"github.com/rs/zerolog/log"
)

// Mode selects the renderer strategy.
type Mode string

// Layout modes.
const (
	ModeGrid   Mode = "grid"
	ModeEntity Mode = "entity"
)

// Fetcher retrieves the current server listing.
type Fetcher interface {
	Fetch(ctx context.Context) ([]models.ServerRecord, error)
}

// Prober queries one server ("host:port") directly when it is missing from
// the listing.
type Prober func(key string) (*models.ServerRecord, error)

// Deps bundles everything a pipeline needs. Geo, Prober, Registry and
// Presence are optional.
type Deps struct {
	Fetcher   Fetcher
	History   *history.Store
	Registry  *tracked.Registry
	Grid      *render.GridRenderer
	Entity    *render.EntityRenderer
	Publisher *publish.Publisher
	Geo       *geoip.Provider
	Prober    Prober
	Presence  func(totalPlayers, totalServers int)
	Mode      Mode

	// Now is injectable for deterministic tests; defaults to time.Now.
	Now func() time.Time
}

// Pipeline runs refresh cycles over a fixed set of collaborators.
type Pipeline struct {
	deps Deps
}

// New creates a pipeline.
func New(deps Deps) *Pipeline {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Mode == "" {
		deps.Mode = ModeGrid
	}

	return &Pipeline{deps: deps}
}

// delta is one per-server task result, merged into the store by the commit
// phase. Tasks never write to the store themselves.
type delta struct {
	key    string
	series []models.Sample
}

// Run executes one cycle. Every error is returned to the scheduler boundary;
// none is fatal to the process.
func (p *Pipeline) Run(ctx context.Context) error {
	now := p.deps.Now()

	records, fetchErr := p.deps.Fetcher.Fetch(ctx)
	if fetchErr != nil {
		// Recovered locally: the cycle continues with an empty listing and
		// leaves the time-series store untouched.
		log.Error().Err(fetchErr).Msg("Listing fetch failed, rendering empty state")
		records = nil
	}
	fetched := fetchErr == nil

	for i := range records {
		records[i].CountryCode = p.deps.Geo.GetCountryCode(records[i].Address)
	}

	var entities []tracked.Entity
	if p.deps.Registry != nil {
		entities = p.deps.Registry.Entities()
	}

	byKey := make(map[string]models.ServerRecord, len(records))
	for _, rec := range records {
		byKey[rec.Key()] = rec
	}

	if fetched {
		records = p.supplement(records, byKey, entities)
	}

	series := make(map[string][]models.Sample, len(records))
	if fetched {
		merged, err := p.updateHistory(records, now)
		if err != nil {
			return err
		}
		series = merged
	}

	artifacts, err := p.renderAll(records, byKey, entities, series, now)
	if err != nil {
		return err
	}

	if err := p.deps.Publisher.Publish(ctx, artifacts); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	if p.deps.Presence != nil && fetched {
		total := 0
		for _, rec := range records {
			total += rec.Players
		}
		p.deps.Presence(total, len(records))
	}

	return nil
}

// supplement probes tracked servers that are absent from a successful fetch.
// Absent entities without probing enabled are logged and skipped this cycle.
func (p *Pipeline) supplement(records []models.ServerRecord, byKey map[string]models.ServerRecord, entities []tracked.Entity) []models.ServerRecord {
	for _, ent := range entities {
		if _, ok := byKey[ent.Key]; ok {
			continue
		}

		if !ent.Probe || p.deps.Prober == nil {
			log.Info().Str("key", ent.Key).Msg("Tracked server absent from listing, skipped this cycle")
			continue
		}

		rec, err := p.deps.Prober(ent.Key)
		if err != nil {
			log.Warn().Err(err).Str("key", ent.Key).Msg("Direct probe failed, skipped this cycle")
			continue
		}

		records = append(records, *rec)
		byKey[ent.Key] = *rec
	}

	return records
}

// updateHistory runs one concurrent task per fetched server. Each task reads
// its prior series and computes the appended/evicted successor on a private
// copy; a single-threaded merge phase then commits all results and runs
// eviction-only passes for keys whose servers vanished from the listing.
func (p *Pipeline) updateHistory(records []models.ServerRecord, now time.Time) (map[string][]models.Sample, error) {
	deltas := make([]delta, len(records))

	var wg sync.WaitGroup
	for i, rec := range records {
		wg.Add(1)
		go func(i int, rec models.ServerRecord) {
			defer wg.Done()

			prior, err := p.deps.History.Read(rec.Key())
			if err != nil {
				log.Error().Err(err).Str("key", rec.Key()).Msg("History read failed, starting fresh series")
				prior = nil
			}

			deltas[i] = delta{
				key:    rec.Key(),
				series: history.Next(prior, rec.Players, now, history.Window),
			}
		}(i, rec)
	}
	wg.Wait()

	// Merge phase: the only writer to the shared store.
	merged := make(map[string][]models.Sample, len(deltas))
	for _, d := range deltas {
		if err := p.deps.History.Commit(d.key, d.series); err != nil {
			return nil, fmt.Errorf("commit series %s: %w", d.key, err)
		}
		merged[d.key] = d.series
	}

	keys, err := p.deps.History.Keys()
	if err != nil {
		return nil, fmt.Errorf("list series keys: %w", err)
	}
	for _, key := range keys {
		if _, ok := merged[key]; ok {
			continue
		}
		if err := p.deps.History.Evict(key, now); err != nil {
			return nil, fmt.Errorf("evict series %s: %w", key, err)
		}
	}

	return merged, nil
}

// renderAll produces the artifact set for the configured mode. An empty
// per-entity set (or an empty listing) still yields the grid banner so the
// published message is never left without content.
func (p *Pipeline) renderAll(records []models.ServerRecord, byKey map[string]models.ServerRecord, entities []tracked.Entity, series map[string][]models.Sample, now time.Time) ([]*render.Artifact, error) {
	lookup := func(key string) []models.Sample { return series[key] }

	if p.deps.Mode == ModeEntity {
		artifacts := make([]*render.Artifact, 0, len(entities))
		for _, ent := range entities {
			rec, ok := byKey[ent.Key]
			if !ok {
				continue // absence already logged in supplement
			}

			art, err := p.deps.Entity.Render(ent, rec, series[ent.Key], now)
			if err != nil {
				return nil, fmt.Errorf("render entity %s: %w", ent.Key, err)
			}
			artifacts = append(artifacts, art)
		}

		if len(artifacts) > 0 {
			return artifacts, nil
		}
	}

	art, err := p.deps.Grid.Render(records, lookup, now)
	if err != nil {
		return nil, fmt.Errorf("render grid: %w", err)
	}

	return []*render.Artifact{art}, nil
}
