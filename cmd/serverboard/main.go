// main is the entry point of the Serverboard application.
// It initializes the configuration, logger, storage, Discord transport, and
// starts the refresh scheduler.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gartsh/serverboard/internal/config"
	"github.com/gartsh/serverboard/internal/geoip"
	"github.com/gartsh/serverboard/internal/history"
	"github.com/gartsh/serverboard/internal/listing"
	"github.com/gartsh/serverboard/internal/logger"
	"github.com/gartsh/serverboard/internal/maintenance"
	"github.com/gartsh/serverboard/internal/models"
	"github.com/gartsh/serverboard/internal/pipeline"
	"github.com/gartsh/serverboard/internal/probe"
	"github.com/gartsh/serverboard/internal/publish"
	"github.com/gartsh/serverboard/internal/render"
	"github.com/gartsh/serverboard/internal/scheduler"
	"github.com/gartsh/serverboard/internal/storage"
	"github.com/gartsh/serverboard/internal/tracked"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.Parse()

	logger.Setup(cfg.Logger)
	log.Info().Msg("Starting serverboard service...")

	// Database
	store, err := storage.New(cfg.Storage.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}()

	// One-shot maintenance tasks
	if maintenance.Run(cfg, store) {
		return
	}

	bucket := store.Bucket(cfg.Storage.Namespace)

	hist := history.New(bucket)
	if err := hist.MigrateLegacy(); err != nil {
		log.Fatal().Err(err).Msg("Legacy time-series migration failed")
	}

	// GeoIP country tags, optional
	var geoProvider *geoip.Provider
	if cfg.GeoIP.Path != "" {
		log.Info().Msg("Checking GeoIP database...")
		if err := geoip.EnsureDB(cfg.GeoIP.Path, cfg.GeoIP.URL, cfg.GeoIP.Interval); err != nil {
			log.Error().Err(err).Msg("Failed to download GeoIP database")
		}

		geoProvider, err = geoip.Open(cfg.GeoIP.Path)
		if err != nil {
			log.Error().Err(err).Msg("Failed to open GeoIP database, country tags disabled")
			geoProvider = nil
		} else {
			defer func() {
				if err := geoProvider.Close(); err != nil {
					log.Error().Err(err).Msg("Error closing GeoIP provider")
				}
			}()
		}
	}

	// Tracked entity registry
	registry := tracked.NewRegistry(nil)
	if cfg.Render.Tracked != "" {
		entities, err := tracked.Load(cfg.Render.Tracked)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Render.Tracked).Msg("Failed to load tracked entities")
		}
		registry.Set(entities)
		log.Info().Int("count", len(entities)).Msg("Tracked entities loaded")
	}

	// Discord transport
	discord, err := publish.NewDiscord(cfg.Discord.Token)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Discord session")
	}

	if err := discord.Open(); err != nil {
		log.Error().Err(err).Msg("Gateway connection failed, presence updates disabled")
	} else {
		defer func() {
			if err := discord.Close(); err != nil {
				log.Error().Err(err).Msg("Error closing Discord session")
			}
		}()
	}

	faces := render.LoadFaces(cfg.Render.FontDir)

	pipe := pipeline.New(pipeline.Deps{
		Fetcher:   listing.New(cfg.Listing.URL, cfg.Listing.Timeout),
		History:   hist,
		Registry:  registry,
		Grid:      render.NewGrid(faces, cfg.Render.Title),
		Entity:    render.NewEntity(faces),
		Publisher: publish.New(discord, bucket),
		Geo:       geoProvider,
		Prober: func(key string) (*models.ServerRecord, error) {
			return probe.Query(key, probe.Options{
				Timeout:    cfg.Probe.Timeout,
				BufferSize: cfg.Probe.BufferSize,
			})
		},
		Presence: discord.SetPresence,
		Mode:     pipeline.Mode(cfg.Render.Mode),
		Now:      time.Now,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Render.Tracked != "" {
		go func() {
			if err := registry.Watch(ctx, cfg.Render.Tracked); err != nil {
				log.Error().Err(err).Msg("Tracked entities watcher stopped")
			}
		}()
	}

	sched := scheduler.New(pipe.Run, cfg.Schedule.Interval, cfg.Schedule.Timeout)

	log.Info().
		Str("mode", cfg.Render.Mode).
		Dur("interval", cfg.Schedule.Interval).
		Msg("Scheduler running")

	sched.Run(ctx)

	log.Info().Msg("Serverboard exited")
}
