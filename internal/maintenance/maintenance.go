// Package maintenance provides one-shot administrative tasks that run
// against the store and exit instead of starting the service.
package maintenance

import (
	"github.com/gartsh/serverboard/internal/config"
	"github.com/gartsh/serverboard/internal/fake"
	"github.com/gartsh/serverboard/internal/history"
	"github.com/gartsh/serverboard/internal/publish"
	"github.com/gartsh/serverboard/internal/storage"
	"github.com/rs/zerolog/log"
)

// Run checks if any maintenance flags are set and executes the corresponding task.
// Returns true if a maintenance task was executed (indicating the program should exit).
func Run(cfg *config.Config, store *storage.Repository) bool {
	bucket := store.Bucket(cfg.Storage.Namespace)

	// Set publish channel. The publisher only touches persisted state here,
	// so no transport is needed.
	if cfg.Discord.SetChannel != "" {
		if err := publish.New(nil, bucket).SetChannel(cfg.Discord.SetChannel); err != nil {
			log.Error().Err(err).Msg("Failed to persist dashboard channel")
		} else {
			log.Info().Str("channel_id", cfg.Discord.SetChannel).Msg("Dashboard channel persisted")
		}

		return true
	}

	// Seed demo history
	if cfg.Storage.GenerateCount > 0 {
		fake.GenerateHistory(history.New(bucket), cfg.Storage.GenerateCount)
		return true
	}

	return false
}
