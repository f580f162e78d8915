// Package fake provides utilities for generating random player-count history
// for testing and development purposes.
package fake

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/gartsh/serverboard/internal/history"
	"github.com/gartsh/serverboard/internal/models"
	"github.com/rs/zerolog/log"
)

// GenerateHistory seeds the store with one hour of minute-spaced samples for
// the given number of invented servers, so renderers can be exercised
// without a live listing.
func GenerateHistory(store *history.Store, count int) {
	now := time.Now()

	for i := 0; i < count; i++ {
		key := fmt.Sprintf("203.0.113.%d:%d", rand.Intn(250)+1, 27000+rand.Intn(100))
		maxPlayers := 10 + rand.Intn(22)
		players := rand.Intn(maxPlayers + 1)

		samples := make([]models.Sample, 0, 60)
		for m := 60; m > 0; m-- {
			// Random walk clamped to [0, maxPlayers]
			players += rand.Intn(5) - 2
			if players < 0 {
				players = 0
			}
			if players > maxPlayers {
				players = maxPlayers
			}

			samples = append(samples, models.NewSample(now.Add(-time.Duration(m)*time.Minute), players))
		}

		if err := store.Commit(key, samples); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to seed fake history")
		}
	}

	log.Info().Int("count", count).Msg("Fake history generated")
}
