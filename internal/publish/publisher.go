package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gartsh/serverboard/internal/models"
	"github.com/gartsh/serverboard/internal/render"
	"github.com/gartsh/serverboard/internal/storage"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// stateKey is the bucket key holding the persisted TargetState tuple.
const stateKey = "publishTarget"

// bulkClearLimit bounds how many recent messages are cleared before a
// recreate, matching the transport's single-call maximum.
const bulkClearLimit = 100

// Publisher maps rendered artifacts onto the single externally visible
// message, choosing edit vs. recreate based on persisted state.
type Publisher struct {
	target Target
	bucket *storage.Bucket

	// recreates throttles the bulk-clear-and-recreate fallback so a flapping
	// edit failure cannot hammer the transport with deletions.
	recreates *rate.Limiter
}

// New creates a publisher persisting its state in bucket.
func New(target Target, bucket *storage.Bucket) *Publisher {
	return &Publisher{
		target:    target,
		bucket:    bucket,
		recreates: rate.NewLimiter(rate.Every(5*time.Minute), 3),
	}
}

// State loads the persisted target state. A missing record is self-healed
// into an empty placeholder so first runs never hard-fail.
func (p *Publisher) State() (models.TargetState, error) {
	var state models.TargetState
	err := p.bucket.GetJSON(stateKey, &state)
	if errors.Is(err, storage.ErrNotFound) {
		log.Warn().Msg("Publish target state missing, initializing placeholder")
		if err := p.bucket.PutJSON(stateKey, state); err != nil {
			return state, err
		}
		return state, nil
	}

	return state, err
}

// SetChannel persists the channel the dashboard posts to and clears any
// stored message identifier so the next cycle creates a fresh message.
func (p *Publisher) SetChannel(channelID string) error {
	return p.bucket.PutJSON(stateKey, models.TargetState{ChannelID: channelID})
}

// Publish drives the edit-or-recreate state machine for one cycle:
//
//	no channel   -> ErrTargetMissing (cycle aborts after logging)
//	no message   -> create, persist the new identifier
//	has message  -> verify it still exists; recreate when it was deleted
//	               externally, edit in place otherwise, falling back to a
//	               bulk-clear-and-recreate when the edit itself is rejected
//
// Either way the message is fully replaced or untouched, never left half
// rendered.
func (p *Publisher) Publish(ctx context.Context, artifacts []*render.Artifact) error {
	state, err := p.State()
	if err != nil {
		return err
	}

	if state.ChannelID == "" {
		return ErrTargetMissing
	}

	if state.MessageID == "" {
		return p.create(ctx, state, artifacts)
	}

	if err := p.target.FetchMessage(ctx, state.ChannelID, state.MessageID); err != nil {
		if !errors.Is(err, ErrMessageNotFound) {
			return fmt.Errorf("fetch message %s: %w", state.MessageID, err)
		}

		// Stale reference: clear it and re-enter the create branch now.
		log.Warn().
			Str("message_id", state.MessageID).
			Msg("Dashboard message deleted externally, recreating")

		state.MessageID = ""
		if err := p.bucket.PutJSON(stateKey, state); err != nil {
			return err
		}

		return p.create(ctx, state, artifacts)
	}

	if err := p.target.EditMessage(ctx, state.ChannelID, state.MessageID, artifacts); err != nil {
		log.Error().Err(err).
			Str("message_id", state.MessageID).
			Msg("Edit rejected, falling back to recreate")

		return p.recreate(ctx, state, artifacts)
	}

	return nil
}

// create posts a fresh message and persists its identifier.
func (p *Publisher) create(ctx context.Context, state models.TargetState, artifacts []*render.Artifact) error {
	id, err := p.target.CreateMessage(ctx, state.ChannelID, artifacts)
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}

	state.MessageID = id
	if err := p.bucket.PutJSON(stateKey, state); err != nil {
		return err
	}

	log.Info().Str("message_id", id).Msg("Dashboard message created")
	return nil
}

// recreate clears recent channel messages and posts fresh, trading message
// continuity for guaranteed eventual consistency.
func (p *Publisher) recreate(ctx context.Context, state models.TargetState, artifacts []*render.Artifact) error {
	if !p.recreates.Allow() {
		log.Warn().Msg("Recreate fallback throttled, dashboard stays stale this cycle")
		return nil
	}

	if err := p.target.BulkDelete(ctx, state.ChannelID, bulkClearLimit); err != nil {
		return fmt.Errorf("bulk clear channel %s: %w", state.ChannelID, err)
	}

	state.MessageID = ""
	return p.create(ctx, state, artifacts)
}
