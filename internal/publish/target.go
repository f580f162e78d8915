// Package publish keeps a single external message synchronized with the
// latest rendered dashboard, repairing stale or missing state along the way.
package publish

import (
	"context"
	"errors"

	"github.com/gartsh/serverboard/internal/render"
)

// ErrMessageNotFound reports that the referenced message no longer exists on
// the target, typically because someone deleted it by hand.
var ErrMessageNotFound = errors.New("message not found")

// ErrTargetMissing reports that no publish channel is configured yet. The
// cycle logs it and moves on; nothing else can be done until an operator
// runs the set-channel maintenance command.
var ErrTargetMissing = errors.New("publish channel not configured")

// Target abstracts the transport carrying the dashboard message.
type Target interface {
	// CreateMessage posts a new message with the given artifacts attached and
	// returns its identifier.
	CreateMessage(ctx context.Context, channelID string, artifacts []*render.Artifact) (string, error)

	// FetchMessage verifies the referenced message still exists, returning
	// ErrMessageNotFound when it was deleted externally.
	FetchMessage(ctx context.Context, channelID, messageID string) error

	// EditMessage replaces the attachments of an existing message in place.
	EditMessage(ctx context.Context, channelID, messageID string, artifacts []*render.Artifact) error

	// BulkDelete clears up to limit recent messages from the channel before a
	// fresh message is created.
	BulkDelete(ctx context.Context, channelID string, limit int) error
}
