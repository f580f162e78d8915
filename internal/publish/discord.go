package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gartsh/serverboard/internal/render"
	"github.com/rs/zerolog/log"
)

// bulkDeleteMaxAge is how far back Discord accepts bulk deletions; older
// messages are silently left in place.
const bulkDeleteMaxAge = 14 * 24 * time.Hour

// Discord publishes the dashboard to a Discord channel over the REST API.
type Discord struct {
	session *discordgo.Session
}

// NewDiscord creates a Discord target with the given bot token.
func NewDiscord(token string) (*Discord, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds

	return &Discord{session: session}, nil
}

// Open connects the gateway session. REST calls work without it, but the
// presence update does not.
func (d *Discord) Open() error {
	return d.session.Open()
}

// Close shuts the gateway session down.
func (d *Discord) Close() error {
	return d.session.Close()
}

// CreateMessage posts a new message carrying the artifacts as attachments.
func (d *Discord) CreateMessage(ctx context.Context, channelID string, artifacts []*render.Artifact) (string, error) {
	msg, err := d.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Files: files(artifacts),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}

	return msg.ID, nil
}

// FetchMessage checks that the referenced message still exists.
func (d *Discord) FetchMessage(ctx context.Context, channelID, messageID string) error {
	_, err := d.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if isUnknownMessage(err) {
		return ErrMessageNotFound
	}

	return err
}

// EditMessage swaps the message attachments for the new artifacts.
func (d *Discord) EditMessage(ctx context.Context, channelID, messageID string, artifacts []*render.Artifact) error {
	edit := &discordgo.MessageEdit{
		Channel: channelID,
		ID:      messageID,
		Files:   files(artifacts),

		// Replace, don't accumulate, previous attachments.
		Attachments: &[]*discordgo.MessageAttachment{},
	}

	_, err := d.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	if isUnknownMessage(err) {
		return ErrMessageNotFound
	}

	return err
}

// BulkDelete clears up to limit recent messages from the channel. Messages
// past the bulk-deletion age limit are skipped.
func (d *Discord) BulkDelete(ctx context.Context, channelID string, limit int) error {
	msgs, err := d.session.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-bulkDeleteMaxAge)
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if ts, err := discordgo.SnowflakeTimestamp(m.ID); err == nil && ts.Before(cutoff) {
			continue
		}
		ids = append(ids, m.ID)
	}

	switch len(ids) {
	case 0:
		return nil
	case 1:
		return d.session.ChannelMessageDelete(channelID, ids[0], discordgo.WithContext(ctx))
	default:
		return d.session.ChannelMessagesBulkDelete(channelID, ids, discordgo.WithContext(ctx))
	}
}

// SetPresence reflects the current totals in the bot activity line.
func (d *Discord) SetPresence(totalPlayers, totalServers int) {
	status := fmt.Sprintf("%d players on %d servers", totalPlayers, totalServers)
	if err := d.session.UpdateGameStatus(0, status); err != nil {
		log.Debug().Err(err).Msg("Presence update failed")
	}
}

// files converts artifacts into discordgo upload descriptors.
func files(artifacts []*render.Artifact) []*discordgo.File {
	out := make([]*discordgo.File, 0, len(artifacts))
	for _, a := range artifacts {
		out = append(out, &discordgo.File{
			Name:        a.Name,
			ContentType: a.ContentType,
			Reader:      bytes.NewReader(a.Data),
		})
	}

	return out
}

// isUnknownMessage reports whether err is the REST error for a message that
// no longer exists.
func isUnknownMessage(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}

	return restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownMessage
}
