// Package models defines the data structures shared between the listing
// client, the time-series store, the renderers, and the publisher.
package models

import (
	"fmt"
	"time"
)

// ServerRecord represents one live game server as returned by the remote
// listing. Records are ephemeral: produced once per poll and discarded after
// the cycle that fetched them.
type ServerRecord struct {
	Address      string `json:"address"`
	Name         string `json:"name"`
	Build        string `json:"build"`
	MasterServer string `json:"masterServer"`

	// CountryCode is resolved locally via GeoIP, never part of the wire payload.
	CountryCode string `json:"-"`

	Port       int  `json:"port"`
	Latency    int  `json:"latency"`
	Version    int  `json:"version"`
	Identifier int  `json:"identifier"`
	GameType   int  `json:"gameType"`
	Players    int  `json:"players"`
	MaxPlayers int  `json:"maxPlayers"`
	Passworded bool `json:"passworded"`
}

// Key returns the stable "host:port" identifier used for time-series rows.
func (r ServerRecord) Key() string {
	return fmt.Sprintf("%s:%d", r.Address, r.Port)
}

// Sample is a single time-series point. Immutable once created.
type Sample struct {
	// Timestamp is Unix milliseconds, matching the persisted legacy format.
	Timestamp int64 `json:"timestamp"`

	PlayerCount int `json:"playerCount"`
}

// Time converts the sample timestamp back to time.Time.
func (s Sample) Time() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// NewSample builds a sample for the given wall-clock instant.
func NewSample(now time.Time, players int) Sample {
	return Sample{Timestamp: now.UnixMilli(), PlayerCount: players}
}

// TargetState identifies where the dashboard message lives. MessageID may be
// empty (no message posted yet) or reference a message deleted externally;
// the publisher detects and repairs both.
type TargetState struct {
	ChannelID string `json:"channelId"`
	MessageID string `json:"messageId,omitempty"`
}
