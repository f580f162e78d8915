// Package probe queries a game server directly using the Source Engine
// Query (A2S) protocol. It backs up the HTTP listing for tracked servers
// that temporarily drop off it.
package probe

import (
	"net"
	"strconv"
	"time"

	"github.com/gartsh/serverboard/internal/models"
	"github.com/woozymasta/a2s/pkg/a2s"
)

// Options holds query tuning shared by all probes.
type Options struct {
	Timeout    time.Duration
	BufferSize uint16
}

// Query connects to key ("host:port") via UDP and requests A2S_INFO,
// synthesizing a ServerRecord from the reply. The record carries no latency
// or version fields; only name and player counts are known this way.
func Query(key string, options Options) (*models.ServerRecord, error) {
	host, portStr, err := net.SplitHostPort(key)
	if err != nil {
		return nil, err
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}

	client, err := a2s.New(host, port)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close() }()

	client.BufferSize = options.BufferSize
	client.Timeout = options.Timeout

	info, err := client.GetInfo()
	if err != nil {
		return nil, err
	}

	return &models.ServerRecord{
		Address:    host,
		Port:       port,
		Name:       info.Name,
		Players:    int(info.Players),
		MaxPlayers: int(info.MaxPlayers),
	}, nil
}
