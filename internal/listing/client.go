// Package listing fetches the remote server listing over HTTP.
package listing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/gartsh/serverboard/internal/models"
)

// Client polls a remote listing endpoint for live server records.
type Client struct {
	hc  *http.Client
	url string
}

// New creates a listing client for the given endpoint URL.
func New(url string, timeout time.Duration) *Client {
	return &Client{
		url: url,
		hc:  &http.Client{Timeout: timeout},
	}
}

// envelope is the alternate response shape some listing deployments return
// instead of a bare array.
type envelope struct {
	Servers []models.ServerRecord `json:"servers"`
}

// Fetch retrieves the current listing, sorted descending by player count
// (stable, so the source order breaks ties). On transport or parse failure
// it returns nil and the error; the caller treats that as an empty listing.
func (c *Client) Fetch(ctx context.Context) ([]models.ServerRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build listing request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch listing: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read listing body: %w", err)
	}

	records, err := decode(body)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Players > records[j].Players
	})

	return records, nil
}

// decode accepts either a bare JSON array or the {"servers": [...]} envelope,
// a known inconsistency of the listing source.
func decode(body []byte) ([]models.ServerRecord, error) {
	var records []models.ServerRecord
	if err := json.Unmarshal(body, &records); err == nil {
		return records, nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	return env.Servers, nil
}
