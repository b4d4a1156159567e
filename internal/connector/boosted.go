// Package connector implements clients for the external server-list sources:
// the boosted-list HTTP API and the local server list file.
package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/beacon-project/beacon/internal/config"
)

const (
	boostedFetchTimeout = 10 * time.Second
	userAgent           = "beacon/1.0 (+server-browser)"
)

// boostedResponse mirrors the JSON body returned by the boosted list API.
type boostedResponse struct {
	Servers []boostedServer `json:"servers"`
}

type boostedServer struct {
	Address string `json:"address"`
}

// BoostedListClient fetches the authoritative "boosted" server list over
// HTTP. Every failure mode (timeout, network error, non-2xx status,
// malformed body) degrades to zero servers; the caller never sees an error.
type BoostedListClient struct {
	cfg    *config.Config
	client *http.Client
}

// NewBoostedListClient creates a boosted list client.
func NewBoostedListClient(cfg *config.Config) *BoostedListClient {
	return &BoostedListClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: boostedFetchTimeout,
			Transport: &http.Transport{
				MaxIdleConns:    4,
				IdleConnTimeout: 90 * time.Second,
			},
		},
	}
}

// FetchAddresses queries the configured API for the full server list and
// returns the address strings in response order.
func (c *BoostedListClient) FetchAddresses(ctx context.Context) []string {
	apiURL := c.cfg.GetBrowserData().BoostedAPIURL
	if apiURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		log.Warn().Err(err).Str("url", apiURL).Msg("failed to build boosted list request")
		return nil
	}

	q := req.URL.Query()
	q.Set("full", "1")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("url", apiURL).Msg("boosted list fetch failed")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn().
			Int("status", resp.StatusCode).
			Str("url", apiURL).
			Msg("boosted list API returned non-2xx status")
		return nil
	}

	var body boostedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		log.Warn().Err(err).Str("url", apiURL).Msg("failed to parse boosted list response")
		return nil
	}

	addrs := make([]string, 0, len(body.Servers))
	for _, s := range body.Servers {
		if s.Address != "" {
			addrs = append(addrs, s.Address)
		}
	}

	log.Debug().Int("count", len(addrs)).Msg("boosted list fetched")
	return addrs
}

// PostJSON sends a JSON payload to the given URL on a best-effort basis.
// Used by the audit forwarder; failures are returned for logging only.
func PostJSON(ctx context.Context, client *http.Client, url string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
