// Package stats queries the public statistics API for per-location case
// counts. Each metric is an independent day-one time series; only the
// trailing element of each series is consumed.
package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tbourn/go-messenger-bot/internal/config"
)

// Sentinel errors. ErrEmptySeries is the unrecognized-location case: the API
// answers 200 with an empty array, and indexing into it blindly would panic,
// so emptiness is checked before extraction and surfaced as an error.
var (
	ErrUpstream    = errors.New("stats request failed")
	ErrEmptySeries = errors.New("stats series is empty")
)

// Result carries the trailing count of each metric series. The three series
// are fetched independently and may trail at different dates; AsOfDate is
// taken from the confirmed series, which is treated as authoritative.
type Result struct {
	Location  string
	Confirmed int64
	Recovered int64
	Deaths    int64
	AsOfDate  string
}

// Client fetches case counts for a resolved location.
type Client interface {
	// FetchCounts returns the trailing counts for the location, or an error
	// when any of the three underlying calls fails or yields an empty
	// series (first error wins).
	FetchCounts(ctx context.Context, location string) (*Result, error)
}

// CovidClient implements Client against a covid19api-style REST surface.
type CovidClient struct {
	baseURL string
	hc      *http.Client
}

// NewCovidClient constructs a CovidClient from configuration.
func NewCovidClient(cfg config.StatsConfig, timeout time.Duration) *CovidClient {
	return &CovidClient{
		baseURL: cfg.BaseURL,
		hc:      &http.Client{Timeout: timeout},
	}
}

// point is one entry of a day-one series.
type point struct {
	Cases int64  `json:"Cases"`
	Date  string `json:"Date"`
}

// FetchCounts implements Client. The three metrics are fetched sequentially;
// the first failure aborts the rest.
func (c *CovidClient) FetchCounts(ctx context.Context, location string) (*Result, error) {
	confirmed, err := c.fetchSeries(ctx, location, "confirmed")
	if err != nil {
		return nil, err
	}
	recovered, err := c.fetchSeries(ctx, location, "recovered")
	if err != nil {
		return nil, err
	}
	deaths, err := c.fetchSeries(ctx, location, "deaths")
	if err != nil {
		return nil, err
	}

	last := confirmed[len(confirmed)-1]
	return &Result{
		Location:  location,
		Confirmed: last.Cases,
		Recovered: recovered[len(recovered)-1].Cases,
		Deaths:    deaths[len(deaths)-1].Cases,
		AsOfDate:  last.Date,
	}, nil
}

// fetchSeries retrieves one metric's series and guarantees it is non-empty.
// The location is passed through untransformed; the upstream accepts country
// slugs and names alike.
func (c *CovidClient) fetchSeries(ctx context.Context, location, status string) ([]point, error) {
	u := fmt.Sprintf("%s/total/dayone/country/%s/status/%s", c.baseURL, location, status)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstream, status, err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstream, status, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %s: status %d: %s", ErrUpstream, status, resp.StatusCode, body)
	}

	var series []point
	if err := json.NewDecoder(resp.Body).Decode(&series); err != nil {
		return nil, fmt.Errorf("%w: %s: decode: %v", ErrUpstream, status, err)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: %s: %q", ErrEmptySeries, status, location)
	}
	return series, nil
}
