// Package nlu talks to the external natural-language-understanding service.
// The relay only needs one thing from it: a location entity extracted from
// free text.
package nlu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tbourn/go-messenger-bot/internal/config"
)

// ErrUpstream wraps transport and status failures from the NLU endpoint.
// An absent location is not an error; see Client.ResolveLocation.
var ErrUpstream = errors.New("nlu request failed")

// locationEntity is the entity key the NLU service uses for built-in
// location extraction.
const locationEntity = "wit$location:location"

// Client resolves a location entity from free text.
//
// Implementations must honor the context for cancellation and be safe for
// concurrent use.
type Client interface {
	// ResolveLocation returns the first location candidate for the text.
	// found is false when the service understood the request but extracted
	// no location; err is non-nil only for transport/status failures.
	ResolveLocation(ctx context.Context, text string) (location string, found bool, err error)
}

// WitClient implements Client against a Wit-style /message endpoint
// authenticated with a bearer credential.
type WitClient struct {
	token      string
	baseURL    string
	apiVersion string
	hc         *http.Client
}

// NewWitClient constructs a WitClient from configuration.
func NewWitClient(cfg config.NLUConfig, timeout time.Duration) *WitClient {
	return &WitClient{
		token:      cfg.Token,
		baseURL:    cfg.BaseURL,
		apiVersion: cfg.APIVersion,
		hc:         &http.Client{Timeout: timeout},
	}
}

// witResponse mirrors the /message response shape. Only the entity map is
// consumed.
type witResponse struct {
	Text     string                 `json:"text"`
	Entities map[string][]witEntity `json:"entities"`
}

type witEntity struct {
	Body       string  `json:"body"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// ResolveLocation implements Client. The raw user text is sent URL-encoded;
// the first candidate of the location entity wins.
func (c *WitClient) ResolveLocation(ctx context.Context, text string) (string, bool, error) {
	u := fmt.Sprintf("%s/message?v=%s&q=%s", c.baseURL, c.apiVersion, url.QueryEscape(text))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", false, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, body)
	}

	var out witResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", false, fmt.Errorf("%w: decode: %v", ErrUpstream, err)
	}

	candidates := out.Entities[locationEntity]
	if len(candidates) == 0 {
		return "", false, nil
	}
	loc := candidates[0].Body
	if loc == "" {
		loc = candidates[0].Value
	}
	if loc == "" {
		return "", false, nil
	}
	return loc, true, nil
}
