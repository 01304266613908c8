// Package messenger sends outbound messages and sender actions to the
// messaging platform's Graph-style send API on behalf of the bot page.
package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tbourn/go-messenger-bot/internal/config"
)

// ErrDelivery wraps any outbound send failure: transport errors, non-2xx
// statuses, and application-level error payloads returned with a 200.
var ErrDelivery = errors.New("message delivery failed")

// Action is a sender indicator event, distinct from an actual message. The
// set is closed and known, so it is an enum rather than a free string.
type Action int

const (
	ActionMarkSeen Action = iota
	ActionTypingOn
	ActionTypingOff
)

// String returns the wire name of the action.
func (a Action) String() string {
	switch a {
	case ActionMarkSeen:
		return "mark_seen"
	case ActionTypingOn:
		return "typing_on"
	case ActionTypingOff:
		return "typing_off"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// valid reports whether a is one of the known indicator kinds.
func (a Action) valid() bool {
	switch a {
	case ActionMarkSeen, ActionTypingOn, ActionTypingOff:
		return true
	}
	return false
}

// Client delivers messages and indicators to a platform user.
//
// Implementations must honor the context and be safe for concurrent use.
type Client interface {
	// SendText delivers one text message to the recipient.
	SendText(ctx context.Context, recipientID, text string) error
	// SendAction delivers one sender indicator to the recipient.
	SendAction(ctx context.Context, recipientID string, action Action) error
}

// GraphClient implements Client against the platform's HTTP send endpoint,
// authenticated with the page access token passed as a query parameter.
type GraphClient struct {
	baseURL   string
	pageToken string
	hc        *http.Client
}

// NewGraphClient constructs a GraphClient from configuration.
func NewGraphClient(cfg config.MessengerConfig, timeout time.Duration) *GraphClient {
	return &GraphClient{
		baseURL:   cfg.BaseURL,
		pageToken: cfg.PageToken,
		hc:        &http.Client{Timeout: timeout},
	}
}

// Wire shapes for the send endpoint.

type recipient struct {
	ID string `json:"id"`
}

type textMessage struct {
	Text string `json:"text"`
}

type sendRequest struct {
	Recipient    recipient    `json:"recipient"`
	Message      *textMessage `json:"message,omitempty"`
	SenderAction string       `json:"sender_action,omitempty"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	Error     *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendText implements Client.
func (c *GraphClient) SendText(ctx context.Context, recipientID, text string) error {
	return c.post(ctx, sendRequest{
		Recipient: recipient{ID: recipientID},
		Message:   &textMessage{Text: text},
	})
}

// SendAction implements Client.
func (c *GraphClient) SendAction(ctx context.Context, recipientID string, action Action) error {
	if !action.valid() {
		return fmt.Errorf("%w: unknown sender action %d", ErrDelivery, int(action))
	}
	return c.post(ctx, sendRequest{
		Recipient:    recipient{ID: recipientID},
		SenderAction: action.String(),
	})
}

// post issues one send call. The platform can report failure either via the
// HTTP status or via an error object inside a 200 body; both map to
// ErrDelivery.
func (c *GraphClient) post(ctx context.Context, payload sendRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrDelivery, err)
	}

	u := fmt.Sprintf("%s/me/messages?access_token=%s", c.baseURL, url.QueryEscape(c.pageToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	defer resp.Body.Close()

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && resp.StatusCode == http.StatusOK {
		return fmt.Errorf("%w: decode: %v", ErrDelivery, err)
	}
	if out.Error != nil {
		return fmt.Errorf("%w: %s (code %d)", ErrDelivery, out.Error.Message, out.Error.Code)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrDelivery, resp.StatusCode)
	}
	return nil
}
