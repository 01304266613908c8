// Webhook HTTP handlers.
//
// This file exposes the platform-facing endpoints:
//   - GET  /    (liveness probe with a fixed body)
//   - GET  /fb  (webhook subscription verification)
//   - POST /fb  (message delivery)
//
// Handlers are transport-thin: they validate the payload, pull out the first
// messaging event, hand it to the relay service, and acknowledge. A delivery
// is acknowledged with 200 whenever the payload parsed, including the
// no-action outcomes (non-text message, foreign page id, relay failure) —
// the platform retries on anything else, and a failed turn must not be
// replayed forever.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-messenger-bot/internal/http/middleware"
)

// RelayService drives one message turn. Implementations must contain their
// own failures; the returned error is logged, never surfaced to the platform.
type RelayService interface {
	HandleMessage(ctx context.Context, senderID, text string) error
}

// Handlers groups the webhook endpoints and their configuration.
type Handlers struct {
	relay       RelayService
	pageID      string
	verifyToken string
}

// New constructs Handlers bound to the relay service and the page identity.
func New(relay RelayService, pageID, verifyToken string) *Handlers {
	return &Handlers{relay: relay, pageID: pageID, verifyToken: verifyToken}
}

//
// Webhook payload DTOs
//

// WebhookPayload is the provider's delivery envelope. Deliveries may batch
// several entries and messaging events; only the first messaging event of
// the first entry is processed.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry is one page-scoped batch inside a delivery.
type Entry struct {
	ID        string           `json:"id"`
	Messaging []MessagingEvent `json:"messaging"`
}

// MessagingEvent is one inbound notification unit.
type MessagingEvent struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Message *Message `json:"message"`
}

// Message is the message body of an event; Text is empty for pure
// attachment messages.
type Message struct {
	Text        string `json:"text"`
	Attachments []any  `json:"attachments"`
}

// firstEvent extracts the first messaging event of the first entry, provided
// the delivery is a page event owned by pageID. Everything else — other
// objects, foreign pages, empty batches — yields ok=false.
func (p *WebhookPayload) firstEvent(pageID string) (MessagingEvent, bool) {
	if p.Object != "page" || len(p.Entry) == 0 {
		return MessagingEvent{}, false
	}
	entry := p.Entry[0]
	if entry.ID != pageID || len(entry.Messaging) == 0 {
		return MessagingEvent{}, false
	}
	return entry.Messaging[0], true
}

//
// Handlers
//

// Root answers the liveness probe with a fixed plain-text body.
func (h *Handlers) Root(c *gin.Context) {
	c.String(http.StatusOK, "server is working")
}

// Verify handles the subscription check: on a matching mode and verify
// token it echoes the challenge verbatim, otherwise it answers 400.
func (h *Handlers) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if h.verifyToken == "" || mode != "subscribe" || token != h.verifyToken {
		fail(c, http.StatusBadRequest, ErrCodeVerifyFailed, "webhook verification failed")
		return
	}
	c.String(http.StatusOK, challenge)
}

// Receive handles a message delivery. Non-text events are acknowledged and
// dropped; text events run one relay turn.
func (h *Handlers) Receive(c *gin.Context) {
	var payload WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	ev, ok := payload.firstEvent(h.pageID)
	if !ok || ev.Message == nil || ev.Message.Text == "" {
		c.Status(http.StatusOK)
		return
	}

	// Expose the sender to access logs.
	c.Set("senderID", ev.Sender.ID)

	if err := h.relay.HandleMessage(c.Request.Context(), ev.Sender.ID, ev.Message.Text); err != nil {
		// Contained by the relay; the delivery is still acknowledged.
		middleware.LoggerFrom(c).Warn().
			Err(err).
			Str("sender_id", ev.Sender.ID).
			Msg("relay turn failed")
	}
	c.Status(http.StatusOK)
}

// Health answers the monitoring liveness endpoint.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
