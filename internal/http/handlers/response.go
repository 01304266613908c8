// Package handlers implements the HTTP endpoints of the webhook surface.
//
// This file defines the response utilities shared by all endpoints: a
// structured error envelope with stable machine-readable codes, and helpers
// that keep failure responses uniform. Success responses on the webhook
// surface are deliberately plain — the platform only looks at the status
// code (and, for verification, the echoed challenge).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-messenger-bot/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by failing endpoints.
//
// RequestID echoes the X-Request-ID correlation header so server logs can be
// matched to client-side errors; Code is a stable machine-readable string
// (see errors.go); Message is safe to show to humans.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// fail aborts the request with a structured error and logs server-side errors.
func fail(c *gin.Context, status int, code, msg string) {
	reqID := c.Writer.Header().Get("X-Request-ID")
	resp := ErrorResponse{
		RequestID: reqID,
		Code:      code,
		Message:   msg,
	}

	// Log 5xx (server-side) with request-scoped logger
	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail(), used by router fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }
