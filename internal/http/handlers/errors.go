package handlers

// HTTP-layer error codes. Codes are lowercase snake_case and stable; clients
// and dashboards branch on them rather than on message text.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"

	// Domain-specific:
	ErrCodeVerifyFailed = "verification_failed"
)
