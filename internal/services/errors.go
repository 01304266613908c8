// Package services implements the relay turn: the business logic between an
// inbound messaging event and the outbound replies. This file centralizes
// service-level error values so they can be consistently returned by service
// methods and checked by callers.
package services

import "errors"

var (
	// ErrUnderstanding indicates the NLU call itself failed; the turn was
	// answered with an apology instead of a stats reply.
	ErrUnderstanding = errors.New("could not analyze message")

	// ErrLookup indicates the stats fetch failed or a series was empty; the
	// turn was answered with an apology instead of a stats reply.
	ErrLookup = errors.New("could not fetch stats")
)
