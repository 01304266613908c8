// Package services – RelayService
//
// This file implements RelayService, the component that drives one message
// turn: resolve the sender's session, extract a location from the text,
// fetch the case counts, and reply. Every failure past parsing is contained
// to the turn — the webhook is always acknowledged, and the user gets either
// a stats reply, a help prompt, or an apology.
//
// Observability: HandleMessage is OpenTelemetry-instrumented; spans carry
// the sender id and the resolved location.
package services

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tbourn/go-messenger-bot/internal/messenger"
	"github.com/tbourn/go-messenger-bot/internal/nlu"
	"github.com/tbourn/go-messenger-bot/internal/session"
	"github.com/tbourn/go-messenger-bot/internal/stats"
)

// Reply texts. The help prompt and safety reminder are fixed; the stats
// reply is formatted per turn.
const (
	helpReply = "Sorry bro, I dont really understand what you mean.\n" +
		"Try type something like: Covid-19 virus stats in vietnam"
	apologyReply = "Sorry, I couldn't look that up right now. Please try again in a bit."
	safetyReply  = "IMPORTANT! Wear masks with two or more layers to stop the spread of COVID-19!! \U0001F637"
)

// RelayService orchestrates the session store, the NLU and stats clients,
// and the platform message client for one inbound text message at a time.
type RelayService struct {
	Sessions  session.Store
	NLU       nlu.Client
	Stats     stats.Client
	Messenger messenger.Client
}

// NewRelayService wires a RelayService from its collaborators.
func NewRelayService(store session.Store, n nlu.Client, st stats.Client, m messenger.Client) *RelayService {
	return &RelayService{Sessions: store, NLU: n, Stats: st, Messenger: m}
}

// HandleMessage runs one turn for a text message from senderID.
//
// Flow: resolve session → mark-seen indicator → NLU → either help prompt
// (no location), apology (NLU or stats failure), or stats reply followed by
// the safety reminder. Indicator sends are best-effort and awaited, so their
// ordering relative to the replies is deterministic. The returned error is
// informational — callers acknowledge the webhook regardless.
func (s *RelayService) HandleMessage(ctx context.Context, senderID, text string) error {
	tr := otel.Tracer("services/RelayService")
	ctx, span := tr.Start(ctx, "HandleMessage",
		trace.WithAttributes(attribute.String("sender.id", senderID)),
	)
	defer span.End()

	// The session correlates turns per user; a store failure is logged but
	// never blocks the reply.
	if _, created, err := s.Sessions.ResolveOrCreate(ctx, senderID); err != nil {
		log.Error().Err(err).Str("sender_id", senderID).Msg("session resolve failed")
	} else if created {
		log.Debug().Str("sender_id", senderID).Msg("session created")
	}

	s.indicate(ctx, senderID, messenger.ActionMarkSeen)

	loc, found, err := s.NLU.ResolveLocation(ctx, text)
	if err != nil {
		log.Error().Err(err).Str("sender_id", senderID).Msg("nlu resolve failed")
		relayTurns.WithLabelValues("nlu_error").Inc()
		s.send(ctx, senderID, apologyReply)
		s.indicate(ctx, senderID, messenger.ActionTypingOff)
		return ErrUnderstanding
	}
	if !found {
		relayTurns.WithLabelValues("help").Inc()
		s.send(ctx, senderID, helpReply)
		s.indicate(ctx, senderID, messenger.ActionTypingOff)
		return nil
	}
	span.SetAttributes(attribute.String("location", loc))

	s.indicate(ctx, senderID, messenger.ActionTypingOn)

	counts, err := s.Stats.FetchCounts(ctx, loc)
	if err != nil {
		log.Error().Err(err).Str("sender_id", senderID).Str("location", loc).Msg("stats fetch failed")
		relayTurns.WithLabelValues("stats_error").Inc()
		s.send(ctx, senderID, apologyReply)
		s.indicate(ctx, senderID, messenger.ActionTypingOff)
		return ErrLookup
	}

	relayTurns.WithLabelValues("stats_reply").Inc()
	s.send(ctx, senderID, formatStats(counts))
	s.send(ctx, senderID, safetyReply)
	return nil
}

// send delivers one text message, logging delivery failures without
// propagating them: a lost reply must not fail the turn.
func (s *RelayService) send(ctx context.Context, recipientID, text string) {
	if err := s.Messenger.SendText(ctx, recipientID, text); err != nil {
		log.Error().Err(err).Str("recipient_id", recipientID).Msg("send failed")
		deliveryFailures.WithLabelValues("text").Inc()
	}
}

// indicate delivers one sender action, best-effort.
func (s *RelayService) indicate(ctx context.Context, recipientID string, action messenger.Action) {
	if err := s.Messenger.SendAction(ctx, recipientID, action); err != nil {
		log.Warn().Err(err).Str("recipient_id", recipientID).Stringer("action", action).Msg("sender action failed")
		deliveryFailures.WithLabelValues(action.String()).Inc()
	}
}

// statsPrinter renders counts with English thousands separators.
var statsPrinter = message.NewPrinter(language.English)

// formatStats builds the stats reply. The date comes from the confirmed
// series, which the three-series fetch treats as authoritative.
func formatStats(r *stats.Result) string {
	return statsPrinter.Sprintf(
		"This is Covid-19 disease stats in %s:\n"+
			"Confirmed cases: %d\n"+
			"Recovered cases: %d\n"+
			"Death cases: %d\n"+
			"Last updated: %s",
		r.Location, r.Confirmed, r.Recovered, r.Deaths, r.AsOfDate,
	)
}
