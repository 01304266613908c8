package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tbourn/go-messenger-bot/internal/domain"
	"github.com/tbourn/go-messenger-bot/internal/messenger"
	"github.com/tbourn/go-messenger-bot/internal/nlu"
	"github.com/tbourn/go-messenger-bot/internal/session"
	"github.com/tbourn/go-messenger-bot/internal/stats"
)

// --- stubs with function fields, defaults are benign ---

type stubStore struct {
	resolve func(ctx context.Context, userID string) (*domain.Session, bool, error)
}

func (s stubStore) ResolveOrCreate(ctx context.Context, userID string) (*domain.Session, bool, error) {
	if s.resolve != nil {
		return s.resolve(ctx, userID)
	}
	return &domain.Session{ID: "sess-1", UserID: userID, Context: domain.Context{}}, true, nil
}
func (s stubStore) Get(context.Context, string) (*domain.Session, error) {
	return nil, session.ErrNotFound
}
func (s stubStore) UpdateContext(context.Context, string, domain.Context) error { return nil }
func (s stubStore) Len(context.Context) (int, error)                            { return 0, nil }

type stubNLU struct {
	resolve func(ctx context.Context, text string) (string, bool, error)
}

func (s stubNLU) ResolveLocation(ctx context.Context, text string) (string, bool, error) {
	if s.resolve != nil {
		return s.resolve(ctx, text)
	}
	return "", false, nil
}

type stubStats struct {
	fetch func(ctx context.Context, location string) (*stats.Result, error)
}

func (s stubStats) FetchCounts(ctx context.Context, location string) (*stats.Result, error) {
	if s.fetch != nil {
		return s.fetch(ctx, location)
	}
	return nil, stats.ErrUpstream
}

// recordingMessenger captures every outbound call in order.
type recordingMessenger struct {
	texts   []string
	actions []messenger.Action
	textErr error
}

func (m *recordingMessenger) SendText(_ context.Context, _, text string) error {
	m.texts = append(m.texts, text)
	return m.textErr
}

func (m *recordingMessenger) SendAction(_ context.Context, _ string, a messenger.Action) error {
	m.actions = append(m.actions, a)
	return nil
}

func TestHandleMessage_StatsReplyThenSafetyReminder(t *testing.T) {
	out := &recordingMessenger{}
	svc := NewRelayService(
		stubStore{},
		stubNLU{resolve: func(_ context.Context, _ string) (string, bool, error) {
			return "vietnam", true, nil
		}},
		stubStats{fetch: func(_ context.Context, loc string) (*stats.Result, error) {
			return &stats.Result{
				Location:  loc,
				Confirmed: 1234567,
				Recovered: 89,
				Deaths:    10,
				AsOfDate:  "2020-04-01T00:00:00Z",
			}, nil
		}},
		out,
	)

	if err := svc.HandleMessage(context.Background(), "u-1", "covid stats in vietnam"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if len(out.texts) != 2 {
		t.Fatalf("texts = %d; want stats reply + safety reminder", len(out.texts))
	}
	reply := out.texts[0]
	for _, want := range []string{"vietnam", "1,234,567", "89", "10", "2020-04-01T00:00:00Z"} {
		if !strings.Contains(reply, want) {
			t.Fatalf("stats reply missing %q:\n%s", want, reply)
		}
	}
	if out.texts[1] != safetyReply {
		t.Fatalf("second message = %q; want safety reminder", out.texts[1])
	}

	wantActions := []messenger.Action{messenger.ActionMarkSeen, messenger.ActionTypingOn}
	if len(out.actions) != len(wantActions) {
		t.Fatalf("actions = %v; want %v", out.actions, wantActions)
	}
	for i, a := range wantActions {
		if out.actions[i] != a {
			t.Fatalf("actions = %v; want %v", out.actions, wantActions)
		}
	}
}

func TestHandleMessage_NoLocationSendsHelp(t *testing.T) {
	out := &recordingMessenger{}
	svc := NewRelayService(stubStore{}, stubNLU{}, stubStats{}, out)

	if err := svc.HandleMessage(context.Background(), "u-1", "hello there"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if len(out.texts) != 1 || out.texts[0] != helpReply {
		t.Fatalf("texts = %v; want single help prompt", out.texts)
	}
	// mark_seen first, typing_off after the help prompt.
	wantActions := []messenger.Action{messenger.ActionMarkSeen, messenger.ActionTypingOff}
	if len(out.actions) != 2 || out.actions[0] != wantActions[0] || out.actions[1] != wantActions[1] {
		t.Fatalf("actions = %v; want %v", out.actions, wantActions)
	}
}

func TestHandleMessage_NLUFailureSendsApology(t *testing.T) {
	out := &recordingMessenger{}
	svc := NewRelayService(
		stubStore{},
		stubNLU{resolve: func(context.Context, string) (string, bool, error) {
			return "", false, nlu.ErrUpstream
		}},
		stubStats{},
		out,
	)

	err := svc.HandleMessage(context.Background(), "u-1", "stats in italy")
	if !errors.Is(err, ErrUnderstanding) {
		t.Fatalf("err = %v; want ErrUnderstanding", err)
	}
	if len(out.texts) != 1 || out.texts[0] != apologyReply {
		t.Fatalf("texts = %v; want single apology", out.texts)
	}
}

func TestHandleMessage_StatsFailureSendsOneApology(t *testing.T) {
	out := &recordingMessenger{}
	svc := NewRelayService(
		stubStore{},
		stubNLU{resolve: func(context.Context, string) (string, bool, error) {
			return "atlantis", true, nil
		}},
		stubStats{fetch: func(context.Context, string) (*stats.Result, error) {
			return nil, stats.ErrEmptySeries
		}},
		out,
	)

	err := svc.HandleMessage(context.Background(), "u-1", "stats in atlantis")
	if !errors.Is(err, ErrLookup) {
		t.Fatalf("err = %v; want ErrLookup", err)
	}
	if len(out.texts) != 1 || out.texts[0] != apologyReply {
		t.Fatalf("texts = %v; want single apology", out.texts)
	}
	if out.actions[len(out.actions)-1] != messenger.ActionTypingOff {
		t.Fatalf("final action = %v; want typing_off", out.actions[len(out.actions)-1])
	}
}

func TestHandleMessage_SessionFailureDoesNotBlockReply(t *testing.T) {
	out := &recordingMessenger{}
	svc := NewRelayService(
		stubStore{resolve: func(context.Context, string) (*domain.Session, bool, error) {
			return nil, false, errors.New("store down")
		}},
		stubNLU{resolve: func(context.Context, string) (string, bool, error) {
			return "vietnam", true, nil
		}},
		stubStats{fetch: func(_ context.Context, loc string) (*stats.Result, error) {
			return &stats.Result{Location: loc, AsOfDate: "2020-04-01T00:00:00Z"}, nil
		}},
		out,
	)

	if err := svc.HandleMessage(context.Background(), "u-1", "stats in vietnam"); err != nil {
		t.Fatalf("session failure leaked: %v", err)
	}
	if len(out.texts) != 2 {
		t.Fatalf("texts = %d; reply should still go out", len(out.texts))
	}
}

func TestHandleMessage_DeliveryFailureIsContained(t *testing.T) {
	out := &recordingMessenger{textErr: errors.New("send refused")}
	svc := NewRelayService(
		stubStore{},
		stubNLU{resolve: func(context.Context, string) (string, bool, error) {
			return "vietnam", true, nil
		}},
		stubStats{fetch: func(_ context.Context, loc string) (*stats.Result, error) {
			return &stats.Result{Location: loc}, nil
		}},
		out,
	)

	if err := svc.HandleMessage(context.Background(), "u-1", "stats in vietnam"); err != nil {
		t.Fatalf("delivery failure leaked: %v", err)
	}
}

func TestFormatStats_ThousandsSeparators(t *testing.T) {
	got := formatStats(&stats.Result{
		Location:  "italy",
		Confirmed: 9876543,
		Recovered: 1000,
		Deaths:    12,
		AsOfDate:  "2020-05-01T00:00:00Z",
	})
	for _, want := range []string{
		"This is Covid-19 disease stats in italy:",
		"Confirmed cases: 9,876,543",
		"Recovered cases: 1,000",
		"Death cases: 12",
		"Last updated: 2020-05-01T00:00:00Z",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("reply missing %q:\n%s", want, got)
		}
	}
}
