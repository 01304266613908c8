package nlu

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tbourn/go-messenger-bot/internal/config"
)

func newTestClient(baseURL string) *WitClient {
	return NewWitClient(config.NLUConfig{
		Token:      "tok-wit",
		BaseURL:    baseURL,
		APIVersion: "20200906",
	}, 5*time.Second)
}

func TestResolveLocation_FirstCandidateWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-wit" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.URL.Query().Get("v"); got != "20200906" {
			t.Errorf("v = %q", got)
		}
		if got := r.URL.Query().Get("q"); got != "stats in vietnam" {
			t.Errorf("q = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"text": "stats in vietnam",
			"entities": {
				"wit$location:location": [
					{"body": "vietnam", "value": "Vietnam", "confidence": 0.98},
					{"body": "hanoi", "value": "Hanoi", "confidence": 0.42}
				]
			}
		}`))
	}))
	defer srv.Close()

	loc, found, err := newTestClient(srv.URL).ResolveLocation(context.Background(), "stats in vietnam")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !found || loc != "vietnam" {
		t.Fatalf("got (%q, %v); want (vietnam, true)", loc, found)
	}
}

func TestResolveLocation_ValueFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"entities":{"wit$location:location":[{"value":"Italy"}]}}`))
	}))
	defer srv.Close()

	loc, found, err := newTestClient(srv.URL).ResolveLocation(context.Background(), "italy please")
	if err != nil || !found || loc != "Italy" {
		t.Fatalf("got (%q, %v, %v); want (Italy, true, nil)", loc, found, err)
	}
}

func TestResolveLocation_NoEntityIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text":"hello","entities":{}}`))
	}))
	defer srv.Close()

	loc, found, err := newTestClient(srv.URL).ResolveLocation(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if found || loc != "" {
		t.Fatalf("got (%q, %v); want absent", loc, found)
	}
}

func TestResolveLocation_EmptyCandidateIsAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"entities":{"wit$location:location":[{"body":"","value":""}]}}`))
	}))
	defer srv.Close()

	_, found, err := newTestClient(srv.URL).ResolveLocation(context.Background(), "??")
	if err != nil || found {
		t.Fatalf("got (found=%v, err=%v); want absent, nil", found, err)
	}
}

func TestResolveLocation_UpstreamFailures(t *testing.T) {
	t.Run("non-200 status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusUnauthorized)
		}))
		defer srv.Close()

		_, _, err := newTestClient(srv.URL).ResolveLocation(context.Background(), "x")
		if !errors.Is(err, ErrUpstream) {
			t.Fatalf("err = %v; want ErrUpstream", err)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{not json`))
		}))
		defer srv.Close()

		_, _, err := newTestClient(srv.URL).ResolveLocation(context.Background(), "x")
		if !errors.Is(err, ErrUpstream) {
			t.Fatalf("err = %v; want ErrUpstream", err)
		}
	})

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		_, _, err := newTestClient(srv.URL).ResolveLocation(context.Background(), "x")
		if !errors.Is(err, ErrUpstream) {
			t.Fatalf("err = %v; want ErrUpstream", err)
		}
	})
}
