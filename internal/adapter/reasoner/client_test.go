package reasoner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rulescribe/rulescribe/internal/config"
	"github.com/rulescribe/rulescribe/internal/domain"
	"github.com/rulescribe/rulescribe/internal/domain/decision"
	"github.com/rulescribe/rulescribe/internal/port/reasoner"
	"github.com/rulescribe/rulescribe/internal/resilience"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.Engine{URL: srv.URL, Timeout: 5 * time.Second})
}

func TestInferParsesDecision(t *testing.T) {
	var gotReq inferRequest

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/infer" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_, _ = w.Write([]byte(`{
			"action": "clarification_needed",
			"clarification": {"question": "Which edition?", "options": ["2nd", "3rd"]}
		}`))
	})

	d, err := c.Infer(context.Background(), reasoner.TurnInput{
		UserID:           "u1",
		Input:            "how does combat work?",
		ActiveSubjectRef: "twilight_imperium.pdf",
	})
	if err != nil {
		t.Fatal(err)
	}

	if gotReq.SubjectRef != "twilight_imperium.pdf" {
		t.Errorf("subject ref not forwarded: %+v", gotReq)
	}
	if d.Action != decision.ActionClarify {
		t.Errorf("expected clarification, got %s", d.Action)
	}
}

func TestInferServerErrorIsEngineUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Infer(context.Background(), reasoner.TurnInput{UserID: "u1", Input: "q"})
	if !errors.Is(err, domain.ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}
}

func TestInferInvalidDecisionIsMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		// answer tag with no payload
		_, _ = w.Write([]byte(`{"action": "answer"}`))
	})

	_, err := c.Infer(context.Background(), reasoner.TurnInput{UserID: "u1", Input: "q"})
	if !errors.Is(err, domain.ErrMalformedDecision) {
		t.Fatalf("expected ErrMalformedDecision, got %v", err)
	}
}

func TestInferOpenBreakerIsEngineUnavailable(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})
	c.SetBreaker(resilience.NewBreaker(1, time.Minute))

	in := reasoner.TurnInput{UserID: "u1", Input: "q"}
	_, _ = c.Infer(context.Background(), in) // trips the breaker

	_, err := c.Infer(context.Background(), in)
	if !errors.Is(err, domain.ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}
	if calls != 1 {
		t.Errorf("open breaker must not let the call through, got %d calls", calls)
	}
}
