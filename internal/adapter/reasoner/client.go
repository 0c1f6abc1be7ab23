// Package reasoner provides an HTTP client for the external reasoning
// service, implementing the reasoner port.
package reasoner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rulescribe/rulescribe/internal/config"
	"github.com/rulescribe/rulescribe/internal/domain"
	"github.com/rulescribe/rulescribe/internal/domain/decision"
	"github.com/rulescribe/rulescribe/internal/port/history"
	"github.com/rulescribe/rulescribe/internal/port/reasoner"
	"github.com/rulescribe/rulescribe/internal/resilience"
)

// Client talks to the reasoning service's /v1/infer endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a reasoning service client from config.
func NewClient(cfg config.Engine) *Client {
	return &Client{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// inferRequest is the wire shape of one turn handed to the reasoning service.
type inferRequest struct {
	UserID               string         `json:"user_id"`
	Input                string         `json:"input"`
	SubjectRef           string         `json:"subject_ref,omitempty"`
	PendingClarification string         `json:"pending_clarification,omitempty"`
	History              []history.Turn `json:"history,omitempty"`
}

// Infer implements reasoner.Engine. Connectivity failures, timeouts, an open
// breaker and 5xx responses surface as domain.ErrEngineUnavailable; a 2xx
// body that fails decision validation surfaces as domain.ErrMalformedDecision.
func (c *Client) Infer(ctx context.Context, in reasoner.TurnInput) (*decision.Decision, error) {
	req := inferRequest{
		UserID:               in.UserID,
		Input:                in.Input,
		SubjectRef:           in.ActiveSubjectRef,
		PendingClarification: in.PendingClarification,
	}
	if in.History != nil {
		req.History = in.History.Turns()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal infer request: %w", err)
	}

	data, err := c.doRequest(ctx, body)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedDecision) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrEngineUnavailable, err)
	}

	return decision.Parse(data)
}

func (c *Client) doRequest(ctx context.Context, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/infer", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return fmt.Errorf("engine API error %d: %s", resp.StatusCode, string(data))
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}
