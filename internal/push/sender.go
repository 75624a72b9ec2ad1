// Package push implements the outbound push-notification provider client.
// The provider is treated as an opaque delivery capability: rainbowatch
// hands it a channel address, a title, and a body, and records whatever
// outcome comes back. Provider failures are per-recipient data for the
// dispatcher, never process-level faults.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"rainbowatch/internal/external"
	"rainbowatch/internal/types"
)

// Compile-time assertion that HTTPSender implements types.PushSender.
var _ types.PushSender = (*HTTPSender)(nil)

// Config holds the provider endpoint and client-side throttle settings.
type Config struct {
	BaseURL       string
	APIKey        types.SecretString
	RatePerSecond float64
	Burst         int
}

// HTTPSender delivers push messages over the provider's HTTP API. Calls are
// throttled client-side so a large fan-out cannot trip the provider's rate
// limits before the circuit breaker sees a single 429.
type HTTPSender struct {
	base    *external.BaseClient
	limiter *rate.Limiter
	baseURL string
	apiKey  types.SecretString
	logger  types.Logger
}

// NewHTTPSender creates an HTTPSender from the provider config.
func NewHTTPSender(cfg Config, logger types.Logger, opts ...external.BaseClientOption) *HTTPSender {
	base := external.NewBaseClient(
		&http.Client{Timeout: 10 * time.Second},
		"push-provider",
		external.DefaultRetryPolicy(),
		"rainbowatch/1.0",
		types.ErrCodeUpstreamPushProvider,
		opts...,
	)

	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = 50
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &HTTPSender{
		base:    base,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		logger:  logger,
	}
}

type sendRequest struct {
	To       string            `json:"to"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
}

// Send delivers one message to the given channel address. It blocks on the
// client-side limiter, so the caller's context deadline bounds total time
// spent waiting plus sending.
func (s *HTTPSender) Send(ctx context.Context, channel, title, body string, metadata map[string]string) (*types.PushResult, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamPushProvider,
			"canceled while waiting for send slot",
			err,
		)
	}

	payload, err := json.Marshal(sendRequest{
		To:       channel,
		Title:    title,
		Body:     body,
		Metadata: metadata,
	})
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode push payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build push request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey.Reveal())

	resp, err := s.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeUpstreamPushProvider,
			fmt.Sprintf("push provider rejected message with status %d", resp.StatusCode),
			nil,
			map[string]any{"status": resp.StatusCode, "body": string(snippet)},
		)
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamPushProvider, "failed to decode push provider response", err)
	}

	return &types.PushResult{ProviderMessageID: out.MessageID}, nil
}
