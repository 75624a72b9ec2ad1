package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rainbowatch/internal/external"
	"rainbowatch/internal/types"
)

func newTestSender(t *testing.T, baseURL string) *HTTPSender {
	t.Helper()
	return NewHTTPSender(Config{
		BaseURL:       baseURL,
		APIKey:        types.SecretString("test-key"),
		RatePerSecond: 1000,
		Burst:         100,
	}, nil, external.WithSleepFunc(func(d time.Duration) {}))
}

func TestSendDeliversMessage(t *testing.T) {
	var captured sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(sendResponse{MessageID: "msg_123"})
	}))
	defer srv.Close()

	s := newTestSender(t, srv.URL)

	res, err := s.Send(context.Background(), "tok_abc", "Rainbow nearby!", "A rainbow was sighted 2 km away.", map[string]string{"kind": "sighting_alert"})
	require.NoError(t, err)

	assert.Equal(t, "msg_123", res.ProviderMessageID)
	assert.Equal(t, "tok_abc", captured.To)
	assert.Equal(t, "Rainbow nearby!", captured.Title)
	assert.Equal(t, "sighting_alert", captured.Metadata["kind"])
}

func TestSendMapsRejectionToProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid token"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	s := newTestSender(t, srv.URL)

	_, err := s.Send(context.Background(), "tok_bad", "t", "b", nil)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamPushProvider, appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.Details["status"])
}

func TestSendMapsOutageToProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := newTestSender(t, srv.URL)

	_, err := s.Send(context.Background(), "tok_abc", "t", "b", nil)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamPushProvider, appErr.Code)
}

func TestSendHonorsCanceledContext(t *testing.T) {
	s := newTestSender(t, "http://127.0.0.1:0")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Send(ctx, "tok_abc", "t", "b", nil)
	require.Error(t, err)
}
