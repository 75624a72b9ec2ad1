package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rainbowatch/internal/core"
	"rainbowatch/internal/types"
)

type fakeIndex struct {
	known map[string]bool
	err   error
}

func (f *fakeIndex) Upsert(_ context.Context, userID string, lat, lon float64) error {
	if f.err != nil {
		return f.err
	}
	if err := types.ValidateCoordinates(lat, lon); err != nil {
		return err
	}
	if f.known == nil {
		f.known = map[string]bool{}
	}
	f.known[userID] = true
	return nil
}

func (f *fakeIndex) Contains(userID string) bool { return f.known[userID] }

type fakeWelcome struct {
	sent []string
}

func (f *fakeWelcome) SendWelcome(_ context.Context, userID string) (*types.NotificationRecord, error) {
	f.sent = append(f.sent, userID)
	return &types.NotificationRecord{Kind: types.KindWelcome, RecipientID: userID}, nil
}

type fakeTokens struct {
	registered map[string]string
}

func (f *fakeTokens) Register(_ context.Context, userID, token string, _ time.Time) error {
	if f.registered == nil {
		f.registered = map[string]string{}
	}
	f.registered[userID] = token
	return nil
}

func newUserRouter(idx *fakeIndex, welcome *fakeWelcome, tokens *fakeTokens) *chi.Mux {
	h := NewUserHandler(idx, welcome, tokens, core.NewValidator(), nil, nil)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestUpdateLocationFirstTimeSendsWelcome(t *testing.T) {
	idx := &fakeIndex{}
	welcome := &fakeWelcome{}
	router := newUserRouter(idx, welcome, &fakeTokens{})

	body := `{"lat":59.3293,"lon":18.0686}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/users/user_1/location", bytes.NewBufferString(body)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data UpdateLocationResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Created)
	assert.Equal(t, []string{"user_1"}, welcome.sent)
}

func TestUpdateLocationRepeatIsNotWelcome(t *testing.T) {
	idx := &fakeIndex{known: map[string]bool{"user_1": true}}
	welcome := &fakeWelcome{}
	router := newUserRouter(idx, welcome, &fakeTokens{})

	body := `{"lat":59.3293,"lon":18.0686}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/users/user_1/location", bytes.NewBufferString(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data UpdateLocationResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Data.Created)
	assert.Empty(t, welcome.sent)
}

func TestUpdateLocationRejectsBadCoordinates(t *testing.T) {
	idx := &fakeIndex{}
	welcome := &fakeWelcome{}
	router := newUserRouter(idx, welcome, &fakeTokens{})

	body := `{"lat":200,"lon":18.0686}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/users/user_1/location", bytes.NewBufferString(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, welcome.sent, "no welcome for a rejected registration")
}

func TestRegisterToken(t *testing.T) {
	tokens := &fakeTokens{}
	router := newUserRouter(&fakeIndex{}, &fakeWelcome{}, tokens)

	body := `{"token":"tok_abc"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/users/user_1/token", bytes.NewBufferString(body)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "tok_abc", tokens.registered["user_1"])
}

func TestRegisterTokenRejectsEmptyToken(t *testing.T) {
	router := newUserRouter(&fakeIndex{}, &fakeWelcome{}, &fakeTokens{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/users/user_1/token", bytes.NewBufferString(`{"token":""}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
