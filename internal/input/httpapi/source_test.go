package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secsync/pkg/models"
)

func TestSourceFetchDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/security/incidents", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
		assert.Equal(t, "yes", r.Header.Get("X-Tenant"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","data":[{"id":1}],"metadata":{"total":1}}`))
	}))
	defer srv.Close()

	src, err := NewSource(Config{
		BaseURL: srv.URL + "/",
		Headers: map[string]string{"X-Tenant": "yes"},
		Tokens:  NewStaticTokenSource("tok"),
	})
	require.NoError(t, err)

	env, err := src.Fetch(context.Background(), models.KindIncidents)
	require.NoError(t, err)
	assert.Equal(t, models.EnvelopeSuccess, env.Status)
	require.NotNil(t, env.Metadata)
	assert.Equal(t, 1, *env.Metadata.Total)

	raw, err := env.Payload()
	require.NoError(t, err)
	assert.Len(t, raw, 1)
}

func TestSourceFetchAcceptsBareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(` [{"id": 1}, {"id": 2}]`))
	}))
	defer srv.Close()

	src, err := NewSource(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	env, err := src.Fetch(context.Background(), models.KindAssets)
	require.NoError(t, err)
	raw, err := env.Payload()
	require.NoError(t, err)
	assert.Len(t, raw, 2)
}

func TestSourceFetchReturnsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	src, err := NewSource(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), models.KindThreats)
	var statusErr *models.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 502, statusErr.Code)
	assert.Equal(t, "Bad Gateway", statusErr.Status)
}

func TestNewSourceRequiresBaseURL(t *testing.T) {
	_, err := NewSource(Config{})
	assert.Error(t, err)
}

func TestAuthTransportRefreshesOnceOn401(t *testing.T) {
	var refreshes int32
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshes, 1)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "rt-1", body["refreshToken"])
		w.Write([]byte(`{"token":"fresh","refreshToken":"rt-2"}`))
	}))
	defer auth.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"status":"success","data":[]}`))
	}))
	defer api.Close()

	tokens := NewEndpointTokenSource(auth.URL, "stale", "rt-1", 0)
	src, err := NewSource(Config{BaseURL: api.URL, Tokens: tokens})
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), models.KindVulnerabilities)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshes))

	tok, _ := tokens.Token(context.Background())
	assert.Equal(t, "fresh", tok)
}

func TestAuthTransportExpiresSessionWhenRefreshFails(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer api.Close()

	tokens := NewStaticTokenSource("old")
	src, err := NewSource(Config{BaseURL: api.URL, Tokens: tokens})
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), models.KindIncidents)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrSessionExpired))

	tok, _ := tokens.Token(context.Background())
	assert.Empty(t, tok, "failed refresh logs the session out")
}

