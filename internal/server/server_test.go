package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secsync/internal/broadcast"
	"secsync/internal/fetch"
	"secsync/internal/pipeline"
	"secsync/pkg/models"
)

type stubSource map[models.Kind]string

func (s stubSource) Fetch(ctx context.Context, kind models.Kind) (*models.Envelope, error) {
	return models.DecodeEnvelope([]byte(s[kind]))
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	src := stubSource{
		models.KindIncidents: `{"status":"success","data":[{"id":"INC-1","severity":"high"},{"id":"INC-2","severity":"low"}]}`,
		models.KindAssets: `{"status":"success","data":[
			{"id":"AST-1","type":"server","status":"vulnerable"},
			{"id":"AST-2","type":"server","status":"secure"}]}`,
		models.KindThreats:         `{"status":"success","data":[{"id":"THR-1","type":"APT","severity":"critical"}]}`,
		models.KindVulnerabilities: `{"status":"success","data":[{"id":"VUL-1","severity":"critical","affectedAssets":["AST-1"]}]}`,
	}
	cfg := fetch.DefaultConfig()
	cfg.Production = true
	p := pipeline.NewSyncPipeline(src, pipeline.Options{Fetch: cfg})
	_, err := p.RefreshAll(context.Background(), false)
	require.NoError(t, err)

	srv := httptest.NewServer(New(p, "").Router())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestListAndFilters(t *testing.T) {
	srv := newTestServer(t)

	var incidents []models.Incident
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/v1/incidents", &incidents))
	assert.Len(t, incidents, 2)

	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/v1/incidents?severity=HIGH", &incidents))
	require.Len(t, incidents, 1)
	assert.Equal(t, "INC-1", incidents[0].ID)

	var assets []models.Asset
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/v1/assets?status=secure", &assets))
	require.Len(t, assets, 1)
	assert.Equal(t, "AST-2", assets[0].ID)

	var threats []models.Threat
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/v1/threats?type=apt", &threats))
	assert.Len(t, threats, 1)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/v1/assets?severity=high", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/v1/incidents?severity=urgent", nil))
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/v1/routers", nil))
}

func TestGetByIDAndRelations(t *testing.T) {
	srv := newTestServer(t)

	var vuln models.Vulnerability
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/v1/vulnerabilities/VUL-1", &vuln))
	assert.Equal(t, models.SeverityCritical, vuln.Severity)

	var body map[string]string
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/v1/vulnerabilities/VUL-9", &body))
	assert.Contains(t, body["error"], "Vulnerabilities VUL-9")

	var vulns []models.Vulnerability
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/v1/assets/AST-1/vulnerabilities", &vulns))
	assert.Len(t, vulns, 1)

	var assets []models.Asset
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/v1/vulnerabilities/VUL-1/assets", &assets))
	require.Len(t, assets, 1)
	assert.Equal(t, "AST-1", assets[0].ID)
}

func TestAnalyticsEndpoints(t *testing.T) {
	srv := newTestServer(t)

	var metrics map[string]struct {
		Value int `json:"value"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/v1/analytics/metrics", &metrics))
	assert.Equal(t, 10, metrics["riskScore"].Value)

	var corr struct {
		Rows []struct {
			Type string `json:"type"`
		} `json:"correlationData"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/v1/analytics/correlation", &corr))
	require.Len(t, corr.Rows, 1)
	assert.Equal(t, "server", corr.Rows[0].Type)

	var trends struct {
		Daily []json.RawMessage `json:"dailyTrends"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/v1/analytics/trends?days=7", &trends))
	assert.Len(t, trends.Daily, 7)
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/v1/analytics/trends?days=week", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/v1/analytics/trends?days=3000000", nil))
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/v1/analytics/trends?days=365", nil))
}

func TestRefreshEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/refresh?force=true", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Results []refreshResult `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Results, 4)
	for _, r := range body.Results {
		assert.Equal(t, fetch.OutcomeSuccess, r.Outcome)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	var health map[string]interface{}
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/healthz", &health))
	assert.Equal(t, "ok", health["status"])

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStreamReplaysEveryChannel(t *testing.T) {
	srv := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	seen := make(map[string]bool)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for len(seen) < 6 {
		var e broadcast.Event
		require.NoError(t, conn.ReadJSON(&e))
		seen[e.Channel] = true
	}
	for _, ch := range []string{"incidents", "assets", "threats", "vulnerabilities", "loading", "error"} {
		assert.True(t, seen[ch], ch)
	}
}
