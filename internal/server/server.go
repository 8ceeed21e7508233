package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"secsync/internal/analytics"
	"secsync/internal/broadcast"
	"secsync/internal/fetch"
	"secsync/internal/logger"
	"secsync/internal/pipeline"
	"secsync/pkg/models"
)

const writeWait = 10 * time.Second

// Server exposes the synced collections, analytics and a live stream over HTTP.
type Server struct {
	sync     *pipeline.SyncPipeline
	addr     string
	router   *mux.Router
	upgrader websocket.Upgrader
}

// New creates a server for p listening on addr.
func New(p *pipeline.SyncPipeline, addr string) *Server {
	s := &Server{
		sync:   p,
		addr:   addr,
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/stream", s.handleStream).Methods(http.MethodGet)
	api.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/analytics/metrics", s.handleSecurityMetrics).Methods(http.MethodGet)
	api.HandleFunc("/analytics/correlation", s.handleCorrelation).Methods(http.MethodGet)
	api.HandleFunc("/analytics/trends", s.handleTrends).Methods(http.MethodGet)
	api.HandleFunc("/assets/{id}/vulnerabilities", s.handleAssetVulnerabilities).Methods(http.MethodGet)
	api.HandleFunc("/vulnerabilities/{id}/assets", s.handleVulnerabilityAssets).Methods(http.MethodGet)
	api.HandleFunc("/{kind}", s.handleList).Methods(http.MethodGet)
	api.HandleFunc("/{kind}/{id}", s.handleGet).Methods(http.MethodGet)
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler { return s.router }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("HTTP server shutdown: %v", err)
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"loading": s.sync.Hub().Loading.Value(),
		"error":   s.sync.Hub().Error.Value(),
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	list := s.sync.Hub().Collection(kind)
	if raw := q.Get("severity"); raw != "" {
		severity, ok := parseSeverity(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown severity "+strconv.Quote(raw))
			return
		}
		filtered, err := s.sync.GetBySeverity(kind, severity)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		list = filtered
	}

	switch v := list.(type) {
	case models.Assets:
		if status := q.Get("status"); status != "" {
			list = v.ByStatus(models.AssetStatus(strings.ToLower(status)))
		}
	case models.Threats:
		if t := q.Get("type"); t != "" {
			list = v.ByType(t)
		}
	}

	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	e, found := s.sync.GetByID(kind, id)
	if !found {
		writeError(w, http.StatusNotFound, kind.Label()+" "+id+" not found")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleAssetVulnerabilities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sync.GetVulnerabilitiesForAsset(mux.Vars(r)["id"]))
}

func (s *Server) handleVulnerabilityAssets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sync.GetAssetsForVulnerability(mux.Vars(r)["id"]))
}

type refreshResult struct {
	Kind     models.Kind   `json:"kind"`
	Outcome  fetch.Outcome `json:"outcome"`
	Attempts int           `json:"attempts"`
	Degraded bool          `json:"degraded"`
	Count    int           `json:"count"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	force := false
	if raw := r.URL.Query().Get("force"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid force flag")
			return
		}
		force = v
	}

	results, err := s.sync.RefreshAll(r.Context(), force)
	out := make([]refreshResult, 0, len(results))
	for _, res := range results {
		rr := refreshResult{Kind: res.Kind, Outcome: res.Outcome, Attempts: res.Attempts, Degraded: res.Degraded}
		if res.Records != nil {
			rr.Count = res.Records.Len()
		}
		out = append(out, rr)
	}

	body := map[string]interface{}{"results": out}
	status := http.StatusOK
	if err != nil {
		status = http.StatusBadGateway
		body["error"] = s.sync.Hub().Error.Value()
	}
	writeJSON(w, status, body)
}

func (s *Server) handleSecurityMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sync.CalculateSecurityMetrics())
}

func (s *Server) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sync.AnalyzeAssetVulnerabilityCorrelation())
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "days must be an integer")
			return
		}
		if err := analytics.ValidateTrendDays(v); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		days = v
	}
	writeJSON(w, http.StatusOK, s.sync.AnalyzeVulnerabilityTrends(days))
}

// handleStream pushes every hub update to a websocket client, starting with
// the current value of each channel.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events := make(chan broadcast.Event, 16)
	stop := make(chan struct{})
	unsubscribe := s.sync.Hub().SubscribeAll(func(e broadcast.Event) {
		select {
		case events <- e:
		case <-stop:
		}
	})
	defer unsubscribe()
	defer close(stop)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case e := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				logger.Debugf("Websocket write failed: %v", err)
				return
			}
		}
	}
}

func kindParam(w http.ResponseWriter, r *http.Request) (models.Kind, bool) {
	kind, err := models.ParseKind(mux.Vars(r)["kind"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return "", false
	}
	return kind, true
}

func parseSeverity(raw string) (models.Severity, bool) {
	s := models.Severity(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range models.Severities {
		if s == known {
			return s, true
		}
	}
	return "", false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
