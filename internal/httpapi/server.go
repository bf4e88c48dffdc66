// Package httpapi exposes the companion's local HTTP surface: tracking
// control, the live roster, the merged alert view, ride session transitions,
// and the WebSocket map feed. Responses use the same {success, data,
// message} envelope as the ride backend.
package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-companion/internal/alerts"
	"github.com/example/ride-companion/internal/capture"
	"github.com/example/ride-companion/internal/feed"
	"github.com/example/ride-companion/internal/geo"
	"github.com/example/ride-companion/internal/models"
	"github.com/example/ride-companion/internal/presence"
	"github.com/example/ride-companion/internal/storage"
)

type Server struct {
	logger  *slog.Logger
	tracker *capture.Tracker
	poller  *presence.Poller
	engine  *alerts.Engine
	hub     *feed.Hub
	index   *geo.Index
	store   storage.RideStore
	session *Session
	router  *mux.Router
}

func NewServer(
	logger *slog.Logger,
	tracker *capture.Tracker,
	poller *presence.Poller,
	engine *alerts.Engine,
	hub *feed.Hub,
	index *geo.Index,
	store storage.RideStore,
	session *Session,
) *Server {
	s := &Server{
		logger:  logger,
		tracker: tracker,
		poller:  poller,
		engine:  engine,
		hub:     hub,
		index:   index,
		store:   store,
		session: session,
		router:  mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler())

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/ride/members", s.handleMembers).Methods(http.MethodGet)
	api.HandleFunc("/ride/members/nearby", s.handleNearby).Methods(http.MethodGet)
	api.HandleFunc("/ride/status", s.handleRideStatus).Methods(http.MethodPost)
	api.HandleFunc("/alerts", s.handleAlerts).Methods(http.MethodGet)
	api.HandleFunc("/alerts", s.handleSendAlert).Methods(http.MethodPost)
	api.HandleFunc("/alerts/emergency", s.handleEmergency).Methods(http.MethodPost)
	api.HandleFunc("/alerts/{id}", s.handleDismiss).Methods(http.MethodDelete)
	api.HandleFunc("/tracking", s.handleTrackingStatus).Methods(http.MethodGet)
	api.HandleFunc("/tracking/start", s.handleTrackingStart).Methods(http.MethodPost)
	api.HandleFunc("/tracking/stop", s.handleTrackingStop).Methods(http.MethodPost)
	api.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)

	s.router.HandleFunc("/ws/map", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"members":   s.poller.Snapshot(),
		"connected": s.poller.Connected(),
	}
	if err := s.poller.Err(); err != nil {
		data["last_error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	if errLat != nil || errLon != nil {
		writeError(w, http.StatusBadRequest, "lat and lon are required")
		return
	}
	limit := 10
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	writeJSON(w, http.StatusOK, s.index.Nearby(lat, lon, limit))
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Alerts())
}

func (s *Server) handleSendAlert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message  string               `json:"message"`
		Category models.AlertCategory `json:"category"`
		Severity models.AlertSeverity `json:"severity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.Category == "" {
		req.Category = models.AlertInfo
	}
	if req.Severity == "" {
		req.Severity = models.SeverityLow
	}
	s.engine.SendServerAlert(r.Context(), req.Message, req.Category, req.Severity)
	writeJSON(w, http.StatusAccepted, nil)
}

func (s *Server) handleEmergency(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	s.engine.SendEmergencyAlert(r.Context(), req.Message)
	writeJSON(w, http.StatusAccepted, nil)
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	s.engine.Dismiss(mux.Vars(r)["id"])
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTrackingStatus(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"tracking": s.tracker.IsTracking(),
	}
	if p := s.tracker.CurrentPosition(); p != nil {
		data["current_position"] = p
	}
	if ts := s.tracker.LastSyncTime(); !ts.IsZero() {
		data["last_sync"] = ts
	}
	if err := s.tracker.Err(); err != nil {
		data["last_error"] = capture.UserMessage(err)
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleTrackingStart(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.StartTracking(); err != nil {
		writeError(w, http.StatusConflict, capture.UserMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracking": true})
}

func (s *Server) handleTrackingStop(w http.ResponseWriter, r *http.Request) {
	s.tracker.StopTracking()
	writeJSON(w, http.StatusOK, map[string]any{"tracking": false})
}

func (s *Server) handleRideStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status models.RideStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ride, err := s.session.Transition(req.Status)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.poller.Refresh()
	writeJSON(w, http.StatusOK, map[string]any{"connected": s.poller.Connected()})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the feed serves local map UIs; same-origin policy is not enforced
	CheckOrigin: func(*http.Request) bool { return true },
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("ws upgrade failed", "error", err)
		return
	}
	s.hub.Add(conn)
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Message: msg})
}

func newID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
