// Package feed pushes live map events — marker operations, viewport fits,
// and alerts — to connected WebSocket clients. The Hub doubles as the
// markers.Renderer used by the reconciler.
package feed

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/ride-companion/internal/markers"
	"github.com/example/ride-companion/internal/models"
)

// Event is one message on the map feed.
type Event struct {
	Type     string              `json:"type"` // add_marker, update_marker, remove_marker, fit_bounds, alert
	Marker   *models.MarkerState `json:"marker,omitempty"`
	MemberID string              `json:"member_id,omitempty"`
	Bounds   *markers.Bounds     `json:"bounds,omitempty"`
	Alert    *models.Alert       `json:"alert,omitempty"`
}

// session wraps one client connection; writes are serialized per session.
type session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *session) send(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(ev)
}

// Hub holds the connected map clients.
type Hub struct {
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[*session]struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{logger: logger, sessions: make(map[*session]struct{})}
}

// Add registers a freshly upgraded connection and watches it for close.
func (h *Hub) Add(conn *websocket.Conn) {
	s := &session{conn: conn}
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()

	// reads are discarded; the feed is one-way, but the read loop notices
	// the peer going away
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.remove(s)
				return
			}
		}
	}()
}

// ClientCount returns the number of connected map clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) remove(s *session) {
	h.mu.Lock()
	if _, ok := h.sessions[s]; ok {
		delete(h.sessions, s)
		_ = s.conn.Close()
	}
	h.mu.Unlock()
}

func (h *Hub) broadcast(ev Event) {
	h.mu.RLock()
	targets := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if err := s.send(ev); err != nil {
			h.logger.Debug("feed send failed, dropping client", "error", err)
			h.remove(s)
		}
	}
}

// AddMarker implements markers.Renderer.
func (h *Hub) AddMarker(m models.MarkerState) {
	h.broadcast(Event{Type: "add_marker", Marker: &m})
}

// UpdateMarker implements markers.Renderer.
func (h *Hub) UpdateMarker(m models.MarkerState) {
	h.broadcast(Event{Type: "update_marker", Marker: &m})
}

// RemoveMarker implements markers.Renderer.
func (h *Hub) RemoveMarker(memberID string) {
	h.broadcast(Event{Type: "remove_marker", MemberID: memberID})
}

// FitBounds implements markers.Renderer.
func (h *Hub) FitBounds(b markers.Bounds) {
	h.broadcast(Event{Type: "fit_bounds", Bounds: &b})
}

// PublishAlert forwards a newly visible alert to connected clients.
func (h *Hub) PublishAlert(a models.Alert) {
	h.broadcast(Event{Type: "alert", Alert: &a})
}
