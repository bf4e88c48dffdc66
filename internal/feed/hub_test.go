package feed

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/ride-companion/internal/logging"
	"github.com/example/ride-companion/internal/markers"
	"github.com/example/ride-companion/internal/models"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

func dialHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		h.Add(conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func TestMarkerEventsReachClient(t *testing.T) {
	h := NewHub(logging.Discard())
	conn := dialHub(t, h)

	h.AddMarker(models.MarkerState{MemberID: "m1", Lat: 1, Lon: 2, Status: models.StatusOnRoute})
	ev := readEvent(t, conn)
	if ev.Type != "add_marker" || ev.Marker == nil || ev.Marker.MemberID != "m1" {
		t.Fatalf("unexpected event: %+v", ev)
	}

	h.UpdateMarker(models.MarkerState{MemberID: "m1", Lat: 1.5, Lon: 2.5})
	if ev := readEvent(t, conn); ev.Type != "update_marker" || ev.Marker.Lat != 1.5 {
		t.Fatalf("unexpected update: %+v", ev)
	}

	h.RemoveMarker("m1")
	if ev := readEvent(t, conn); ev.Type != "remove_marker" || ev.MemberID != "m1" {
		t.Fatalf("unexpected remove: %+v", ev)
	}

	h.FitBounds(markers.Bounds{MinLat: -1, MaxLat: 1, MinLon: -2, MaxLon: 2})
	if ev := readEvent(t, conn); ev.Type != "fit_bounds" || ev.Bounds == nil || ev.Bounds.MaxLon != 2 {
		t.Fatalf("unexpected fit: %+v", ev)
	}
}

func TestAlertEventsReachClient(t *testing.T) {
	h := NewHub(logging.Discard())
	conn := dialHub(t, h)

	h.PublishAlert(models.Alert{ID: "a1", Message: "rider down", Category: models.AlertEmergency})
	ev := readEvent(t, conn)
	if ev.Type != "alert" || ev.Alert == nil || ev.Alert.ID != "a1" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestClosedClientIsDropped(t *testing.T) {
	h := NewHub(logging.Discard())
	conn := dialHub(t, h)

	if h.ClientCount() != 1 {
		t.Fatalf("client count = %d", h.ClientCount())
	}
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.PublishAlert(models.Alert{ID: "a1"})
		if h.ClientCount() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("closed client never removed: %d", h.ClientCount())
}
