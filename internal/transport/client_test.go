package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/ride-companion/internal/models"
)

func TestListMembersSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/rides/r1/members" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("missing auth header, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": []map[string]any{
				{"member_id": "m1", "user": map[string]string{"id": "u1", "name": "Ada"}, "status": "on-route", "lat": 1.5, "lon": 2.5},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	members, err := c.ListMembers(context.Background(), "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(members) != 1 || members[0].MemberID != "m1" {
		t.Fatalf("unexpected members: %+v", members)
	}
	if !members[0].HasLocation() || *members[0].Lat != 1.5 {
		t.Fatalf("location not decoded: %+v", members[0])
	}
}

func TestRejectionIsNotTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "not a member"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.ListMembers(context.Background(), "r1")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsRejection(err) {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestTransportFailureIsNotRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := NewClient(srv.URL, "")
	err := c.UpdatePosition(context.Background(), "r1", 1, 2)
	if err == nil {
		t.Fatal("expected error")
	}
	if IsRejection(err) {
		t.Fatalf("network failure classified as rejection: %v", err)
	}
}

func TestUpdatePositionBody(t *testing.T) {
	var got map[string]float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if err := c.UpdatePosition(context.Background(), "r1", 10.5, -3.25); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["lat"] != 10.5 || got["lon"] != -3.25 {
		t.Fatalf("unexpected body: %v", got)
	}
}

func TestListAlertsMarksServerOrigin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    []map[string]any{{"id": "a1", "message": "regroup at km 20", "category": "info"}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	alerts, err := c.ListAlerts(context.Background(), "r9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Origin != models.OriginServer || alerts[0].RideID != "r9" {
		t.Fatalf("unexpected alerts: %+v", alerts)
	}
}
